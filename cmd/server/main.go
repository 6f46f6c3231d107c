package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/dataspace-hub/dataspace-hub/internal/api/http"
	appCatalog "github.com/dataspace-hub/dataspace-hub/internal/application/catalog"
	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	"github.com/dataspace-hub/dataspace-hub/internal/application/identity"
	appNegotiation "github.com/dataspace-hub/dataspace-hub/internal/application/negotiation"
	appPolicy "github.com/dataspace-hub/dataspace-hub/internal/application/policy"
	appTransfer "github.com/dataspace-hub/dataspace-hub/internal/application/transfer"
	"github.com/dataspace-hub/dataspace-hub/internal/application/validation"
	"github.com/dataspace-hub/dataspace-hub/internal/config"
	domainCatalog "github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	domainTransfer "github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/events"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/keystore"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/memstore"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/postgres"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	// stores
	var (
		negotiationStore domainNegotiation.Store
		transferStore    domainTransfer.Store
		participantRepo  participant.Repository
		definitionRepo   domainCatalog.Repository
	)
	if cfg.Store == "postgres" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		negotiationStore = postgres.NewNegotiationRepository(pool)
		transferStore = postgres.NewTransferRepository(pool)
		participantRepo = postgres.NewParticipantRepository(pool)
		definitionRepo = postgres.NewDefinitionRepository(pool)
	} else {
		negotiationStore = memstore.NewNegotiationStore()
		transferStore = memstore.NewTransferStore()
		participantRepo = memstore.NewParticipantRepository()
		definitionRepo = memstore.NewDefinitionRepository()
	}

	if err := ensureParticipantContext(ctx, participantRepo, cfg); err != nil {
		log.Fatalf("participant context error: %v", err)
	}

	// infrastructure
	hub := events.NewHub()
	keyStore, err := keystore.NewFromEnv()
	if err != nil {
		log.Fatalf("keystore error: %v", err)
	}

	// authorization gate
	verifier := identity.NewJWTVerifier(keyStore, logger)
	agents := identity.NewAgentResolver(cfg.IdentityClaim)
	engine := appPolicy.NewEngine(logger)
	authorizer := gate.New(verifier, agents, engine, logger)

	// services
	offerResolver := appCatalog.NewOfferResolver(definitionRepo, logger)
	agreementResolver := appCatalog.NewAgreementResolver(negotiationStore)

	negotiationSvc := appNegotiation.NewService(
		negotiationStore,
		authorizer,
		validation.New(logger),
		offerResolver,
		[]appNegotiation.Listener{
			appNegotiation.NewAuditListener(logger),
			appNegotiation.NewHubListener(hub),
		},
		cfg.LeaseDuration,
		logger,
	)
	transferSvc := appTransfer.NewService(
		transferStore,
		authorizer,
		validation.NewTransferValidator(logger),
		agreementResolver,
		[]appTransfer.Listener{
			appTransfer.NewAuditListener(logger),
			appTransfer.NewHubListener(hub),
		},
		cfg.LeaseDuration,
		logger,
	)

	// API server
	apiServer := httpapi.NewServer(
		negotiationSvc,
		transferSvc,
		negotiationStore,
		transferStore,
		participantRepo,
		hub,
		cfg.ParticipantContextID,
		cfg.ManagementAPIKeyHash,
		logger,
	)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	hub.Stop()
}

// ensureParticipantContext provisions the configured context on first start.
func ensureParticipantContext(ctx context.Context, repo participant.Repository, cfg *config.Config) error {
	existing, err := repo.GetByID(ctx, cfg.ParticipantContextID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return repo.Create(ctx, &participant.Context{
		ID:            cfg.ParticipantContextID,
		ParticipantID: cfg.ParticipantID,
		CreatedAt:     time.Now().UTC(),
	})
}
