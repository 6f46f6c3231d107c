package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	appNegotiation "github.com/dataspace-hub/dataspace-hub/internal/application/negotiation"
	appTransfer "github.com/dataspace-hub/dataspace-hub/internal/application/transfer"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	domainTransfer "github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/events"
)

// Server holds dependencies for HTTP handlers. The protocol endpoints go
// through the application services; the management endpoints read the
// stores directly.
type Server struct {
	negotiationSvc *appNegotiation.Service
	transferSvc    *appTransfer.Service
	negotiations   domainNegotiation.Store
	transfers      domainTransfer.Store
	participants   participant.Repository
	hub            *events.Hub
	participantCtx string
	apiKeyHash     string
	logger         zerolog.Logger
}

func NewServer(
	negotiationSvc *appNegotiation.Service,
	transferSvc *appTransfer.Service,
	negotiations domainNegotiation.Store,
	transfers domainTransfer.Store,
	participants participant.Repository,
	hub *events.Hub,
	participantCtx string,
	apiKeyHash string,
	logger zerolog.Logger,
) *Server {
	return &Server{
		negotiationSvc: negotiationSvc,
		transferSvc:    transferSvc,
		negotiations:   negotiations,
		transfers:      transfers,
		participants:   participants,
		hub:            hub,
		participantCtx: participantCtx,
		apiKeyHash:     apiKeyHash,
		logger:         logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/dsp", func(r chi.Router) {
		r.Route("/negotiations", func(r chi.Router) {
			r.Post("/request", s.negotiationInitialRequest)
			r.Get("/{processId}", s.getNegotiation)
			r.Post("/{processId}/request", s.negotiationRequest)
			r.Post("/{processId}/offers", s.negotiationOffer)
			r.Post("/{processId}/events", s.negotiationEvent)
			r.Post("/{processId}/agreement", s.negotiationAgreement)
			r.Post("/{processId}/agreement/verification", s.negotiationVerification)
			r.Post("/{processId}/termination", s.negotiationTermination)
		})
		r.Post("/offers", s.negotiationInitialOffer)

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/request", s.transferRequest)
			r.Get("/{processId}", s.getTransfer)
			r.Post("/{processId}/start", s.transferStart)
			r.Post("/{processId}/suspension", s.transferSuspension)
			r.Post("/{processId}/completion", s.transferCompletion)
			r.Post("/{processId}/termination", s.transferTermination)
		})
	})

	r.Route("/management/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/negotiations", s.listNegotiations)
		r.Get("/negotiations/{processId}", s.getNegotiationManagement)
		r.Get("/transfers", s.listTransfers)
		r.Get("/transfers/{processId}", s.getTransferManagement)
		r.Get("/participants", s.listParticipants)
		r.Get("/events", s.eventStream)
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Conflicts are retryable lease contention, surfaced as 409 so the peer
// redelivers.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	kind := svcerror.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case svcerror.KindNotFound:
		status = http.StatusNotFound
	case svcerror.KindUnauthorized:
		status = http.StatusUnauthorized
	case svcerror.KindForbidden:
		status = http.StatusForbidden
	case svcerror.KindBadRequest:
		status = http.StatusBadRequest
	case svcerror.KindConflict:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
		respondError(w, status, kind.String(), "internal error")
		return
	}
	respondError(w, status, kind.String(), err.Error())
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// bearerToken extracts the counterparty's credential from the Authorization
// header. An absent header yields an empty token; the gate rejects it.
func bearerToken(r *http.Request) gate.TokenRepresentation {
	h := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return gate.TokenRepresentation{Token: token}
}

// participantContext resolves the connector's participant context for the
// request. Single-tenant for now, so it is the configured default.
func (s *Server) participantContext(r *http.Request) (*participant.Context, error) {
	pctx, err := s.participants.GetByID(r.Context(), s.participantCtx)
	if err != nil {
		return nil, err
	}
	if pctx == nil {
		return nil, svcerror.Internal(nil, "participant context %s not provisioned", s.participantCtx)
	}
	return pctx, nil
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
