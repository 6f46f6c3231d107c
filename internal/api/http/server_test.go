package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appCatalog "github.com/dataspace-hub/dataspace-hub/internal/application/catalog"
	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	appNegotiation "github.com/dataspace-hub/dataspace-hub/internal/application/negotiation"
	appTransfer "github.com/dataspace-hub/dataspace-hub/internal/application/transfer"
	"github.com/dataspace-hub/dataspace-hub/internal/application/validation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/events"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/memstore"
)

type stubAuthorizer struct {
	identity string
}

func (a *stubAuthorizer) Verify(ctx context.Context, pctx *participant.Context, token gate.TokenRepresentation, pol domainPolicy.Policy, messageType string) (*gate.Agent, error) {
	return &gate.Agent{Identity: a.identity}, nil
}

const testAPIKey = "management-key"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	negotiations := memstore.NewNegotiationStore()
	transfers := memstore.NewTransferStore()
	participants := memstore.NewParticipantRepository()
	definitions := memstore.NewDefinitionRepository()
	hub := events.NewHub()
	t.Cleanup(hub.Stop)

	ctx := context.Background()
	require.NoError(t, participants.Create(ctx, &participant.Context{
		ID: "pctx-1", ParticipantID: "did:web:provider", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, definitions.Create(ctx, &catalog.Definition{
		ID: "def-1", ParticipantContextID: "pctx-1", AssetID: "asset-1",
		Policy: domainPolicy.Policy{Target: "asset-1"}, CreatedAt: time.Now().UTC(),
	}))

	authorizer := &stubAuthorizer{identity: "did:web:consumer"}
	negotiationSvc := appNegotiation.NewService(
		negotiations, authorizer, validation.New(logger),
		appCatalog.NewOfferResolver(definitions, logger),
		nil, time.Minute, logger,
	)
	transferSvc := appTransfer.NewService(
		transfers, authorizer, validation.NewTransferValidator(logger),
		appCatalog.NewAgreementResolver(negotiations),
		nil, time.Minute, logger,
	)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)

	srv := NewServer(negotiationSvc, transferSvc, negotiations, transfers, participants, hub, "pctx-1", string(hash), logger)
	return srv.Router()
}

func TestNegotiationRequestEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := `{"messageId":"msg-1","consumerPid":"consumer-pid-1","offerId":"def-1:asset-1:nonce","callbackAddress":"https://consumer/cb"}`
	req := httptest.NewRequest(http.MethodPost, "/dsp/negotiations/request", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"state":200`)
	assert.Contains(t, rec.Body.String(), `"correlationId":"consumer-pid-1"`)
}

func TestNegotiationRequestUnknownOffer(t *testing.T) {
	router := newTestRouter(t)

	body := `{"messageId":"msg-1","consumerPid":"consumer-pid-1","offerId":"def-x:asset-x:nonce"}`
	req := httptest.NewRequest(http.MethodPost, "/dsp/negotiations/request", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNegotiationRequestMalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/dsp/negotiations/request", strings.NewReader(`{"unknown":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferEventEndpointUnknownProcess(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/dsp/transfers/missing/completion", strings.NewReader(`{"messageId":"msg-1"}`))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagementRequiresAPIKey(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/management/v1/negotiations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/management/v1/negotiations", nil)
	req.Header.Set("X-Api-Key", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/management/v1/negotiations", nil)
	req.Header.Set("X-Api-Key", testAPIKey)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"negotiations"`)
}

func TestManagementGetNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/management/v1/transfers/missing", nil)
	req.Header.Set("X-Api-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
