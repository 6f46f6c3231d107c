package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appNegotiation "github.com/dataspace-hub/dataspace-hub/internal/application/negotiation"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
)

// Negotiation protocol request bodies. Field names follow the dataspace
// protocol message shapes.

type negotiationRequestBody struct {
	MessageID       string `json:"messageId"`
	ProviderPID     string `json:"providerPid,omitempty"`
	ConsumerPID     string `json:"consumerPid"`
	CallbackAddress string `json:"callbackAddress,omitempty"`
	OfferID         string `json:"offerId"`
	Protocol        string `json:"protocol,omitempty"`
}

type negotiationOfferBody struct {
	MessageID       string                  `json:"messageId"`
	ProviderPID     string                  `json:"providerPid"`
	ConsumerPID     string                  `json:"consumerPid,omitempty"`
	CallbackAddress string                  `json:"callbackAddress,omitempty"`
	Protocol        string                  `json:"protocol,omitempty"`
	Offer           domainNegotiation.Offer `json:"offer"`
}

type negotiationEventBody struct {
	MessageID string `json:"messageId"`
	EventType string `json:"eventType"`
}

type negotiationAgreementBody struct {
	MessageID string                      `json:"messageId"`
	Agreement domainNegotiation.Agreement `json:"agreement"`
}

type negotiationVerificationBody struct {
	MessageID string `json:"messageId"`
}

type negotiationTerminationBody struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) negotiationInitialRequest(w http.ResponseWriter, r *http.Request) {
	s.handleNegotiationRequest(w, r, "")
}

func (s *Server) negotiationRequest(w http.ResponseWriter, r *http.Request) {
	s.handleNegotiationRequest(w, r, chi.URLParam(r, "processId"))
}

func (s *Server) handleNegotiationRequest(w http.ResponseWriter, r *http.Request, providerPID string) {
	var body negotiationRequestBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appNegotiation.RequestMessage{
		ID:              body.MessageID,
		ProviderPID:     providerPID,
		ConsumerPID:     body.ConsumerPID,
		CallbackAddress: body.CallbackAddress,
		OfferID:         body.OfferID,
		Protocol:        body.Protocol,
	}
	n, err := s.negotiationSvc.NotifyRequested(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) negotiationInitialOffer(w http.ResponseWriter, r *http.Request) {
	s.handleNegotiationOffer(w, r, "")
}

func (s *Server) negotiationOffer(w http.ResponseWriter, r *http.Request) {
	s.handleNegotiationOffer(w, r, chi.URLParam(r, "processId"))
}

func (s *Server) handleNegotiationOffer(w http.ResponseWriter, r *http.Request, consumerPID string) {
	var body negotiationOfferBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appNegotiation.OfferMessage{
		ID:              body.MessageID,
		ProviderPID:     body.ProviderPID,
		ConsumerPID:     consumerPID,
		CallbackAddress: body.CallbackAddress,
		Protocol:        body.Protocol,
		Offer:           body.Offer,
	}
	n, err := s.negotiationSvc.NotifyOffered(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// negotiationEvent dispatches accepted and finalized notifications, which
// share one endpoint distinguished by event type.
func (s *Server) negotiationEvent(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body negotiationEventBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appNegotiation.EventMessage{ID: body.MessageID, ProcessID: processID}
	var n *domainNegotiation.Negotiation
	switch body.EventType {
	case "ACCEPTED":
		n, err = s.negotiationSvc.NotifyAccepted(r.Context(), pctx, msg, bearerToken(r))
	case "FINALIZED":
		n, err = s.negotiationSvc.NotifyFinalized(r.Context(), pctx, msg, bearerToken(r))
	default:
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown event type "+body.EventType)
		return
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) negotiationAgreement(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body negotiationAgreementBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appNegotiation.AgreementMessage{
		ID:        body.MessageID,
		ProcessID: processID,
		Agreement: body.Agreement,
	}
	n, err := s.negotiationSvc.NotifyAgreed(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) negotiationVerification(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body negotiationVerificationBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appNegotiation.VerificationMessage{ID: body.MessageID, ProcessID: processID}
	n, err := s.negotiationSvc.NotifyVerified(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) negotiationTermination(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body negotiationTerminationBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appNegotiation.TerminationMessage{
		ID:        body.MessageID,
		ProcessID: processID,
		Code:      body.Code,
		Reason:    body.Reason,
	}
	n, err := s.negotiationSvc.NotifyTerminated(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) getNegotiation(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	n, err := s.negotiationSvc.FindByID(r.Context(), pctx, processID, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}
