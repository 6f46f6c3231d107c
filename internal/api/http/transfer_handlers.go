package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appTransfer "github.com/dataspace-hub/dataspace-hub/internal/application/transfer"
	domainTransfer "github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
)

type transferRequestBody struct {
	MessageID       string `json:"messageId"`
	ConsumerPID     string `json:"consumerPid"`
	CallbackAddress string `json:"callbackAddress,omitempty"`
	AgreementID     string `json:"agreementId"`
	Protocol        string `json:"protocol,omitempty"`
}

type transferStartBody struct {
	MessageID   string                      `json:"messageId"`
	DataAddress *domainTransfer.DataAddress `json:"dataAddress,omitempty"`
}

type transferTerminationBody struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type transferSignalBody struct {
	MessageID string `json:"messageId"`
}

func (s *Server) transferRequest(w http.ResponseWriter, r *http.Request) {
	var body transferRequestBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appTransfer.RequestMessage{
		ID:              body.MessageID,
		ConsumerPID:     body.ConsumerPID,
		CallbackAddress: body.CallbackAddress,
		AgreementID:     body.AgreementID,
		Protocol:        body.Protocol,
	}
	p, err := s.transferSvc.NotifyRequested(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) transferStart(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body transferStartBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appTransfer.StartMessage{
		ID:          body.MessageID,
		ProcessID:   processID,
		DataAddress: body.DataAddress,
	}
	p, err := s.transferSvc.NotifyStarted(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) transferSuspension(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body transferTerminationBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appTransfer.SuspensionMessage{
		ID:        body.MessageID,
		ProcessID: processID,
		Code:      body.Code,
		Reason:    body.Reason,
	}
	p, err := s.transferSvc.NotifySuspended(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) transferCompletion(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body transferSignalBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appTransfer.CompletionMessage{ID: body.MessageID, ProcessID: processID}
	p, err := s.transferSvc.NotifyCompleted(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) transferTermination(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	var body transferTerminationBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	msg := appTransfer.TerminationMessage{
		ID:        body.MessageID,
		ProcessID: processID,
		Code:      body.Code,
		Reason:    body.Reason,
	}
	p, err := s.transferSvc.NotifyTerminated(r.Context(), pctx, msg, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	pctx, err := s.participantContext(r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	p, err := s.transferSvc.FindByID(r.Context(), pctx, processID, bearerToken(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
