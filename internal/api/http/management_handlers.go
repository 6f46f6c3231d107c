package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// requireAPIKey guards the management API with a single shared key checked
// against the bcrypt hash from config. No hash configured means the
// management surface is closed.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKeyHash == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "management api is not enabled")
			return
		}
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing api key")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(key)); err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listNegotiations(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 100, 200)
	ns, err := s.negotiations.List(r.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"negotiations": ns})
}

func (s *Server) getNegotiationManagement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "processId")
	n, err := s.negotiations.FindByID(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if n == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "negotiation not found")
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) listTransfers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 100, 200)
	ps, err := s.transfers.List(r.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"transfers": ps})
}

func (s *Server) getTransferManagement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "processId")
	p, err := s.transfers.FindByID(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "transfer process not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 100, 200)
	pcs, err := s.participants.List(r.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"participants": pcs})
}

// eventStream serves process transition events over SSE until the client
// disconnects.
func (s *Server) eventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "streaming not supported")
		return
	}

	client := s.hub.Subscribe(uuid.NewString())
	defer s.hub.Unsubscribe(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial comment flushes headers and confirms the stream is live.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev, open := <-client.Events:
			if !open {
				return
			}
			payload, _ := json.Marshal(ev)
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
