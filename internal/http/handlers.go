package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reco-chatbot/internal/core"
	"reco-chatbot/internal/llm"
	"reco-chatbot/pkg"
)

// summaryEvent is the payload of a summary_update server-sent event.
type summaryEvent struct {
	SessionID string             `json:"session_id"`
	Summary   *pkg.SummaryRecord `json:"summary"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req pkg.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, err := s.checkins.SignUp(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleStart opens a new check-in for the patient or resumes the open one.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	detail, err := s.checkins.Start(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req pkg.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := s.checkins.Post(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	rec, err := s.checkins.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.checkins.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDoctorSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.checkins.Sessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []pkg.SessionPreview{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSummaryStream sends a single summary_update event once the session
// has a summary.  If none exists yet it waits for a notification naming the
// session, or for the client to go away.
func (s *Server) handleSummaryStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before the first lookup so a summary saved in between is
	// not missed.
	var updates <-chan string
	if s.listener != nil {
		ch, err := s.listener.Listen(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		updates = ch
	}

	detail, err := s.checkins.Session(ctx, sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for detail.Summary == nil {
		if updates == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case id, open := <-updates:
			if !open {
				return
			}
			if id != sessionID {
				continue
			}
			if detail, err = s.checkins.Session(ctx, sessionID); err != nil {
				s.logger.Error("reload session for stream", "session_id", sessionID, "err", err)
				return
			}
		}
	}

	data, err := json.Marshal(summaryEvent{SessionID: sessionID, Summary: detail.Summary})
	if err != nil {
		s.logger.Error("encode summary event", "session_id", sessionID, "err", err)
		return
	}
	fmt.Fprintf(w, "event: summary_update\ndata: %s\n\n", data)
	flusher.Flush()
}

// fail maps service errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrSessionClosed), errors.Is(err, core.ErrPatientExists):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrMalformedOutput), errors.Is(err, llm.ErrUpstream):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
