// Package server exposes translation sessions over HTTP and JSON-RPC so
// editors and scripts can drive them without the TUI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/session"
)

// APIServer exposes HTTP endpoints for driving sessions without an editor.
type APIServer struct {
	Engine *session.Engine
	Logger *log.Logger
}

// SessionRequest describes the incoming session-creation payload.
type SessionRequest struct {
	SourceAST        *ast.Node         `json:"source_ast"`
	SourceLanguage   string            `json:"source_language"`
	TargetLanguage   string            `json:"target_language"`
	UserID           string            `json:"user_id,omitempty"`
	ProjectID        string            `json:"project_id,omitempty"`
	StylePreferences map[string]string `json:"style_preferences,omitempty"`
	ProjectContext   map[string]string `json:"project_context,omitempty"`
}

// FeedbackRequest describes one user action against a step.
type FeedbackRequest struct {
	StepID       string                 `json:"step_id"`
	Action       pattern.FeedbackAction `json:"action"`
	SuggestionID string                 `json:"suggestion_id,omitempty"`
	TargetNode   *ast.Node              `json:"target_node,omitempty"`
	Rating       int                    `json:"rating,omitempty"`
	Comment      string                 `json:"comment,omitempty"`
}

// ErrorResponse wraps failures for clients.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := s.newHTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if s.Logger != nil {
		s.Logger.Printf("API listening on %s", addr)
	}
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *APIServer) newHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("POST /api/sessions/{id}/steps/{step}/fail", s.handleFailStep)
	mux.HandleFunc("POST /api/sessions/{id}/pause", s.handleTransition(s.pause))
	mux.HandleFunc("POST /api/sessions/{id}/resume", s.handleTransition(s.resume))
	mux.HandleFunc("POST /api/sessions/{id}/cancel", s.handleTransition(s.cancel))
	mux.HandleFunc("GET /api/patterns", s.handleListPatterns)
	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

func (s *APIServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.SourceAST.Rebind()
	sess, err := s.Engine.InitializeSession(r.Context(), req.SourceAST, session.Options{
		SourceLanguage:   req.SourceLanguage,
		TargetLanguage:   req.TargetLanguage,
		UserID:           req.UserID,
		ProjectID:        req.ProjectID,
		StylePreferences: req.StylePreferences,
		ProjectContext:   req.ProjectContext,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// Encode a detached copy; the live session keeps taking feedback.
	view, err := s.Engine.GetSessionCopy(sess.ID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(view)
}

func (s *APIServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.Engine.ActiveSessionsCopy()
	if sessions == nil {
		sessions = []*session.TranslationSession{}
	}
	writeJSON(w, sessions)
}

func (s *APIServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.GetSessionCopy(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, sess)
}

func (s *APIServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.TargetNode.Rebind()
	sessionID := r.PathValue("id")
	err := s.Engine.ProcessUserFeedback(r.Context(), sessionID, req.StepID, session.UserFeedback{
		Action:       req.Action,
		SuggestionID: req.SuggestionID,
		TargetNode:   req.TargetNode,
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sess, err := s.Engine.GetSessionCopy(sessionID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, sess)
}

func (s *APIServer) handleFailStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	sessionID := r.PathValue("id")
	if err := s.Engine.FailStep(r.Context(), sessionID, r.PathValue("step"), req.Reason); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sess, err := s.Engine.GetSessionCopy(sessionID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, sess)
}

func (s *APIServer) handleTransition(op func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if err := op(sessionID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		sess, err := s.Engine.GetSessionCopy(sessionID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, sess)
	}
}

func (s *APIServer) pause(id string) error  { return s.Engine.Pause(id) }
func (s *APIServer) resume(id string) error { return s.Engine.Resume(id) }
func (s *APIServer) cancel(id string) error { return s.Engine.Cancel(id) }

func (s *APIServer) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns := s.Engine.Patterns()
	if patterns == nil {
		patterns = []*pattern.TranslationPattern{}
	}
	writeJSON(w, patterns)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionNotActive),
		errors.Is(err, session.ErrStepNotActionable),
		errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoSuggestion), errors.Is(err, session.ErrMissingTarget):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
