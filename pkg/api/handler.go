// Package api provides the slidetrack HTTP API: response tracking, module
// progress, and the session's display name.
//
// Every route expects session.Middleware to have placed the visitor's
// session ID in the request context.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/session"
	"github.com/txn2/slidetrack/pkg/tally"
)

// slogKeyError is the slog attribute key for error values.
const slogKeyError = "error"

// Tracker records a submission and returns the resource's tally.
type Tracker interface {
	Track(ctx context.Context, sessionID, resource, behavior string) (tally.Tally, error)
}

// Deps holds the handler's collaborators.
type Deps struct {
	Tracker  Tracker
	Sessions session.Store

	// Production hides the diagnostic session dump.
	Production bool

	// StoreTimeout bounds each session store call. Zero means
	// database.DefaultStoreTimeout. Track applies its own timeout.
	StoreTimeout time.Duration
}

// Handler provides the API endpoints.
type Handler struct {
	mux  *http.ServeMux
	deps Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		mux:  http.NewServeMux(),
		deps: deps,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /api/track/{resource}/{behavior}", h.track)
	h.mux.HandleFunc("GET /api/progress/{module}", h.getProgress)
	h.mux.HandleFunc("POST /api/progress/{module}/{section}/{page}", h.setProgress)
	h.mux.HandleFunc("POST /api/username/{username}", h.setUsername)
	h.mux.HandleFunc("GET /api/username", h.getUsername)
	if !h.deps.Production {
		h.mux.HandleFunc("GET /api/test-session", h.testSession)
		h.mux.HandleFunc("GET /api/test-session/{$}", h.testSession)
	}
}

// storeContext returns the request context bounded by the store timeout.
func (h *Handler) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return database.WithTimeout(r.Context(), h.deps.StoreTimeout)
}

// sessionID returns the caller's session ID or writes a 500.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := session.IDFromContext(r.Context())
	if !ok {
		slog.Error("api: request reached handler without a session")
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return "", false
	}
	return id, true
}

// writeStoreError maps a store or service failure to a status code.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	err = database.Classify(op, err)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusConflict, "session expired")
	case errors.Is(err, session.ErrAlreadyResponded):
		// Already logged as an inconsistency by the tracking service.
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		slog.Error("api: "+op+" failed", slogKeyError, err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error" example:"store unavailable"`
}
