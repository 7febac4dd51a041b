package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"framecast/internal/auth"
	"framecast/internal/intent"
	"framecast/internal/lifecycle"
	"framecast/internal/livecomments"
	"framecast/internal/storage"
	"framecast/internal/videohost"
)

// Handler carries the dependencies shared by every HTTP endpoint.
type Handler struct {
	Store         storage.Repository
	Sessions      *auth.Manager
	Intents       intent.Cache
	Correlator    *lifecycle.Correlator
	VideoHost     videohost.Client
	LiveComments  *livecomments.Gateway
	WebhookSecret string
	Logger        *slog.Logger
}

// NewHandler wires a handler around the repository and session manager,
// defaulting the remaining collaborators to inert implementations.
func NewHandler(store storage.Repository, sessions *auth.Manager) *Handler {
	if sessions == nil {
		sessions = auth.NewManager(24 * time.Hour)
	}
	return &Handler{
		Store:     store,
		Sessions:  sessions,
		VideoHost: videohost.Disabled{},
		Logger:    slog.Default(),
	}
}

func (h *Handler) sessionManager() *auth.Manager {
	if h.Sessions == nil {
		h.Sessions = auth.NewManager(24 * time.Hour)
	}
	return h.Sessions
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) videoHost() videohost.Client {
	if h.VideoHost == nil {
		return videohost.Disabled{}
	}
	return h.VideoHost
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// WriteError is an exported helper for returning JSON API errors.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, err)
}

// writeStorageError maps the repository's sentinel errors onto HTTP statuses.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// Health reports whether the repository and session store are reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			status = "degraded"
			checks["storage"] = err.Error()
		} else {
			checks["storage"] = "ok"
		}
	}
	if err := h.sessionManager().Ping(r.Context()); err != nil {
		status = "degraded"
		checks["sessions"] = err.Error()
	} else {
		checks["sessions"] = "ok"
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
