package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"framecast/internal/models"
	"framecast/internal/storage"
	"framecast/internal/videohost"
)

type createLiveStreamRequest struct {
	Title     string `json:"title"`
	IsPrivate bool   `json:"isPrivate"`
}

// LiveStreams handles the /api/livestreams collection: list own streams,
// provision a new one.
func (h *Handler) LiveStreams(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string][]models.LiveStream{
			"livestreams": h.Store.ListLiveStreams(user.ID),
		})
	case http.MethodPost:
		var req createLiveStreamRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, errors.New("title is required"))
			return
		}
		provisioned, err := h.videoHost().CreateLiveStream(r.Context(), videohost.LiveStreamParams{
			Title:     req.Title,
			IsPrivate: req.IsPrivate,
		})
		if err != nil {
			if errors.Is(err, videohost.ErrUnavailable) {
				writeError(w, http.StatusServiceUnavailable, err)
				return
			}
			writeError(w, http.StatusBadGateway, err)
			return
		}
		stream, err := h.Store.CreateLiveStream(storage.CreateLiveStreamParams{
			UserID:       user.ID,
			LiveStreamID: provisioned.ID,
			Title:        req.Title,
			IsPrivate:    req.IsPrivate,
			StreamKey:    provisioned.StreamKey,
			PlaybackID:   provisioned.PlaybackID,
		})
		if err != nil {
			// The external stream exists but we cannot record it; tear it
			// down so the key is not orphaned.
			if derr := h.videoHost().DeleteLiveStream(r.Context(), provisioned.ID); derr != nil {
				h.logger().Warn("orphaned live stream teardown failed", "liveStreamId", provisioned.ID, "error", derr)
			}
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stream)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// ActiveLiveStreams lists public streams currently on air. No auth required.
func (h *Handler) ActiveLiveStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	streams := h.Store.ListPublicActiveLiveStreams()
	for i := range streams {
		// Ingest keys never leave the owner's view.
		streams[i].StreamKey = ""
	}
	writeJSON(w, http.StatusOK, map[string][]models.LiveStream{
		"livestreams": streams,
	})
}

// LiveStreamSubtree dispatches /api/livestreams/{id} and
// /api/livestreams/active.
func (h *Handler) LiveStreamSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/livestreams/"), "/")
	if rest == "" {
		h.LiveStreams(w, r)
		return
	}
	if rest == "active" {
		h.ActiveLiveStreams(w, r)
		return
	}
	if strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		stream, exists := h.Store.GetLiveStream(rest)
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("live stream %s not found", rest))
			return
		}
		if stream.UserID != user.ID {
			// Stream keys are credentials; only the owner sees the record.
			writeError(w, http.StatusForbidden, errors.New("forbidden"))
			return
		}
		writeJSON(w, http.StatusOK, stream)
	case http.MethodDelete:
		h.deleteLiveStream(w, r, rest)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (h *Handler) deleteLiveStream(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	stream, err := h.Store.DeleteLiveStream(id, user.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if stream.LiveStreamID != "" {
		if err := h.videoHost().DeleteLiveStream(r.Context(), stream.LiveStreamID); err != nil && !errors.Is(err, videohost.ErrUnavailable) {
			h.logger().Warn("live stream teardown failed", "liveStreamId", stream.LiveStreamID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": stream.ID})
}
