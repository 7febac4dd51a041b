package api

import (
	"errors"
	"net/http"

	"framecast/internal/livecomments"
)

func (h *Handler) liveCommentsEnabled(w http.ResponseWriter) bool {
	if h.LiveComments == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("live comments are not enabled"))
		return false
	}
	return true
}

// videoLiveComments handles the ephemeral comment rail over plain HTTP, for
// clients that cannot hold a websocket open.
func (h *Handler) videoLiveComments(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
	if !h.liveCommentsEnabled(w) {
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if len(rest) == 1 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := h.LiveComments.DeleteComment(r.Context(), user, videoID, rest[0]); err != nil {
			h.writeLiveCommentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}
	if len(rest) > 1 {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		comments, err := h.LiveComments.Comments(videoID, user.ID)
		if err != nil {
			h.writeLiveCommentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]livecomments.Comment{"comments": comments})
	case http.MethodPost:
		var req commentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment, err := h.LiveComments.PostComment(r.Context(), user, videoID, req.Content)
		if err != nil {
			h.writeLiveCommentError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (h *Handler) writeLiveCommentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, livecomments.ErrEmptyComment), errors.Is(err, livecomments.ErrCommentTooLong):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, livecomments.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, livecomments.ErrVideoNotFound), errors.Is(err, livecomments.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// LiveCommentSocket upgrades /api/livecomments/ws. Authentication happens
// before the upgrade; after it the connection speaks the gateway protocol.
func (h *Handler) LiveCommentSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if !h.liveCommentsEnabled(w) {
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	h.LiveComments.HandleConnection(w, r, user)
}
