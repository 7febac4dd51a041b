package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"framecast/internal/intent"
	"framecast/internal/models"
	"framecast/internal/storage"
	"framecast/internal/videohost"
)

type createUploadRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

type createUploadResponse struct {
	UploadID string `json:"uploadId"`
	URL      string `json:"url"`
}

// VideoUpload mints a direct-upload URL at the external host and parks the
// description until the asset-created webhook arrives.
func (h *Handler) VideoUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req createUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}
	upload, err := h.videoHost().CreateUpload(r.Context(), videohost.UploadParams{
		UserID:    user.ID,
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
	if description := strings.TrimSpace(req.Description); description != "" && h.Intents != nil {
		if err := h.Intents.Set(r.Context(), intent.DescriptionKey(upload.ID), description, intent.DefaultTTL); err != nil {
			// The upload URL is already minted; the description is the
			// only casualty.
			h.logger().Warn("failed to cache upload description", "uploadId", upload.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, createUploadResponse{UploadID: upload.ID, URL: upload.URL})
}

// Videos serves the public home feed: ready, public videos, paginated.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)
	videos, total := h.Store.ListReadyPublicVideos(page, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"total":  total,
		"page":   page,
	})
}

// VideoSubtree dispatches everything under /api/videos/.
func (h *Handler) VideoSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/videos/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch parts[0] {
	case "upload":
		h.VideoUpload(w, r)
	case "own":
		h.ownVideos(w, r, parts[1:])
	case "shared-with-me":
		h.sharedWithMe(w, r)
	case "player":
		h.playerLookup(w, r, parts[1:])
	case "sign":
		h.signPlayback(w, r, parts[1:])
	default:
		h.videoByID(w, r, parts[0], parts[1:])
	}
}

func (h *Handler) ownVideos(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	private := len(rest) == 1 && rest[0] == "private"
	if len(rest) > 1 || (len(rest) == 1 && !private) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Video{
		"videos": h.Store.ListVideos(user.ID, private),
	})
}

func (h *Handler) sharedWithMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]storage.SharedVideoEntry{
		"videos": h.Store.ListSharedWithUser(user.ID),
	})
}

func (h *Handler) playerLookup(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if len(rest) != 1 || rest[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("playback id required"))
		return
	}
	video, ok := h.Store.GetVideoByPlaybackID(rest[0])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no video for playback id %s", rest[0]))
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (h *Handler) signPlayback(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := h.requireAuthenticatedUser(w, r); !ok {
		return
	}
	if len(rest) != 1 || rest[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("playback id required"))
		return
	}
	tokens, err := h.videoHost().SignPlayback(rest[0])
	if err != nil {
		if errors.Is(err, videohost.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

type metadataUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) videoByID(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
	if len(rest) > 0 {
		switch rest[0] {
		case "shares":
			h.videoShares(w, r, videoID, rest[1:])
			return
		case "comments":
			h.videoComments(w, r, videoID, rest[1:])
			return
		case "livecomments":
			h.videoLiveComments(w, r, videoID, rest[1:])
			return
		case "livestream":
			h.videoLiveStreamStatus(w, r, videoID, rest[1:])
			return
		default:
			writeError(w, http.StatusNotFound, errors.New("not found"))
			return
		}
	}
	switch r.Method {
	case http.MethodGet:
		video, ok := h.Store.GetVideo(videoID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
			return
		}
		writeJSON(w, http.StatusOK, video)
	case http.MethodPatch:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		var req metadataUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		video, err := h.Store.UpdateVideoMetadata(videoID, user.ID, storage.VideoMetadataUpdate{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, video)
	case http.MethodDelete:
		h.deleteVideo(w, r, videoID)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

// videoLiveStreamStatus reports the broadcast state behind a recorded video
// so players can tell a finished stream from one still on air.
func (h *Handler) videoLiveStreamStatus(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
	if len(rest) > 0 {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	video, ok := h.Store.GetVideo(videoID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}
	if video.LiveStreamID == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s has no live stream", videoID))
		return
	}
	stream, ok := h.Store.GetLiveStreamByExternalID(video.LiveStreamID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("live stream %s not found", video.LiveStreamID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"videoId":      video.ID,
		"liveStreamId": stream.LiveStreamID,
		"status":       string(stream.Status),
	})
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	video, err := h.Store.DeleteVideo(videoID, user.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	// The row and its grants/comments are gone; external teardown is best
	// effort from here.
	if video.AssetID != "" {
		if err := h.videoHost().DeleteAsset(r.Context(), video.AssetID); err != nil && !errors.Is(err, videohost.ErrUnavailable) {
			h.logger().Warn("asset teardown failed", "assetId", video.AssetID, "error", err)
		}
	}
	if h.LiveComments != nil {
		h.LiveComments.DropVideo(videoID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": video.ID})
}

type shareRequest struct {
	UserID      string `json:"userId"`
	ChannelName string `json:"channelName"`
}

func (h *Handler) videoShares(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if len(rest) == 1 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := h.Store.UnshareVideo(videoID, rest[0], user.ID); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
		return
	}
	if len(rest) > 1 {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		shares, err := h.Store.ListVideoShares(videoID, user.ID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]storage.ShareRecipient{"shares": shares})
	case http.MethodPost:
		var req shareRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		granteeID := strings.TrimSpace(req.UserID)
		if granteeID == "" && req.ChannelName != "" {
			grantee, exists := h.Store.GetUserByChannelName(req.ChannelName)
			if !exists {
				writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", req.ChannelName))
				return
			}
			granteeID = grantee.ID
		}
		if granteeID == "" {
			writeError(w, http.StatusBadRequest, errors.New("userId or channelName is required"))
			return
		}
		grant, err := h.Store.ShareVideo(videoID, granteeID, user.ID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, grant)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) videoComments(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
	if len(rest) == 1 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		if err := h.Store.DeleteComment(videoID, rest[0], user.ID); err != nil {
			writeStorageError(w, err)
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
		comments, err := h.Store.ListComments(videoID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]models.Comment{"comments": comments})
	case http.MethodPost:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		var req commentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment, err := h.Store.CreateComment(videoID, user.ID, req.Content)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
