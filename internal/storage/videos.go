package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"framecast/internal/models"
)

// CreateVideoParams captures everything the correlator resolves before a
// Video row is written.
type CreateVideoParams struct {
	UserID       string
	UploadID     string
	AssetID      string
	PlaybackID   string
	Title        string
	Description  string
	ChannelName  string
	LiveStreamID string
	IsPrivate    bool
	Status       models.VideoStatus
}

// CreateVideo inserts a new video record. Webhook delivery is at-least-once,
// so an asset id that already exists returns the existing row instead of
// double-inserting.
func (s *Storage) CreateVideo(params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assetID := strings.TrimSpace(params.AssetID)
	if assetID == "" {
		return models.Video{}, fmt.Errorf("%w: assetId is required", ErrInvalidInput)
	}
	if _, ok := s.data.Users[params.UserID]; !ok {
		return models.Video{}, fmt.Errorf("%w: user %s", ErrNotFound, params.UserID)
	}
	for _, existing := range s.data.Videos {
		if existing.AssetID == assetID {
			return existing, nil
		}
	}

	id, err := generateID()
	if err != nil {
		return models.Video{}, err
	}

	status := params.Status
	if status == "" {
		status = models.VideoStatusPreparing
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:           id,
		UserID:       params.UserID,
		UploadID:     strings.TrimSpace(params.UploadID),
		AssetID:      assetID,
		PlaybackID:   strings.TrimSpace(params.PlaybackID),
		Title:        strings.TrimSpace(params.Title),
		Description:  params.Description,
		ChannelName:  strings.TrimSpace(params.ChannelName),
		LiveStreamID: strings.TrimSpace(params.LiveStreamID),
		IsPrivate:    params.IsPrivate,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		delete(s.data.Videos, id)
		return models.Video{}, err
	}

	return video, nil
}

func (s *Storage) GetVideo(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok
}

func (s *Storage) GetVideoByAssetID(assetID string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, video := range s.data.Videos {
		if video.AssetID == assetID {
			return video, true
		}
	}
	return models.Video{}, false
}

func (s *Storage) GetVideoByPlaybackID(playbackID string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, video := range s.data.Videos {
		if video.PlaybackID == playbackID {
			return video, true
		}
	}
	return models.Video{}, false
}

func (s *Storage) GetVideoByLiveStreamID(liveStreamID string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, video := range s.data.Videos {
		if video.LiveStreamID != "" && video.LiveStreamID == liveStreamID {
			return video, true
		}
	}
	return models.Video{}, false
}

// ListVideos returns the user's videos filtered by privacy, newest first.
func (s *Storage) ListVideos(userID string, private bool) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	videos := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.UserID == userID && video.IsPrivate == private {
			videos = append(videos, video)
		}
	}
	sortVideosNewestFirst(videos)
	return videos
}

// ListReadyPublicVideos pages through playable public videos for the home
// feed and reports the total match count.
func (s *Storage) ListReadyPublicVideos(page, limit int) ([]models.Video, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultFeedPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	videos := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if !video.IsPrivate && video.Status == models.VideoStatusReady {
			videos = append(videos, video)
		}
	}
	sortVideosNewestFirst(videos)
	total := len(videos)
	start := (page - 1) * limit
	if start >= total {
		return []models.Video{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return videos[start:end], total
}

// MarkVideoReadyByAssetID advances the video to ready and records its
// duration. A missing asset id is a correlation inconsistency the caller must
// report; applying the same update twice is harmless.
func (s *Storage) MarkVideoReadyByAssetID(assetID string, duration float64) (models.Video, error) {
	return s.markVideoReady(func(v models.Video) bool { return v.AssetID == assetID }, "asset "+assetID, duration)
}

// MarkVideoReadyByLiveStreamID performs the same ready transition for the
// terminal asset of a completed live stream.
func (s *Storage) MarkVideoReadyByLiveStreamID(liveStreamID string, duration float64) (models.Video, error) {
	return s.markVideoReady(func(v models.Video) bool {
		return v.LiveStreamID != "" && v.LiveStreamID == liveStreamID
	}, "live stream "+liveStreamID, duration)
}

func (s *Storage) markVideoReady(match func(models.Video) bool, label string, duration float64) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, video := range s.data.Videos {
		if !match(video) {
			continue
		}
		original := video
		video.Status = models.VideoStatusReady
		if duration > 0 {
			video.Duration = duration
		}
		video.UpdatedAt = time.Now().UTC()
		s.data.Videos[id] = video
		if err := s.persist(); err != nil {
			s.data.Videos[id] = original
			return models.Video{}, err
		}
		return video, nil
	}
	return models.Video{}, fmt.Errorf("%w: video for %s", ErrNotFound, label)
}

// VideoMetadataUpdate represents owner-editable video fields.
type VideoMetadataUpdate struct {
	Title       *string
	Description *string
}

func (s *Storage) UpdateVideoMetadata(id, requesterID string, update VideoMetadataUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	if video.UserID != requesterID {
		return models.Video{}, fmt.Errorf("%w: only the owner may edit video %s", ErrForbidden, id)
	}

	original := video
	if update.Title != nil {
		video.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		video.Description = *update.Description
	}
	video.UpdatedAt = time.Now().UTC()

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		s.data.Videos[id] = original
		return models.Video{}, err
	}
	return video, nil
}

// DeleteVideo removes the video along with its share grants and comments.
// The deleted record is returned so the caller can tear down the external
// asset afterwards.
func (s *Storage) DeleteVideo(id, requesterID string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	if video.UserID != requesterID {
		return models.Video{}, fmt.Errorf("%w: only the owner may delete video %s", ErrForbidden, id)
	}

	removedShares := make(map[string]models.SharedVideo)
	for shareID, share := range s.data.Shares {
		if share.VideoID == id {
			removedShares[shareID] = share
			delete(s.data.Shares, shareID)
		}
	}
	removedComments := make(map[string]models.Comment)
	for commentID, comment := range s.data.Comments {
		if comment.VideoID == id {
			removedComments[commentID] = comment
			delete(s.data.Comments, commentID)
		}
	}
	delete(s.data.Videos, id)

	if err := s.persist(); err != nil {
		s.data.Videos[id] = video
		for shareID, share := range removedShares {
			s.data.Shares[shareID] = share
		}
		for commentID, comment := range removedComments {
			s.data.Comments[commentID] = comment
		}
		return models.Video{}, err
	}
	return video, nil
}

func sortVideosNewestFirst(videos []models.Video) {
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}
