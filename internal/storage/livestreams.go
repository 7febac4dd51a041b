package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"framecast/internal/models"
)

// CreateLiveStreamParams holds the attributes recorded when the owner starts
// a live stream. The external ids and ingest key come back from the hosting
// platform's create call.
type CreateLiveStreamParams struct {
	UserID       string
	LiveStreamID string
	Title        string
	IsPrivate    bool
	StreamKey    string
	PlaybackID   string
}

func (s *Storage) CreateLiveStream(params CreateLiveStreamParams) (models.LiveStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.UserID]; !ok {
		return models.LiveStream{}, fmt.Errorf("%w: user %s", ErrNotFound, params.UserID)
	}
	externalID := strings.TrimSpace(params.LiveStreamID)
	if externalID == "" {
		return models.LiveStream{}, fmt.Errorf("%w: liveStreamId is required", ErrInvalidInput)
	}

	id, err := generateID()
	if err != nil {
		return models.LiveStream{}, err
	}

	now := time.Now().UTC()
	stream := models.LiveStream{
		ID:           id,
		LiveStreamID: externalID,
		UserID:       params.UserID,
		Title:        strings.TrimSpace(params.Title),
		IsPrivate:    params.IsPrivate,
		StreamKey:    strings.TrimSpace(params.StreamKey),
		PlaybackID:   strings.TrimSpace(params.PlaybackID),
		Status:       models.LiveStreamStatusIdle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.data.LiveStreams[id] = stream
	if err := s.persist(); err != nil {
		delete(s.data.LiveStreams, id)
		return models.LiveStream{}, err
	}
	return stream, nil
}

func (s *Storage) GetLiveStream(id string) (models.LiveStream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream, ok := s.data.LiveStreams[id]
	return stream, ok
}

func (s *Storage) GetLiveStreamByExternalID(externalID string) (models.LiveStream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stream := range s.data.LiveStreams {
		if stream.LiveStreamID == externalID {
			return stream, true
		}
	}
	return models.LiveStream{}, false
}

func (s *Storage) ListLiveStreams(userID string) []models.LiveStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	streams := make([]models.LiveStream, 0)
	for _, stream := range s.data.LiveStreams {
		if stream.UserID == userID {
			streams = append(streams, stream)
		}
	}
	sortLiveStreamsNewestFirst(streams)
	return streams
}

func (s *Storage) ListPublicActiveLiveStreams() []models.LiveStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	streams := make([]models.LiveStream, 0)
	for _, stream := range s.data.LiveStreams {
		if !stream.IsPrivate && stream.Status == models.LiveStreamStatusActive {
			streams = append(streams, stream)
		}
	}
	sortLiveStreamsNewestFirst(streams)
	return streams
}

// UpdateLiveStreamStatus applies a status reported by the hosting platform.
// Transitions are monotonic (idle -> active -> completed); an event that
// would move the stream backwards leaves the record unchanged, which keeps
// replayed webhook deliveries harmless.
func (s *Storage) UpdateLiveStreamStatus(externalID string, status models.LiveStreamStatus) (models.LiveStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status.Rank() == 0 {
		return models.LiveStream{}, fmt.Errorf("%w: unknown live stream status %q", ErrInvalidInput, status)
	}

	for id, stream := range s.data.LiveStreams {
		if stream.LiveStreamID != externalID {
			continue
		}
		if status.Rank() <= stream.Status.Rank() {
			return stream, nil
		}
		original := stream
		stream.Status = status
		stream.UpdatedAt = time.Now().UTC()
		s.data.LiveStreams[id] = stream
		if err := s.persist(); err != nil {
			s.data.LiveStreams[id] = original
			return models.LiveStream{}, err
		}
		return stream, nil
	}
	return models.LiveStream{}, fmt.Errorf("%w: live stream %s", ErrNotFound, externalID)
}

// DeleteLiveStream removes the stream record. The deleted record is returned
// so the caller can tear down ingest on the hosting platform.
func (s *Storage) DeleteLiveStream(id, requesterID string) (models.LiveStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.data.LiveStreams[id]
	if !ok {
		return models.LiveStream{}, fmt.Errorf("%w: live stream %s", ErrNotFound, id)
	}
	if stream.UserID != requesterID {
		return models.LiveStream{}, fmt.Errorf("%w: only the owner may delete live stream %s", ErrForbidden, id)
	}

	delete(s.data.LiveStreams, id)
	if err := s.persist(); err != nil {
		s.data.LiveStreams[id] = stream
		return models.LiveStream{}, err
	}
	return stream, nil
}

func sortLiveStreamsNewestFirst(streams []models.LiveStream) {
	sort.Slice(streams, func(i, j int) bool {
		if streams[i].CreatedAt.Equal(streams[j].CreatedAt) {
			return streams[i].ID < streams[j].ID
		}
		return streams[i].CreatedAt.After(streams[j].CreatedAt)
	})
}
