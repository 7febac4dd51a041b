package livecomments

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxContentLength = 1000
	// maxCommentsPerVideo bounds the replay buffer per room; the oldest
	// comments are evicted first once the cap is reached.
	maxCommentsPerVideo = 500
)

var (
	// ErrEmptyComment is returned when the trimmed content is empty.
	ErrEmptyComment = errors.New("comment cannot be empty")
	// ErrCommentTooLong is returned when the content exceeds the limit.
	ErrCommentTooLong = errors.New("comment exceeds 1000 characters")
)

// Store holds live comments per video in process memory. Nothing is
// persisted; the store exists to replay recent activity to viewers joining a
// room.
type Store struct {
	mu      sync.RWMutex
	byVideo map[string][]Comment
	now     func() time.Time
}

// NewStore initialises an empty live comment store.
func NewStore() *Store {
	return &Store{
		byVideo: make(map[string][]Comment),
		now:     time.Now,
	}
}

// Add records a comment on the given video and returns it with its generated
// ID and timestamps.
func (s *Store) Add(videoID string, author Author, content string) (Comment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Comment{}, ErrEmptyComment
	}
	if len([]rune(trimmed)) > maxContentLength {
		return Comment{}, ErrCommentTooLong
	}
	now := s.now().UTC()
	comment := Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		UserID:    author.ID,
		Content:   trimmed,
		CreatedAt: now,
		UpdatedAt: now,
		Author:    author,
	}
	s.mu.Lock()
	s.byVideo[videoID] = capComments(append(s.byVideo[videoID], comment))
	s.mu.Unlock()
	return comment, nil
}

func capComments(stored []Comment) []Comment {
	if len(stored) <= maxCommentsPerVideo {
		return stored
	}
	overflow := len(stored) - maxCommentsPerVideo
	return append([]Comment(nil), stored[overflow:]...)
}

// Comments returns the comments for a video, newest first.
func (s *Store) Comments(videoID string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byVideo[videoID]
	out := make([]Comment, len(stored))
	for i, comment := range stored {
		out[len(stored)-1-i] = comment
	}
	return out
}

// Delete removes a comment if it exists on the video and was authored by the
// requester. It reports whether anything was removed.
func (s *Store) Delete(videoID, commentID, requesterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.byVideo[videoID]
	for i, comment := range stored {
		if comment.ID != commentID {
			continue
		}
		if comment.UserID != requesterID {
			return false
		}
		s.byVideo[videoID] = append(stored[:i:i], stored[i+1:]...)
		if len(s.byVideo[videoID]) == 0 {
			delete(s.byVideo, videoID)
		}
		return true
	}
	return false
}

// DropVideo discards every live comment for a video. Called when the video
// itself is deleted.
func (s *Store) DropVideo(videoID string) {
	s.mu.Lock()
	delete(s.byVideo, videoID)
	s.mu.Unlock()
}

// insert mirrors a comment created on another gateway instance. The ID and
// timestamps are kept as-is.
func (s *Store) insert(comment Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byVideo[comment.VideoID] {
		if existing.ID == comment.ID {
			return
		}
	}
	s.byVideo[comment.VideoID] = capComments(append(s.byVideo[comment.VideoID], comment))
}

// remove mirrors a deletion performed on another gateway instance, so no
// author check applies.
func (s *Store) remove(videoID, commentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.byVideo[videoID]
	for i, comment := range stored {
		if comment.ID == commentID {
			s.byVideo[videoID] = append(stored[:i:i], stored[i+1:]...)
			if len(s.byVideo[videoID]) == 0 {
				delete(s.byVideo, videoID)
			}
			return
		}
	}
}
