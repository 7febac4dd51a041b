package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"framecast/internal/models"
)

const maxCommentLength = 1000

// CreateComment appends a comment to the video's thread. Content is trimmed
// and must be between 1 and 1000 characters after trimming; the limit counts
// characters, not bytes.
func (s *Storage) CreateComment(videoID, userID, content string) (models.Comment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Comment{}, fmt.Errorf("%w: comment content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > maxCommentLength {
		return models.Comment{}, fmt.Errorf("%w: comment content exceeds %d characters", ErrInvalidInput, maxCommentLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Comment{}, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if _, ok := s.data.Users[userID]; !ok {
		return models.Comment{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	id, err := generateID()
	if err != nil {
		return models.Comment{}, err
	}
	now := time.Now().UTC()
	comment := models.Comment{
		ID:        id,
		VideoID:   videoID,
		UserID:    userID,
		Content:   trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.data.Comments[id] = comment
	if err := s.persist(); err != nil {
		delete(s.data.Comments, id)
		return models.Comment{}, err
	}
	return comment, nil
}

// ListComments returns the video's comments, newest first.
func (s *Storage) ListComments(videoID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}

	comments := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			// IDs encode insertion order, so this keeps later comments
			// ahead of earlier ones sharing a timestamp.
			return comments[i].ID > comments[j].ID
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

// DeleteComment removes the comment if it belongs to the video and was
// authored by the requester. A comment that exists but belongs to someone
// else is reported as not found rather than forbidden, so callers cannot
// probe for other users' comment ids.
func (s *Storage) DeleteComment(videoID, commentID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[commentID]
	if !ok || comment.VideoID != videoID || comment.UserID != requesterID {
		return fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
	}

	delete(s.data.Comments, commentID)
	if err := s.persist(); err != nil {
		s.data.Comments[commentID] = comment
		return err
	}
	return nil
}
