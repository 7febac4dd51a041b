package storage

import (
	"fmt"
	"sort"
	"time"

	"framecast/internal/models"
)

// ShareRecipient describes one user a video has been shared with.
type ShareRecipient struct {
	GrantID     string    `json:"grantId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	ChannelName string    `json:"channelName"`
	SharedAt    time.Time `json:"sharedAt"`
}

// SharedVideoEntry pairs a video with the identity of the user who shared it.
type SharedVideoEntry struct {
	Video           models.Video `json:"video"`
	SharedByUserID  string       `json:"sharedByUserId"`
	SharedByName    string       `json:"sharedByName"`
	SharedByChannel string       `json:"sharedByChannel"`
	SharedAt        time.Time    `json:"sharedAt"`
}

// ShareVideo grants granteeID access to the video. Only the owner may grant;
// re-granting an existing pair returns the existing grant unchanged.
func (s *Storage) ShareVideo(videoID, granteeID, granterID string) (models.SharedVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return models.SharedVideo{}, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if _, ok := s.data.Users[granteeID]; !ok {
		return models.SharedVideo{}, fmt.Errorf("%w: user %s", ErrNotFound, granteeID)
	}
	if video.UserID != granterID {
		return models.SharedVideo{}, fmt.Errorf("%w: only the owner may share video %s", ErrForbidden, videoID)
	}

	for _, share := range s.data.Shares {
		if share.VideoID == videoID && share.SharedWithUserID == granteeID {
			return share, nil
		}
	}

	id, err := generateID()
	if err != nil {
		return models.SharedVideo{}, err
	}
	share := models.SharedVideo{
		ID:               id,
		VideoID:          videoID,
		SharedWithUserID: granteeID,
		SharedByUserID:   granterID,
		CreatedAt:        time.Now().UTC(),
	}

	s.data.Shares[id] = share
	if err := s.persist(); err != nil {
		delete(s.data.Shares, id)
		return models.SharedVideo{}, err
	}
	return share, nil
}

// UnshareVideo revokes the grant if present. Revoking a grant that does not
// exist is a no-op.
func (s *Storage) UnshareVideo(videoID, granteeID, granterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if video.UserID != granterID {
		return fmt.Errorf("%w: only the owner may unshare video %s", ErrForbidden, videoID)
	}

	for id, share := range s.data.Shares {
		if share.VideoID == videoID && share.SharedWithUserID == granteeID {
			delete(s.data.Shares, id)
			if err := s.persist(); err != nil {
				s.data.Shares[id] = share
				return err
			}
			return nil
		}
	}
	return nil
}

// ListVideoShares returns the users a video is shared with. Only the owner
// may ask.
func (s *Storage) ListVideoShares(videoID, requesterID string) ([]ShareRecipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if video.UserID != requesterID {
		return nil, fmt.Errorf("%w: only the owner may list shares for video %s", ErrForbidden, videoID)
	}

	recipients := make([]ShareRecipient, 0)
	for _, share := range s.data.Shares {
		if share.VideoID != videoID {
			continue
		}
		recipient := ShareRecipient{
			GrantID:  share.ID,
			UserID:   share.SharedWithUserID,
			SharedAt: share.CreatedAt,
		}
		if user, ok := s.data.Users[share.SharedWithUserID]; ok {
			recipient.DisplayName = user.DisplayName
			recipient.ChannelName = user.ChannelName
		}
		recipients = append(recipients, recipient)
	}
	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].SharedAt.Before(recipients[j].SharedAt)
	})
	return recipients, nil
}

// ListSharedWithUser returns every video shared with the user, each annotated
// with the granter's identity, newest grant first.
func (s *Storage) ListSharedWithUser(userID string) []SharedVideoEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]SharedVideoEntry, 0)
	for _, share := range s.data.Shares {
		if share.SharedWithUserID != userID {
			continue
		}
		video, ok := s.data.Videos[share.VideoID]
		if !ok {
			continue
		}
		entry := SharedVideoEntry{
			Video:          video,
			SharedByUserID: share.SharedByUserID,
			SharedAt:       share.CreatedAt,
		}
		if granter, ok := s.data.Users[share.SharedByUserID]; ok {
			entry.SharedByName = granter.DisplayName
			entry.SharedByChannel = granter.ChannelName
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SharedAt.After(entries[j].SharedAt)
	})
	return entries
}

// CanAccessVideo reports whether the user owns the video or holds a share
// grant for it. This predicate is the single source of truth consulted before
// privileged operations on a private video.
func (s *Storage) CanAccessVideo(userID, videoID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return false
	}
	if video.UserID == userID {
		return true
	}
	for _, share := range s.data.Shares {
		if share.VideoID == videoID && share.SharedWithUserID == userID {
			return true
		}
	}
	return false
}
