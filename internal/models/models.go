package models

import "time"

// VideoStatus tracks the lifecycle of an externally hosted asset. Statuses
// only advance forward: a video is created when the hosting platform reports
// the asset exists and becomes ready once it is playable.
type VideoStatus string

const (
	VideoStatusPreparing VideoStatus = "preparing"
	VideoStatusCreated   VideoStatus = "created"
	VideoStatusReady     VideoStatus = "ready"
)

// LiveStreamStatus tracks a live stream through its monotonic
// idle -> active -> completed progression.
type LiveStreamStatus string

const (
	LiveStreamStatusIdle      LiveStreamStatus = "idle"
	LiveStreamStatusActive    LiveStreamStatus = "active"
	LiveStreamStatusCompleted LiveStreamStatus = "completed"
)

// Rank orders live stream statuses so transitions can be checked for
// monotonicity. Unknown statuses rank below idle.
func (s LiveStreamStatus) Rank() int {
	switch s {
	case LiveStreamStatusIdle:
		return 1
	case LiveStreamStatusActive:
		return 2
	case LiveStreamStatusCompleted:
		return 3
	default:
		return 0
	}
}

// Rank orders video statuses; used to keep status advancement forward-only.
func (s VideoStatus) Rank() int {
	switch s {
	case VideoStatusPreparing:
		return 1
	case VideoStatusCreated:
		return 2
	case VideoStatusReady:
		return 3
	default:
		return 0
	}
}

type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	ChannelName  string    `json:"channelName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Video is the persisted record of a one-shot upload or the terminal asset of
// a completed live stream. AssetID and PlaybackID are unique once assigned.
type Video struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	UploadID     string      `json:"uploadId,omitempty"`
	AssetID      string      `json:"assetId"`
	PlaybackID   string      `json:"playbackId"`
	Title        string      `json:"title,omitempty"`
	Description  string      `json:"description,omitempty"`
	ChannelName  string      `json:"channelName,omitempty"`
	LiveStreamID string      `json:"liveStreamId,omitempty"`
	IsPrivate    bool        `json:"isPrivate"`
	Status       VideoStatus `json:"status"`
	Duration     float64     `json:"duration,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type LiveStream struct {
	ID           string           `json:"id"`
	LiveStreamID string           `json:"liveStreamId"`
	UserID       string           `json:"userId"`
	Title        string           `json:"title,omitempty"`
	IsPrivate    bool             `json:"isPrivate"`
	StreamKey    string           `json:"streamKey,omitempty"`
	PlaybackID   string           `json:"playbackId"`
	Status       LiveStreamStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// SharedVideo grants one user access to another user's video. At most one
// grant exists per (video, grantee) pair.
type SharedVideo struct {
	ID               string    `json:"id"`
	VideoID          string    `json:"videoId"`
	SharedWithUserID string    `json:"sharedWithUserId"`
	SharedByUserID   string    `json:"sharedByUserId"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
