package livecomments

import "time"

// Author is the snapshot of the commenting user captured when the comment is
// posted. Viewers render it directly, so later profile edits do not rewrite
// history.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ChannelName string `json:"channelName"`
	Email       string `json:"email"`
}

// Comment is a live comment attached to a video room. Live comments are
// ephemeral: they live in process memory and disappear on restart.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    Author    `json:"user"`
}

// EventType enumerates the live comment events fanned out to viewers.
type EventType string

const (
	EventTypeNewComment     EventType = "new-comment"
	EventTypeCommentDeleted EventType = "comment-deleted"
)

// Event is the unit published to the queue and broadcast to connected
// viewers. Comment is set for new-comment events, CommentID for deletions.
// Origin identifies the gateway instance that produced the event so
// subscribers can skip their own traffic.
type Event struct {
	Type       EventType `json:"type"`
	VideoID    string    `json:"videoId"`
	Comment    *Comment  `json:"comment,omitempty"`
	CommentID  string    `json:"commentId,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
