// Package lifecycle correlates asynchronous notifications from the external
// video host with locally captured upload intent and persisted records.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event type vocabulary used by the external video host.
const (
	EventAssetCreated        = "video.asset.created"
	EventAssetReady          = "video.asset.ready"
	EventLiveStreamIdle      = "video.live_stream.idle"
	EventLiveStreamActive    = "video.live_stream.active"
	EventLiveStreamCompleted = "video.asset.live_stream_completed"
)

// Event is one inbound lifecycle notification. Payload fields vary by event
// kind and by origin: a direct upload carries Meta, a live-stream-spawned
// asset carries LiveStreamID instead. Consumers branch on presence.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	ID           string       `json:"id"`
	UploadID     string       `json:"upload_id,omitempty"`
	Duration     float64      `json:"duration,omitempty"`
	Meta         *EventMeta   `json:"meta,omitempty"`
	PlaybackIDs  []PlaybackID `json:"playback_ids,omitempty"`
	LiveStreamID string       `json:"live_stream_id,omitempty"`
}

type EventMeta struct {
	Title     string `json:"title,omitempty"`
	CreatorID string `json:"creator_id"`
}

type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// PlaybackPolicySigned marks content that needs a short-lived token to view.
const PlaybackPolicySigned = "signed"

// ParseEvent decodes a raw webhook payload. Unknown event types are not an
// error here; the correlator ignores them so new upstream event kinds do not
// break acknowledgement.
func ParseEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("decode lifecycle event: %w", err)
	}
	if strings.TrimSpace(event.Type) == "" {
		return Event{}, fmt.Errorf("decode lifecycle event: missing type")
	}
	return event, nil
}

// PrimaryPlayback returns the first playback binding, if any.
func (d EventData) PrimaryPlayback() (PlaybackID, bool) {
	if len(d.PlaybackIDs) == 0 {
		return PlaybackID{}, false
	}
	return d.PlaybackIDs[0], true
}

// StreamID resolves the external live stream id an event refers to. Stream
// state events carry it as the payload id; asset events reference it via
// live_stream_id.
func (d EventData) StreamID() string {
	if d.LiveStreamID != "" {
		return d.LiveStreamID
	}
	return d.ID
}
