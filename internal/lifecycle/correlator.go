package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"framecast/internal/intent"
	"framecast/internal/models"
	"framecast/internal/observability/metrics"
	"framecast/internal/storage"
)

// Correlator applies inbound lifecycle events to persisted Video and
// LiveStream records, consuming pending upload intent along the way.
type Correlator struct {
	repo    storage.Repository
	intents intent.Cache
	logger  *slog.Logger
}

func NewCorrelator(repo storage.Repository, intents intent.Cache, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{repo: repo, intents: intents, logger: logger}
}

// Handle processes one verified event. Errors are internal processing
// failures for the caller to log; the webhook response is acknowledged
// regardless, so the external platform does not retry.
func (c *Correlator) Handle(ctx context.Context, event Event) error {
	switch event.Type {
	case EventAssetCreated:
		return c.handleAssetCreated(ctx, event.Data)
	case EventAssetReady:
		return c.handleAssetReady(event.Data)
	case EventLiveStreamIdle, EventLiveStreamActive, EventLiveStreamCompleted:
		return c.handleStreamState(event)
	default:
		c.logger.Debug("ignoring unknown lifecycle event", "type", event.Type)
		return nil
	}
}

func (c *Correlator) handleAssetCreated(ctx context.Context, data EventData) error {
	if strings.TrimSpace(data.ID) == "" {
		return fmt.Errorf("asset created event without asset id")
	}

	var (
		ownerID     string
		title       string
		description string
	)
	if data.LiveStreamID != "" {
		// Terminal asset of a live stream: intent lives on the stream record.
		stream, ok := c.repo.GetLiveStreamByExternalID(data.LiveStreamID)
		if !ok {
			return fmt.Errorf("asset %s references unknown live stream %s", data.ID, data.LiveStreamID)
		}
		ownerID = stream.UserID
		title = stream.Title
	} else {
		if data.Meta == nil || strings.TrimSpace(data.Meta.CreatorID) == "" {
			return fmt.Errorf("asset %s carries neither metadata nor a live stream reference", data.ID)
		}
		ownerID = data.Meta.CreatorID
		title = data.Meta.Title
		if data.UploadID != "" {
			cached, ok, err := c.intents.Take(ctx, intent.DescriptionKey(data.UploadID))
			if err != nil {
				// Losing the description is acceptable; losing the video is not.
				c.logger.Warn("intent cache lookup failed", "uploadId", data.UploadID, "error", err)
			} else if ok {
				description = cached
				metrics.Default().ObserveIntentLookup("hit")
			} else {
				metrics.Default().ObserveIntentLookup("miss")
			}
		}
	}

	playback, _ := data.PrimaryPlayback()
	isPrivate := playback.Policy == PlaybackPolicySigned

	// Channel name reflects the owner at event time, not at upload time.
	channelName := ""
	if owner, ok := c.repo.GetUser(ownerID); ok {
		channelName = owner.ChannelName
	}

	video, err := c.repo.CreateVideo(storage.CreateVideoParams{
		UserID:       ownerID,
		UploadID:     data.UploadID,
		AssetID:      data.ID,
		PlaybackID:   playback.ID,
		Title:        title,
		Description:  description,
		ChannelName:  channelName,
		LiveStreamID: data.LiveStreamID,
		IsPrivate:    isPrivate,
		Status:       models.VideoStatusCreated,
	})
	if err != nil {
		return fmt.Errorf("create video for asset %s: %w", data.ID, err)
	}
	c.logger.Info("video created from lifecycle event",
		"videoId", video.ID, "assetId", data.ID, "uploadId", data.UploadID, "liveStreamId", data.LiveStreamID)
	return nil
}

func (c *Correlator) handleAssetReady(data EventData) error {
	var (
		video models.Video
		err   error
	)
	if data.LiveStreamID != "" {
		video, err = c.repo.MarkVideoReadyByLiveStreamID(data.LiveStreamID, data.Duration)
	} else {
		video, err = c.repo.MarkVideoReadyByAssetID(data.ID, data.Duration)
	}
	if err != nil {
		// A ready event with no created row signals delivery mis-ordering.
		return fmt.Errorf("asset ready correlation: %w", err)
	}
	c.logger.Info("video marked ready", "videoId", video.ID, "assetId", data.ID, "duration", data.Duration)
	return nil
}

func (c *Correlator) handleStreamState(event Event) error {
	status, ok := LiveStreamStatusFor(event.Type)
	if !ok {
		return fmt.Errorf("unmapped live stream event %q", event.Type)
	}
	streamID := event.Data.StreamID()
	stream, err := c.repo.UpdateLiveStreamStatus(streamID, status)
	if err != nil {
		return fmt.Errorf("update live stream %s: %w", streamID, err)
	}
	c.logger.Info("live stream status updated", "liveStreamId", streamID, "status", stream.Status)

	if event.Type == EventLiveStreamCompleted {
		if err := c.handleAssetReady(EventData{ID: event.Data.ID, LiveStreamID: streamID, Duration: event.Data.Duration}); err != nil {
			return err
		}
	}
	return nil
}
