package lifecycle

import "framecast/internal/models"

// VideoStatusFor translates an external asset event type to the internal
// video status vocabulary.
func VideoStatusFor(eventType string) (models.VideoStatus, bool) {
	switch eventType {
	case EventAssetCreated:
		return models.VideoStatusCreated, true
	case EventAssetReady:
		return models.VideoStatusReady, true
	default:
		return "", false
	}
}

// LiveStreamStatusFor translates an external stream event type to the
// internal live stream status vocabulary.
func LiveStreamStatusFor(eventType string) (models.LiveStreamStatus, bool) {
	switch eventType {
	case EventLiveStreamIdle:
		return models.LiveStreamStatusIdle, true
	case EventLiveStreamActive:
		return models.LiveStreamStatusActive, true
	case EventLiveStreamCompleted:
		return models.LiveStreamStatusCompleted, true
	default:
		return "", false
	}
}
