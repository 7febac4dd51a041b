// Package videohost wraps the external hosting platform's REST API: direct
// upload issuance, live stream provisioning, asset teardown and signed
// playback tokens.
package videohost

import (
	"context"
	"fmt"
)

// ErrUnavailable is returned by the disabled client when no platform
// credentials were configured.
var ErrUnavailable = fmt.Errorf("video host client unavailable")

// UploadParams captures the uploader's intent at upload-creation time.
type UploadParams struct {
	UserID    string
	Title     string
	IsPrivate bool
}

// Upload is the platform's answer to a direct upload request: an id the
// asset-created event will later reference, and a URL the client PUTs the
// file to.
type Upload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type LiveStreamParams struct {
	Title     string
	IsPrivate bool
}

type LiveStream struct {
	ID         string `json:"id"`
	StreamKey  string `json:"streamKey"`
	PlaybackID string `json:"playbackId"`
}

// PlaybackTokens carry short-lived viewing credentials for signed content.
type PlaybackTokens struct {
	Video     string `json:"tokenVideo"`
	Thumbnail string `json:"tokenThumbnail"`
}

type Client interface {
	CreateUpload(ctx context.Context, params UploadParams) (Upload, error)
	CreateLiveStream(ctx context.Context, params LiveStreamParams) (LiveStream, error)
	DeleteLiveStream(ctx context.Context, liveStreamID string) error
	DeleteAsset(ctx context.Context, assetID string) error
	SignPlayback(playbackID string) (PlaybackTokens, error)
}

// Disabled satisfies Client when the platform integration is not configured.
// Every operation fails with ErrUnavailable so callers surface a retryable
// upstream error instead of panicking on a nil client.
type Disabled struct{}

func (Disabled) CreateUpload(context.Context, UploadParams) (Upload, error) {
	return Upload{}, ErrUnavailable
}

func (Disabled) CreateLiveStream(context.Context, LiveStreamParams) (LiveStream, error) {
	return LiveStream{}, ErrUnavailable
}

func (Disabled) DeleteLiveStream(context.Context, string) error { return ErrUnavailable }

func (Disabled) DeleteAsset(context.Context, string) error { return ErrUnavailable }

func (Disabled) SignPlayback(string) (PlaybackTokens, error) {
	return PlaybackTokens{}, ErrUnavailable
}
