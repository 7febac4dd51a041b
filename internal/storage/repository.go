package storage

import (
	"context"

	"framecast/internal/models"
)

// Repository exposes the datastore operations required by API handlers and
// the lifecycle event correlator.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(params CreateUserParams) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	GetUser(id string) (models.User, bool)
	GetUserByChannelName(channelName string) (models.User, bool)
	ListUsers() []models.User

	CreateVideo(params CreateVideoParams) (models.Video, error)
	GetVideo(id string) (models.Video, bool)
	GetVideoByAssetID(assetID string) (models.Video, bool)
	GetVideoByPlaybackID(playbackID string) (models.Video, bool)
	GetVideoByLiveStreamID(liveStreamID string) (models.Video, bool)
	ListVideos(userID string, private bool) []models.Video
	ListReadyPublicVideos(page, limit int) ([]models.Video, int)
	MarkVideoReadyByAssetID(assetID string, duration float64) (models.Video, error)
	MarkVideoReadyByLiveStreamID(liveStreamID string, duration float64) (models.Video, error)
	UpdateVideoMetadata(id, requesterID string, update VideoMetadataUpdate) (models.Video, error)
	DeleteVideo(id, requesterID string) (models.Video, error)

	CreateLiveStream(params CreateLiveStreamParams) (models.LiveStream, error)
	GetLiveStream(id string) (models.LiveStream, bool)
	GetLiveStreamByExternalID(externalID string) (models.LiveStream, bool)
	ListLiveStreams(userID string) []models.LiveStream
	ListPublicActiveLiveStreams() []models.LiveStream
	UpdateLiveStreamStatus(externalID string, status models.LiveStreamStatus) (models.LiveStream, error)
	DeleteLiveStream(id, requesterID string) (models.LiveStream, error)

	ShareVideo(videoID, granteeID, granterID string) (models.SharedVideo, error)
	UnshareVideo(videoID, granteeID, granterID string) error
	ListVideoShares(videoID, requesterID string) ([]ShareRecipient, error)
	ListSharedWithUser(userID string) []SharedVideoEntry
	CanAccessVideo(userID, videoID string) bool

	CreateComment(videoID, userID, content string) (models.Comment, error)
	ListComments(videoID string) ([]models.Comment, error)
	DeleteComment(videoID, commentID, requesterID string) error
}

var _ Repository = (*Storage)(nil)
