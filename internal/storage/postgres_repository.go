package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"framecast/internal/models"
)

// postgresRepository backs the Repository interface with a pgx connection
// pool. Interface methods carry no context, so each operation runs under the
// configured query timeout.
type postgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

// NewPostgresRepository opens a Postgres-backed repository and applies the
// schema migration before returning.
func NewPostgresRepository(cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &postgresRepository{pool: pool, cfg: cfg}
	ctx, cancel := repo.opContext()
	defer cancel()
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close drains the pool, honouring the context deadline.
func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.queryTimeout())
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const (
	userColumns       = "id, display_name, channel_name, email, password_hash, created_at"
	videoColumns      = "id, user_id, upload_id, asset_id, playback_id, title, description, channel_name, live_stream_id, is_private, status, duration, created_at, updated_at"
	liveStreamColumns = "id, live_stream_id, user_id, title, is_private, stream_key, playback_id, status, created_at, updated_at"
	commentColumns    = "id, video_id, user_id, content, created_at, updated_at"
)

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.DisplayName, &user.ChannelName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	return user, err
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.UserID, &video.UploadID, &video.AssetID, &video.PlaybackID, &video.Title, &video.Description, &video.ChannelName, &video.LiveStreamID, &video.IsPrivate, &video.Status, &video.Duration, &video.CreatedAt, &video.UpdatedAt)
	return video, err
}

func scanLiveStream(row pgx.Row) (models.LiveStream, error) {
	var stream models.LiveStream
	err := row.Scan(&stream.ID, &stream.LiveStreamID, &stream.UserID, &stream.Title, &stream.IsPrivate, &stream.StreamKey, &stream.PlaybackID, &stream.Status, &stream.CreatedAt, &stream.UpdatedAt)
	return stream, err
}

func scanComment(row pgx.Row) (models.Comment, error) {
	var comment models.Comment
	err := row.Scan(&comment.ID, &comment.VideoID, &comment.UserID, &comment.Content, &comment.CreatedAt, &comment.UpdatedAt)
	return comment, err
}

func (r *postgresRepository) CreateUser(params CreateUserParams) (models.User, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		return models.User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		return models.User{}, fmt.Errorf("%w: displayName is required", ErrInvalidInput)
	}
	channelName := strings.TrimSpace(params.ChannelName)
	if channelName == "" {
		channelName = displayName
	}
	if params.Password == "" {
		return models.User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}
	id, err := generateID()
	if err != nil {
		return models.User{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()
	user := models.User{
		ID:          id,
		DisplayName: displayName,
		ChannelName: channelName,
		Email:       email,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = r.pool.Exec(ctx,
		"INSERT INTO users (id, display_name, channel_name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		user.ID, user.DisplayName, user.ChannelName, user.Email, hash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: email or channel name already in use", ErrInvalidInput)
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	ctx, cancel := r.opContext()
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1",
		strings.TrimSpace(strings.ToLower(email))))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (r *postgresRepository) GetUser(id string) (models.User, bool) {
	ctx, cancel := r.opContext()
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) GetUserByChannelName(channelName string) (models.User, bool) {
	ctx, cancel := r.opContext()
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE channel_name = $1", strings.TrimSpace(channelName)))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) ListUsers() []models.User {
	ctx, cancel := r.opContext()
	defer cancel()
	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil
	}
	defer rows.Close()
	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil
		}
		users = append(users, user)
	}
	return users
}

func (r *postgresRepository) CreateVideo(params CreateVideoParams) (models.Video, error) {
	assetID := strings.TrimSpace(params.AssetID)
	if assetID == "" {
		return models.Video{}, fmt.Errorf("%w: assetId is required", ErrInvalidInput)
	}
	id, err := generateID()
	if err != nil {
		return models.Video{}, err
	}
	status := params.Status
	if status == "" {
		status = models.VideoStatusPreparing
	}

	ctx, cancel := r.opContext()
	defer cancel()
	now := time.Now().UTC()
	// ON CONFLICT DO NOTHING keeps replayed webhook inserts idempotent; the
	// follow-up select returns whichever row won.
	tag, err := r.pool.Exec(ctx,
		"INSERT INTO videos ("+videoColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) ON CONFLICT (asset_id) DO NOTHING",
		id, params.UserID, strings.TrimSpace(params.UploadID), assetID, strings.TrimSpace(params.PlaybackID),
		strings.TrimSpace(params.Title), params.Description, strings.TrimSpace(params.ChannelName),
		strings.TrimSpace(params.LiveStreamID), params.IsPrivate, status, 0.0, now, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.Video{}, fmt.Errorf("%w: user %s", ErrNotFound, params.UserID)
		}
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, ok := r.GetVideoByAssetID(assetID)
		if !ok {
			return models.Video{}, fmt.Errorf("insert video: conflicting row vanished for asset %s", assetID)
		}
		return existing, nil
	}
	video, err := scanVideo(r.pool.QueryRow(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = $1", id))
	if err != nil {
		return models.Video{}, fmt.Errorf("select inserted video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) getVideoBy(column, value string) (models.Video, bool) {
	ctx, cancel := r.opContext()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE "+column+" = $1", value))
	if err != nil {
		return models.Video{}, false
	}
	return video, true
}

func (r *postgresRepository) GetVideo(id string) (models.Video, bool) {
	return r.getVideoBy("id", id)
}

func (r *postgresRepository) GetVideoByAssetID(assetID string) (models.Video, bool) {
	return r.getVideoBy("asset_id", assetID)
}

func (r *postgresRepository) GetVideoByPlaybackID(playbackID string) (models.Video, bool) {
	return r.getVideoBy("playback_id", playbackID)
}

func (r *postgresRepository) GetVideoByLiveStreamID(liveStreamID string) (models.Video, bool) {
	return r.getVideoBy("live_stream_id", liveStreamID)
}

func (r *postgresRepository) collectVideos(rows pgx.Rows) []models.Video {
	defer rows.Close()
	videos := make([]models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil
		}
		videos = append(videos, video)
	}
	return videos
}

func (r *postgresRepository) ListVideos(userID string, private bool) []models.Video {
	ctx, cancel := r.opContext()
	defer cancel()
	query := "SELECT " + videoColumns + " FROM videos WHERE user_id = $1"
	if !private {
		query += " AND is_private = FALSE"
	}
	query += " ORDER BY created_at DESC, id DESC"
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil
	}
	return r.collectVideos(rows)
}

func (r *postgresRepository) ListReadyPublicVideos(page, limit int) ([]models.Video, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultFeedPageSize
	}
	ctx, cancel := r.opContext()
	defer cancel()

	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM videos WHERE status = $1 AND is_private = FALSE",
		models.VideoStatusReady).Scan(&total)
	if err != nil {
		return nil, 0
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE status = $1 AND is_private = FALSE ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		models.VideoStatusReady, limit, (page-1)*limit)
	if err != nil {
		return nil, 0
	}
	return r.collectVideos(rows), total
}

func (r *postgresRepository) MarkVideoReadyByAssetID(assetID string, duration float64) (models.Video, error) {
	return r.markVideoReady("asset_id", assetID, "asset "+assetID, duration)
}

func (r *postgresRepository) MarkVideoReadyByLiveStreamID(liveStreamID string, duration float64) (models.Video, error) {
	return r.markVideoReady("live_stream_id", liveStreamID, "live stream "+liveStreamID, duration)
}

func (r *postgresRepository) markVideoReady(column, value, label string, duration float64) (models.Video, error) {
	ctx, cancel := r.opContext()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx,
		"UPDATE videos SET status = $1, duration = $2, updated_at = $3 WHERE "+column+" = $4 RETURNING "+videoColumns,
		models.VideoStatusReady, duration, time.Now().UTC(), value))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, fmt.Errorf("%w: video for %s", ErrNotFound, label)
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("mark video ready: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) UpdateVideoMetadata(id, requesterID string, update VideoMetadataUpdate) (models.Video, error) {
	video, ok := r.GetVideo(id)
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	if video.UserID != requesterID {
		return models.Video{}, fmt.Errorf("%w: only the owner may edit video %s", ErrForbidden, id)
	}
	if update.Title != nil {
		video.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		video.Description = *update.Description
	}
	video.UpdatedAt = time.Now().UTC()

	ctx, cancel := r.opContext()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET title = $1, description = $2, updated_at = $3 WHERE id = $4",
		video.Title, video.Description, video.UpdatedAt, id)
	if err != nil {
		return models.Video{}, fmt.Errorf("update video metadata: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) DeleteVideo(id, requesterID string) (models.Video, error) {
	video, ok := r.GetVideo(id)
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	if video.UserID != requesterID {
		return models.Video{}, fmt.Errorf("%w: only the owner may delete video %s", ErrForbidden, id)
	}
	ctx, cancel := r.opContext()
	defer cancel()
	// Shares and comments cascade via foreign keys.
	if _, err := r.pool.Exec(ctx, "DELETE FROM videos WHERE id = $1", id); err != nil {
		return models.Video{}, fmt.Errorf("delete video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) CreateLiveStream(params CreateLiveStreamParams) (models.LiveStream, error) {
	externalID := strings.TrimSpace(params.LiveStreamID)
	if externalID == "" {
		return models.LiveStream{}, fmt.Errorf("%w: liveStreamId is required", ErrInvalidInput)
	}
	id, err := generateID()
	if err != nil {
		return models.LiveStream{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()
	now := time.Now().UTC()
	stream := models.LiveStream{
		ID:           id,
		LiveStreamID: externalID,
		UserID:       params.UserID,
		Title:        strings.TrimSpace(params.Title),
		IsPrivate:    params.IsPrivate,
		StreamKey:    strings.TrimSpace(params.StreamKey),
		PlaybackID:   strings.TrimSpace(params.PlaybackID),
		Status:       models.LiveStreamStatusIdle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.pool.Exec(ctx,
		"INSERT INTO live_streams ("+liveStreamColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		stream.ID, stream.LiveStreamID, stream.UserID, stream.Title, stream.IsPrivate,
		stream.StreamKey, stream.PlaybackID, stream.Status, stream.CreatedAt, stream.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.LiveStream{}, fmt.Errorf("%w: user %s", ErrNotFound, params.UserID)
		}
		return models.LiveStream{}, fmt.Errorf("insert live stream: %w", err)
	}
	return stream, nil
}

func (r *postgresRepository) getLiveStreamBy(column, value string) (models.LiveStream, bool) {
	ctx, cancel := r.opContext()
	defer cancel()
	stream, err := scanLiveStream(r.pool.QueryRow(ctx,
		"SELECT "+liveStreamColumns+" FROM live_streams WHERE "+column+" = $1", value))
	if err != nil {
		return models.LiveStream{}, false
	}
	return stream, true
}

func (r *postgresRepository) GetLiveStream(id string) (models.LiveStream, bool) {
	return r.getLiveStreamBy("id", id)
}

func (r *postgresRepository) GetLiveStreamByExternalID(externalID string) (models.LiveStream, bool) {
	return r.getLiveStreamBy("live_stream_id", externalID)
}

func (r *postgresRepository) collectLiveStreams(rows pgx.Rows) []models.LiveStream {
	defer rows.Close()
	streams := make([]models.LiveStream, 0)
	for rows.Next() {
		stream, err := scanLiveStream(rows)
		if err != nil {
			return nil
		}
		streams = append(streams, stream)
	}
	return streams
}

func (r *postgresRepository) ListLiveStreams(userID string) []models.LiveStream {
	ctx, cancel := r.opContext()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT "+liveStreamColumns+" FROM live_streams WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil
	}
	return r.collectLiveStreams(rows)
}

func (r *postgresRepository) ListPublicActiveLiveStreams() []models.LiveStream {
	ctx, cancel := r.opContext()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT "+liveStreamColumns+" FROM live_streams WHERE is_private = FALSE AND status = $1 ORDER BY created_at DESC, id DESC",
		models.LiveStreamStatusActive)
	if err != nil {
		return nil
	}
	return r.collectLiveStreams(rows)
}

func (r *postgresRepository) UpdateLiveStreamStatus(externalID string, status models.LiveStreamStatus) (models.LiveStream, error) {
	if status.Rank() == 0 {
		return models.LiveStream{}, fmt.Errorf("%w: unknown live stream status %q", ErrInvalidInput, status)
	}
	stream, ok := r.GetLiveStreamByExternalID(externalID)
	if !ok {
		return models.LiveStream{}, fmt.Errorf("%w: live stream %s", ErrNotFound, externalID)
	}
	if status.Rank() <= stream.Status.Rank() {
		return stream, nil
	}

	ctx, cancel := r.opContext()
	defer cancel()
	updated, err := scanLiveStream(r.pool.QueryRow(ctx,
		"UPDATE live_streams SET status = $1, updated_at = $2 WHERE live_stream_id = $3 RETURNING "+liveStreamColumns,
		status, time.Now().UTC(), externalID))
	if err != nil {
		return models.LiveStream{}, fmt.Errorf("update live stream status: %w", err)
	}
	return updated, nil
}

func (r *postgresRepository) DeleteLiveStream(id, requesterID string) (models.LiveStream, error) {
	stream, ok := r.GetLiveStream(id)
	if !ok {
		return models.LiveStream{}, fmt.Errorf("%w: live stream %s", ErrNotFound, id)
	}
	if stream.UserID != requesterID {
		return models.LiveStream{}, fmt.Errorf("%w: only the owner may delete live stream %s", ErrForbidden, id)
	}
	ctx, cancel := r.opContext()
	defer cancel()
	if _, err := r.pool.Exec(ctx, "DELETE FROM live_streams WHERE id = $1", id); err != nil {
		return models.LiveStream{}, fmt.Errorf("delete live stream: %w", err)
	}
	return stream, nil
}

func (r *postgresRepository) ShareVideo(videoID, granteeID, granterID string) (models.SharedVideo, error) {
	video, ok := r.GetVideo(videoID)
	if !ok {
		return models.SharedVideo{}, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if _, ok := r.GetUser(granteeID); !ok {
		return models.SharedVideo{}, fmt.Errorf("%w: user %s", ErrNotFound, granteeID)
	}
	if video.UserID != granterID {
		return models.SharedVideo{}, fmt.Errorf("%w: only the owner may share video %s", ErrForbidden, videoID)
	}
	id, err := generateID()
	if err != nil {
		return models.SharedVideo{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()
	share := models.SharedVideo{
		ID:               id,
		VideoID:          videoID,
		SharedWithUserID: granteeID,
		SharedByUserID:   granterID,
		CreatedAt:        time.Now().UTC(),
	}
	tag, err := r.pool.Exec(ctx,
		"INSERT INTO shared_videos (id, video_id, shared_with_user_id, shared_by_user_id, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (video_id, shared_with_user_id) DO NOTHING",
		share.ID, share.VideoID, share.SharedWithUserID, share.SharedByUserID, share.CreatedAt)
	if err != nil {
		return models.SharedVideo{}, fmt.Errorf("insert share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := scanShare(r.pool.QueryRow(ctx,
			"SELECT id, video_id, shared_with_user_id, shared_by_user_id, created_at FROM shared_videos WHERE video_id = $1 AND shared_with_user_id = $2",
			videoID, granteeID))
		if err != nil {
			return models.SharedVideo{}, fmt.Errorf("select existing share: %w", err)
		}
		return existing, nil
	}
	return share, nil
}

func scanShare(row pgx.Row) (models.SharedVideo, error) {
	var share models.SharedVideo
	err := row.Scan(&share.ID, &share.VideoID, &share.SharedWithUserID, &share.SharedByUserID, &share.CreatedAt)
	return share, err
}

func (r *postgresRepository) UnshareVideo(videoID, granteeID, granterID string) error {
	video, ok := r.GetVideo(videoID)
	if !ok {
		return fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if video.UserID != granterID {
		return fmt.Errorf("%w: only the owner may unshare video %s", ErrForbidden, videoID)
	}
	ctx, cancel := r.opContext()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"DELETE FROM shared_videos WHERE video_id = $1 AND shared_with_user_id = $2", videoID, granteeID)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListVideoShares(videoID, requesterID string) ([]ShareRecipient, error) {
	video, ok := r.GetVideo(videoID)
	if !ok {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	if video.UserID != requesterID {
		return nil, fmt.Errorf("%w: only the owner may list shares for video %s", ErrForbidden, videoID)
	}
	ctx, cancel := r.opContext()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.shared_with_user_id, u.display_name, u.channel_name, s.created_at
		 FROM shared_videos s JOIN users u ON u.id = s.shared_with_user_id
		 WHERE s.video_id = $1 ORDER BY s.created_at ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()
	recipients := make([]ShareRecipient, 0)
	for rows.Next() {
		var recipient ShareRecipient
		if err := rows.Scan(&recipient.GrantID, &recipient.UserID, &recipient.DisplayName, &recipient.ChannelName, &recipient.SharedAt); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

func (r *postgresRepository) ListSharedWithUser(userID string) []SharedVideoEntry {
	ctx, cancel := r.opContext()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixColumns("v", videoColumns)+`, s.shared_by_user_id, u.display_name, u.channel_name, s.created_at
		 FROM shared_videos s
		 JOIN videos v ON v.id = s.video_id
		 JOIN users u ON u.id = s.shared_by_user_id
		 WHERE s.shared_with_user_id = $1 ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	entries := make([]SharedVideoEntry, 0)
	for rows.Next() {
		var entry SharedVideoEntry
		video := &entry.Video
		err := rows.Scan(&video.ID, &video.UserID, &video.UploadID, &video.AssetID, &video.PlaybackID,
			&video.Title, &video.Description, &video.ChannelName, &video.LiveStreamID, &video.IsPrivate,
			&video.Status, &video.Duration, &video.CreatedAt, &video.UpdatedAt,
			&entry.SharedByUserID, &entry.SharedByName, &entry.SharedByChannel, &entry.SharedAt)
		if err != nil {
			return nil
		}
		entries = append(entries, entry)
	}
	return entries
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

func (r *postgresRepository) CanAccessVideo(userID, videoID string) bool {
	ctx, cancel := r.opContext()
	defer cancel()
	var allowed bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM videos WHERE id = $1 AND user_id = $2
			UNION
			SELECT 1 FROM shared_videos WHERE video_id = $1 AND shared_with_user_id = $2
		)`, videoID, userID).Scan(&allowed)
	if err != nil {
		return false
	}
	return allowed
}

func (r *postgresRepository) CreateComment(videoID, userID, content string) (models.Comment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Comment{}, fmt.Errorf("%w: comment content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > maxCommentLength {
		return models.Comment{}, fmt.Errorf("%w: comment content exceeds %d characters", ErrInvalidInput, maxCommentLength)
	}
	id, err := generateID()
	if err != nil {
		return models.Comment{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()
	now := time.Now().UTC()
	comment := models.Comment{
		ID:        id,
		VideoID:   videoID,
		UserID:    userID,
		Content:   trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = r.pool.Exec(ctx,
		"INSERT INTO comments ("+commentColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		comment.ID, comment.VideoID, comment.UserID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.Comment{}, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
		}
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func (r *postgresRepository) ListComments(videoID string) ([]models.Comment, error) {
	if _, ok := r.GetVideo(videoID); !ok {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}
	ctx, cancel := r.opContext()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE video_id = $1 ORDER BY created_at DESC, id DESC", videoID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	comments := make([]models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

func (r *postgresRepository) DeleteComment(videoID, commentID, requesterID string) error {
	ctx, cancel := r.opContext()
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM comments WHERE id = $1 AND video_id = $2 AND user_id = $3",
		commentID, videoID, requesterID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
	}
	return nil
}

var _ Repository = (*postgresRepository)(nil)
