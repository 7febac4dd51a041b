package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"framecast/internal/observability/metrics"
)

// Config wires the HTTP client to the hosting platform's API.
type Config struct {
	BaseURL     string
	TokenID     string
	TokenSecret string
	// SigningKeyID and SigningPrivateKey (PEM, RSA) issue playback tokens
	// for signed content.
	SigningKeyID      string
	SigningPrivateKey string
	TokenTTL          time.Duration
	HTTPClient        *http.Client
}

// HTTPClient talks to the hosting platform's REST API using basic auth
// credentials.
type HTTPClient struct {
	cfg    Config
	client *http.Client
	signer *playbackSigner
}

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.TokenID) == "" || strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, fmt.Errorf("video host credentials are required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.mux.com"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	httpClient := &HTTPClient{cfg: cfg, client: client}
	if cfg.SigningKeyID != "" && cfg.SigningPrivateKey != "" {
		signer, err := newPlaybackSigner(cfg.SigningKeyID, cfg.SigningPrivateKey, cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		httpClient.signer = signer
	}
	return httpClient, nil
}

const videoQualityPlus = "plus"

type uploadRequest struct {
	CorsOrigin       string           `json:"cors_origin"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

type newAssetSettings struct {
	PlaybackPolicies []string  `json:"playback_policies"`
	VideoQuality     string    `json:"video_quality"`
	Meta             assetMeta `json:"meta"`
}

type assetMeta struct {
	Title     string `json:"title"`
	CreatorID string `json:"creator_id"`
}

type uploadResponse struct {
	Data struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
}

func playbackPolicy(isPrivate bool) string {
	if isPrivate {
		return "signed"
	}
	return "public"
}

func (c *HTTPClient) CreateUpload(ctx context.Context, params UploadParams) (Upload, error) {
	payload := uploadRequest{
		CorsOrigin: "*",
		NewAssetSettings: newAssetSettings{
			PlaybackPolicies: []string{playbackPolicy(params.IsPrivate)},
			VideoQuality:     videoQualityPlus,
			Meta:             assetMeta{Title: params.Title, CreatorID: params.UserID},
		},
	}
	metrics.Default().ObserveVideohostAttempt("create_upload")
	var response uploadResponse
	if err := c.post(ctx, "/video/v1/uploads", payload, &response); err != nil {
		metrics.Default().ObserveVideohostFailure("create_upload")
		return Upload{}, fmt.Errorf("create upload: %w", err)
	}
	return Upload{ID: response.Data.ID, URL: response.Data.URL}, nil
}

type liveStreamRequest struct {
	PlaybackPolicies []string            `json:"playback_policies"`
	NewAssetSettings liveStreamRecording `json:"new_asset_settings"`
}

type liveStreamRecording struct {
	PlaybackPolicies []string `json:"playback_policies"`
}

type liveStreamResponse struct {
	Data struct {
		ID          string `json:"id"`
		StreamKey   string `json:"stream_key"`
		PlaybackIDs []struct {
			ID string `json:"id"`
		} `json:"playback_ids"`
	} `json:"data"`
}

func (c *HTTPClient) CreateLiveStream(ctx context.Context, params LiveStreamParams) (LiveStream, error) {
	policy := []string{playbackPolicy(params.IsPrivate)}
	payload := liveStreamRequest{
		PlaybackPolicies: policy,
		NewAssetSettings: liveStreamRecording{PlaybackPolicies: policy},
	}
	metrics.Default().ObserveVideohostAttempt("create_live_stream")
	var response liveStreamResponse
	if err := c.post(ctx, "/video/v1/live-streams", payload, &response); err != nil {
		metrics.Default().ObserveVideohostFailure("create_live_stream")
		return LiveStream{}, fmt.Errorf("create live stream: %w", err)
	}
	stream := LiveStream{ID: response.Data.ID, StreamKey: response.Data.StreamKey}
	if len(response.Data.PlaybackIDs) > 0 {
		stream.PlaybackID = response.Data.PlaybackIDs[0].ID
	}
	return stream, nil
}

func (c *HTTPClient) DeleteLiveStream(ctx context.Context, liveStreamID string) error {
	metrics.Default().ObserveVideohostAttempt("delete_live_stream")
	if err := c.delete(ctx, "/video/v1/live-streams/"+liveStreamID); err != nil {
		metrics.Default().ObserveVideohostFailure("delete_live_stream")
		return fmt.Errorf("delete live stream %s: %w", liveStreamID, err)
	}
	return nil
}

func (c *HTTPClient) DeleteAsset(ctx context.Context, assetID string) error {
	metrics.Default().ObserveVideohostAttempt("delete_asset")
	if err := c.delete(ctx, "/video/v1/assets/"+assetID); err != nil {
		metrics.Default().ObserveVideohostFailure("delete_asset")
		return fmt.Errorf("delete asset %s: %w", assetID, err)
	}
	return nil
}

func (c *HTTPClient) SignPlayback(playbackID string) (PlaybackTokens, error) {
	if c.signer == nil {
		return PlaybackTokens{}, fmt.Errorf("playback signing keys not configured")
	}
	return c.signer.Sign(playbackID)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.TokenID, c.cfg.TokenSecret)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *HTTPClient) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url(path), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.TokenID, c.cfg.TokenSecret)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	// Deleting something already gone is fine; teardown is idempotent.
	if (resp.StatusCode < 200 || resp.StatusCode >= 300) && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func (c *HTTPClient) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

var _ Client = (*HTTPClient)(nil)
var _ Client = Disabled{}
