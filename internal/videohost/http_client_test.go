package videohost

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewHTTPClient(Config{
		BaseURL:     server.URL,
		TokenID:     "token-id",
		TokenSecret: "token-secret",
	})
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	return client
}

func TestCreateUpload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/video/v1/uploads" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		username, password, ok := r.BasicAuth()
		if !ok || username != "token-id" || password != "token-secret" {
			t.Errorf("missing or wrong basic auth")
		}
		var payload uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.NewAssetSettings.PlaybackPolicies) != 1 || payload.NewAssetSettings.PlaybackPolicies[0] != "signed" {
			t.Errorf("expected signed policy for private upload, got %v", payload.NewAssetSettings.PlaybackPolicies)
		}
		if payload.NewAssetSettings.Meta.CreatorID != "user-1" {
			t.Errorf("creator not forwarded: %+v", payload.NewAssetSettings.Meta)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"upload-1","url":"https://upload.example/put"}}`))
	})

	upload, err := client.CreateUpload(context.Background(), UploadParams{
		UserID:    "user-1",
		Title:     "My clip",
		IsPrivate: true,
	})
	if err != nil {
		t.Fatalf("CreateUpload returned error: %v", err)
	}
	if upload.ID != "upload-1" || upload.URL != "https://upload.example/put" {
		t.Fatalf("unexpected upload: %+v", upload)
	}
}

func TestCreateUploadUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	if _, err := client.CreateUpload(context.Background(), UploadParams{UserID: "user-1"}); err == nil {
		t.Fatalf("expected upstream error to surface")
	}
}

func TestCreateLiveStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video/v1/live-streams" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"ls-1","stream_key":"sk-1","playback_ids":[{"id":"pb-1"}]}}`))
	})

	stream, err := client.CreateLiveStream(context.Background(), LiveStreamParams{Title: "Show"})
	if err != nil {
		t.Fatalf("CreateLiveStream returned error: %v", err)
	}
	if stream.ID != "ls-1" || stream.StreamKey != "sk-1" || stream.PlaybackID != "pb-1" {
		t.Fatalf("unexpected stream: %+v", stream)
	}
}

func TestDeleteAssetTreatsMissingAsDeleted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		http.NotFound(w, r)
	})
	if err := client.DeleteAsset(context.Background(), "asset-1"); err != nil {
		t.Fatalf("DeleteAsset returned error for missing asset: %v", err)
	}
}

func TestSignPlayback(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	signer, err := newPlaybackSigner("key-1", string(keyPEM), time.Hour)
	if err != nil {
		t.Fatalf("newPlaybackSigner returned error: %v", err)
	}

	tokens, err := signer.Sign("pb-1")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	for name, token := range map[string]string{"video": tokens.Video, "thumbnail": tokens.Thumbnail} {
		parts := strings.Split(token, ".")
		if len(parts) != 3 {
			t.Fatalf("%s token is not a compact JWT: %q", name, token)
		}
		claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			t.Fatalf("decode %s claims: %v", name, err)
		}
		var claims map[string]interface{}
		if err := json.Unmarshal(claimsJSON, &claims); err != nil {
			t.Fatalf("unmarshal %s claims: %v", name, err)
		}
		if claims["sub"] != "pb-1" {
			t.Fatalf("%s token subject = %v", name, claims["sub"])
		}
	}
	videoClaims, _ := base64.RawURLEncoding.DecodeString(strings.Split(tokens.Video, ".")[1])
	if !strings.Contains(string(videoClaims), `"aud":"v"`) {
		t.Fatalf("video token audience wrong: %s", videoClaims)
	}
}
