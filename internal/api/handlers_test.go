package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"framecast/internal/auth"
	"framecast/internal/models"
	"framecast/internal/storage"
	"framecast/internal/videohost"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	sessions := auth.NewManager(30 * time.Minute)
	return NewHandler(store, sessions), store
}

func mustCreateUser(t *testing.T, store *storage.Storage, channel string) models.User {
	t.Helper()
	user, err := store.CreateUser(storage.CreateUserParams{
		DisplayName: channel,
		ChannelName: channel,
		Email:       channel + "@example.com",
		Password:    "correct horse battery staple",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func mustLogin(t *testing.T, handler *Handler, email string) *http.Cookie {
	t.Helper()
	body := bytes.NewBufferString(fmt.Sprintf(`{"email":%q,"password":"correct horse battery staple"}`, email))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("login response carried no session cookie")
	return nil
}

func authedRequest(method, target string, body []byte, cookie *http.Cookie) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

// fakeHost records calls so tests can assert teardown behaviour.
type fakeHost struct {
	uploads        int
	deletedAssets  []string
	deletedStreams []string
	failCreate     bool
}

func (f *fakeHost) CreateUpload(_ context.Context, params videohost.UploadParams) (videohost.Upload, error) {
	if f.failCreate {
		return videohost.Upload{}, fmt.Errorf("host rejected upload")
	}
	f.uploads++
	return videohost.Upload{ID: fmt.Sprintf("upload-%d", f.uploads), URL: "https://uploads.example.com/put"}, nil
}

func (f *fakeHost) CreateLiveStream(context.Context, videohost.LiveStreamParams) (videohost.LiveStream, error) {
	if f.failCreate {
		return videohost.LiveStream{}, fmt.Errorf("host rejected stream")
	}
	return videohost.LiveStream{ID: "ls-ext-1", StreamKey: "sk-secret", PlaybackID: "pb-live-1"}, nil
}

func (f *fakeHost) DeleteLiveStream(_ context.Context, id string) error {
	f.deletedStreams = append(f.deletedStreams, id)
	return nil
}

func (f *fakeHost) DeleteAsset(_ context.Context, id string) error {
	f.deletedAssets = append(f.deletedAssets, id)
	return nil
}

func (f *fakeHost) SignPlayback(playbackID string) (videohost.PlaybackTokens, error) {
	return videohost.PlaybackTokens{Video: "tok-" + playbackID, Thumbnail: "thumb-" + playbackID}, nil
}

func TestHealthReportsOK(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if response["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", response["status"])
	}
}

func TestAuthSessionLifecycle(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := bytes.NewBufferString(`{"displayName":"Alice","channelName":"alice","email":"alice@example.com","password":"correct horse battery staple"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", body)
	rec := httptest.NewRecorder()
	handler.Signup(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rec.Code, rec.Body.String())
	}
	var signupResp struct {
		User models.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &signupResp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if signupResp.User.PasswordHash != "" {
		t.Fatalf("signup response leaked credential material")
	}

	cookie := mustLogin(t, handler, "alice@example.com")

	req = authedRequest(http.MethodGet, "/api/auth/session", nil, cookie)
	rec = httptest.NewRecorder()
	handler.Session(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status %d: %s", rec.Code, rec.Body.String())
	}

	req = authedRequest(http.MethodPost, "/api/auth/logout", nil, cookie)
	rec = httptest.NewRecorder()
	handler.Logout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}

	req = authedRequest(http.MethodGet, "/api/auth/session", nil, cookie)
	rec = httptest.NewRecorder()
	handler.Session(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	handler, _ := newTestHandler(t)
	body := bytes.NewBufferString(`{"displayName":"Bob","channelName":"bob","email":"bob@example.com","password":"short"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", body)
	rec := httptest.NewRecorder()
	handler.Signup(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	handler, store := newTestHandler(t)
	mustCreateUser(t, store, "carol")
	body := bytes.NewBufferString(`{"email":"carol@example.com","password":"not the password"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBearerTokenAuthentication(t *testing.T) {
	handler, store := newTestHandler(t)
	mustCreateUser(t, store, "dave")
	cookie := mustLogin(t, handler, "dave@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := httptest.NewRecorder()
	handler.Session(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer session status %d: %s", rec.Code, rec.Body.String())
	}
}
