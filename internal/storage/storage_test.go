package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "framecast.json"))
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, store *Storage, channel string) string {
	t.Helper()
	user, err := store.CreateUser(CreateUserParams{
		DisplayName: channel,
		ChannelName: channel,
		Email:       channel + "@example.com",
		Password:    "correct horse battery staple",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	return user.ID
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	store := newTestStorage(t)
	createTestUser(t, store, "alpha")

	_, err := store.CreateUser(CreateUserParams{
		DisplayName: "Alpha Two",
		ChannelName: "alpha-two",
		Email:       "alpha@example.com",
		Password:    "another password",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate email, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateChannelName(t *testing.T) {
	store := newTestStorage(t)
	createTestUser(t, store, "alpha")

	_, err := store.CreateUser(CreateUserParams{
		DisplayName: "Alpha Two",
		ChannelName: "alpha",
		Email:       "alpha2@example.com",
		Password:    "another password",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate channel name, got %v", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	store := newTestStorage(t)
	createTestUser(t, store, "alpha")

	user, err := store.AuthenticateUser("alpha@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("AuthenticateUser returned error: %v", err)
	}
	if user.ChannelName != "alpha" {
		t.Fatalf("unexpected channel name %q", user.ChannelName)
	}
	if user.PasswordHash != "" {
		t.Fatalf("AuthenticateUser leaked the password hash")
	}

	if _, err := store.AuthenticateUser("alpha@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := store.AuthenticateUser("nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framecast.json")
	store, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	userID := createTestUser(t, store, "alpha")
	video, err := store.CreateVideo(CreateVideoParams{
		UserID:  userID,
		AssetID: "asset-1",
		Title:   "First upload",
	})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	reopened, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage on existing file returned error: %v", err)
	}
	loaded, ok := reopened.GetVideo(video.ID)
	if !ok {
		t.Fatalf("video %s not present after reload", video.ID)
	}
	if loaded.Title != "First upload" || loaded.AssetID != "asset-1" {
		t.Fatalf("unexpected video after reload: %+v", loaded)
	}
	if _, ok := reopened.GetUser(userID); !ok {
		t.Fatalf("user %s not present after reload", userID)
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")

	store.persistOverride = func(dataset) error {
		return errors.New("disk full")
	}
	if _, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1"}); err == nil {
		t.Fatalf("expected persist error to surface")
	}
	store.persistOverride = nil

	if videos := store.ListVideos(userID, true); len(videos) != 0 {
		t.Fatalf("expected rollback to leave no videos, got %d", len(videos))
	}
}
