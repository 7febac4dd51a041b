package storage

import (
	"errors"
	"testing"

	"framecast/internal/models"
)

func createTestLiveStream(t *testing.T, store *Storage, userID, externalID string) models.LiveStream {
	t.Helper()
	stream, err := store.CreateLiveStream(CreateLiveStreamParams{
		UserID:       userID,
		LiveStreamID: externalID,
		Title:        "Friday show",
		StreamKey:    "sk-" + externalID,
		PlaybackID:   "pb-" + externalID,
	})
	if err != nil {
		t.Fatalf("CreateLiveStream returned error: %v", err)
	}
	return stream
}

func TestCreateLiveStreamStartsIdle(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	stream := createTestLiveStream(t, store, userID, "ls-1")

	if stream.Status != models.LiveStreamStatusIdle {
		t.Fatalf("expected new stream to be idle, got %q", stream.Status)
	}
}

func TestUpdateLiveStreamStatusForward(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	createTestLiveStream(t, store, userID, "ls-1")

	stream, err := store.UpdateLiveStreamStatus("ls-1", models.LiveStreamStatusActive)
	if err != nil {
		t.Fatalf("UpdateLiveStreamStatus returned error: %v", err)
	}
	if stream.Status != models.LiveStreamStatusActive {
		t.Fatalf("expected status active, got %q", stream.Status)
	}

	stream, err = store.UpdateLiveStreamStatus("ls-1", models.LiveStreamStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateLiveStreamStatus returned error: %v", err)
	}
	if stream.Status != models.LiveStreamStatusCompleted {
		t.Fatalf("expected status completed, got %q", stream.Status)
	}
}

func TestUpdateLiveStreamStatusIgnoresBackwardTransitions(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	createTestLiveStream(t, store, userID, "ls-1")

	if _, err := store.UpdateLiveStreamStatus("ls-1", models.LiveStreamStatusActive); err != nil {
		t.Fatalf("UpdateLiveStreamStatus returned error: %v", err)
	}
	// Out-of-order webhook replay must not regress the status.
	stream, err := store.UpdateLiveStreamStatus("ls-1", models.LiveStreamStatusIdle)
	if err != nil {
		t.Fatalf("UpdateLiveStreamStatus returned error: %v", err)
	}
	if stream.Status != models.LiveStreamStatusActive {
		t.Fatalf("backward transition changed status to %q", stream.Status)
	}
}

func TestUpdateLiveStreamStatusValidation(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	createTestLiveStream(t, store, userID, "ls-1")

	if _, err := store.UpdateLiveStreamStatus("ls-1", "paused"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown status, got %v", err)
	}
	if _, err := store.UpdateLiveStreamStatus("ls-missing", models.LiveStreamStatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown stream, got %v", err)
	}
}

func TestListPublicActiveLiveStreams(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	createTestLiveStream(t, store, userID, "ls-public")
	private, err := store.CreateLiveStream(CreateLiveStreamParams{
		UserID:       userID,
		LiveStreamID: "ls-private",
		IsPrivate:    true,
	})
	if err != nil {
		t.Fatalf("CreateLiveStream returned error: %v", err)
	}

	if _, err := store.UpdateLiveStreamStatus("ls-public", models.LiveStreamStatusActive); err != nil {
		t.Fatalf("UpdateLiveStreamStatus returned error: %v", err)
	}
	if _, err := store.UpdateLiveStreamStatus(private.LiveStreamID, models.LiveStreamStatusActive); err != nil {
		t.Fatalf("UpdateLiveStreamStatus returned error: %v", err)
	}

	active := store.ListPublicActiveLiveStreams()
	if len(active) != 1 {
		t.Fatalf("expected 1 public active stream, got %d", len(active))
	}
	if active[0].LiveStreamID != "ls-public" {
		t.Fatalf("unexpected stream in listing: %q", active[0].LiveStreamID)
	}
}

func TestDeleteLiveStreamOwnerOnly(t *testing.T) {
	store := newTestStorage(t)
	ownerID := createTestUser(t, store, "alpha")
	otherID := createTestUser(t, store, "beta")
	stream := createTestLiveStream(t, store, ownerID, "ls-1")

	if _, err := store.DeleteLiveStream(stream.ID, otherID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	deleted, err := store.DeleteLiveStream(stream.ID, ownerID)
	if err != nil {
		t.Fatalf("DeleteLiveStream returned error: %v", err)
	}
	if deleted.LiveStreamID != "ls-1" {
		t.Fatalf("expected deleted record to carry the external id, got %q", deleted.LiveStreamID)
	}
	if _, ok := store.GetLiveStream(stream.ID); ok {
		t.Fatalf("stream still present after delete")
	}
}
