package storage

import (
	"errors"
	"testing"

	"framecast/internal/models"
)

func TestCreateVideoDeduplicatesAssetID(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")

	first, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1", Title: "First"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}
	second, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1", Title: "Replay"})
	if err != nil {
		t.Fatalf("CreateVideo replay returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected replayed create to return existing video %s, got %s", first.ID, second.ID)
	}
	if second.Title != "First" {
		t.Fatalf("replayed create overwrote the original title: %q", second.Title)
	}
	if videos := store.ListVideos(userID, true); len(videos) != 1 {
		t.Fatalf("expected a single video after replay, got %d", len(videos))
	}
}

func TestCreateVideoRequiresAssetID(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")

	if _, err := store.CreateVideo(CreateVideoParams{UserID: userID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing asset id, got %v", err)
	}
}

func TestMarkVideoReadyByAssetID(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	video, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	updated, err := store.MarkVideoReadyByAssetID("asset-1", 42.5)
	if err != nil {
		t.Fatalf("MarkVideoReadyByAssetID returned error: %v", err)
	}
	if updated.ID != video.ID {
		t.Fatalf("updated wrong video: %s", updated.ID)
	}
	if updated.Status != models.VideoStatusReady {
		t.Fatalf("expected status ready, got %q", updated.Status)
	}
	if updated.Duration != 42.5 {
		t.Fatalf("expected duration 42.5, got %v", updated.Duration)
	}

	if _, err := store.MarkVideoReadyByAssetID("asset-missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown asset, got %v", err)
	}
}

func TestMarkVideoReadyByLiveStreamID(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	if _, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1", LiveStreamID: "ls-1"}); err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	updated, err := store.MarkVideoReadyByLiveStreamID("ls-1", 300)
	if err != nil {
		t.Fatalf("MarkVideoReadyByLiveStreamID returned error: %v", err)
	}
	if updated.Status != models.VideoStatusReady {
		t.Fatalf("expected status ready, got %q", updated.Status)
	}
}

func TestListReadyPublicVideosPaginates(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")

	for _, assetID := range []string{"a-1", "a-2", "a-3"} {
		if _, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: assetID}); err != nil {
			t.Fatalf("CreateVideo returned error: %v", err)
		}
		if _, err := store.MarkVideoReadyByAssetID(assetID, 10); err != nil {
			t.Fatalf("MarkVideoReadyByAssetID returned error: %v", err)
		}
	}
	// Private and not-yet-ready videos never appear in the feed.
	if _, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "a-private", IsPrivate: true}); err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}
	if _, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "a-pending"}); err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	page, total := store.ListReadyPublicVideos(1, 2)
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 videos on first page, got %d", len(page))
	}
	second, _ := store.ListReadyPublicVideos(2, 2)
	if len(second) != 1 {
		t.Fatalf("expected 1 video on second page, got %d", len(second))
	}
}

func TestUpdateVideoMetadataOwnerOnly(t *testing.T) {
	store := newTestStorage(t)
	ownerID := createTestUser(t, store, "alpha")
	otherID := createTestUser(t, store, "beta")
	video, err := store.CreateVideo(CreateVideoParams{UserID: ownerID, AssetID: "asset-1", Title: "Before"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	title := "After"
	if _, err := store.UpdateVideoMetadata(video.ID, otherID, VideoMetadataUpdate{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	updated, err := store.UpdateVideoMetadata(video.ID, ownerID, VideoMetadataUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateVideoMetadata returned error: %v", err)
	}
	if updated.Title != "After" {
		t.Fatalf("expected title updated, got %q", updated.Title)
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	store := newTestStorage(t)
	ownerID := createTestUser(t, store, "alpha")
	granteeID := createTestUser(t, store, "beta")
	video, err := store.CreateVideo(CreateVideoParams{UserID: ownerID, AssetID: "asset-1", IsPrivate: true})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}
	if _, err := store.ShareVideo(video.ID, granteeID, ownerID); err != nil {
		t.Fatalf("ShareVideo returned error: %v", err)
	}
	if _, err := store.CreateComment(video.ID, granteeID, "nice one"); err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}

	if _, err := store.DeleteVideo(video.ID, granteeID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner delete, got %v", err)
	}

	deleted, err := store.DeleteVideo(video.ID, ownerID)
	if err != nil {
		t.Fatalf("DeleteVideo returned error: %v", err)
	}
	if deleted.AssetID != "asset-1" {
		t.Fatalf("expected deleted record to carry the asset id, got %q", deleted.AssetID)
	}
	if _, ok := store.GetVideo(video.ID); ok {
		t.Fatalf("video still present after delete")
	}
	if entries := store.ListSharedWithUser(granteeID); len(entries) != 0 {
		t.Fatalf("share grants survived the delete")
	}
	if _, err := store.ListComments(video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound listing comments of deleted video, got %v", err)
	}
}
