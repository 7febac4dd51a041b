package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"framecast/internal/models"
)

func TestCreateCommentTrimsContent(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	video, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	comment, err := store.CreateComment(video.ID, userID, "  great stream  ")
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}
	if comment.Content != "great stream" {
		t.Fatalf("expected trimmed content, got %q", comment.Content)
	}
}

func TestCreateCommentValidation(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	video, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	if _, err := store.CreateComment(video.ID, userID, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank content, got %v", err)
	}
	if _, err := store.CreateComment(video.ID, userID, strings.Repeat("x", 1001)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for oversized content, got %v", err)
	}
	// Exactly 1000 characters is allowed.
	if _, err := store.CreateComment(video.ID, userID, strings.Repeat("x", 1000)); err != nil {
		t.Fatalf("CreateComment rejected 1000-character content: %v", err)
	}
	// The limit counts characters, not bytes: 1000 two-byte runes fit.
	if _, err := store.CreateComment(video.ID, userID, strings.Repeat("é", 1000)); err != nil {
		t.Fatalf("CreateComment rejected 1000 multibyte characters: %v", err)
	}
	if _, err := store.CreateComment(video.ID, userID, strings.Repeat("é", 1001)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for 1001 multibyte characters, got %v", err)
	}
	if _, err := store.CreateComment("missing", userID, "hello"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}
}

func TestListCommentsNewestFirst(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	video, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	for _, content := range []string{"first", "second", "third"} {
		if _, err := store.CreateComment(video.ID, userID, content); err != nil {
			t.Fatalf("CreateComment returned error: %v", err)
		}
	}

	comments, err := store.ListComments(video.ID)
	if err != nil {
		t.Fatalf("ListComments returned error: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(comments))
	}
	for i := 1; i < len(comments); i++ {
		if comments[i].CreatedAt.After(comments[i-1].CreatedAt) {
			t.Fatalf("comments not ordered newest first")
		}
	}
}

func TestGenerateIDFollowsInsertionOrder(t *testing.T) {
	prev, err := generateID()
	if err != nil {
		t.Fatalf("generateID returned error: %v", err)
	}
	for i := 0; i < 100; i++ {
		next, err := generateID()
		if err != nil {
			t.Fatalf("generateID returned error: %v", err)
		}
		if next <= prev {
			t.Fatalf("expected ids to increase, got %s then %s", prev, next)
		}
		prev = next
	}
}

func TestListCommentsTieBreakByInsertionOrder(t *testing.T) {
	store := newTestStorage(t)
	userID := createTestUser(t, store, "alpha")
	video, err := store.CreateVideo(CreateVideoParams{UserID: userID, AssetID: "asset-1"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}

	// Force identical creation times so ordering rests on the ids alone.
	now := time.Now().UTC()
	ids := make([]string, 3)
	for i := range ids {
		id, err := generateID()
		if err != nil {
			t.Fatalf("generateID returned error: %v", err)
		}
		ids[i] = id
		store.data.Comments[id] = models.Comment{
			ID:        id,
			VideoID:   video.ID,
			UserID:    userID,
			Content:   fmt.Sprintf("comment %d", i),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	comments, err := store.ListComments(video.ID)
	if err != nil {
		t.Fatalf("ListComments returned error: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(comments))
	}
	for i, comment := range comments {
		if want := ids[len(ids)-1-i]; comment.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, comment.ID)
		}
	}
}

func TestDeleteCommentAuthorOnly(t *testing.T) {
	store := newTestStorage(t)
	authorID := createTestUser(t, store, "alpha")
	otherID := createTestUser(t, store, "beta")
	video, err := store.CreateVideo(CreateVideoParams{UserID: authorID, AssetID: "asset-1"})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}
	comment, err := store.CreateComment(video.ID, authorID, "hello")
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}

	if err := store.DeleteComment(video.ID, comment.ID, otherID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-author delete, got %v", err)
	}
	if err := store.DeleteComment("other-video", comment.ID, authorID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for mismatched video, got %v", err)
	}
	if err := store.DeleteComment(video.ID, comment.ID, authorID); err != nil {
		t.Fatalf("DeleteComment returned error: %v", err)
	}
	comments, err := store.ListComments(video.ID)
	if err != nil {
		t.Fatalf("ListComments returned error: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("expected no comments after delete, got %d", len(comments))
	}
}
