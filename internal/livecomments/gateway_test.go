package livecomments_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"framecast/internal/livecomments"
	"framecast/internal/models"
	"framecast/internal/storage"
)

func TestGatewayCommentFlow(t *testing.T) {
	store := newTestStorage(t)
	uploader := mustCreateUser(t, store, "uploader")
	viewer := mustCreateUser(t, store, "viewer")
	video := mustCreateVideo(t, store, uploader.ID, false)

	gateway := livecomments.NewGateway(livecomments.GatewayConfig{
		Queue:   livecomments.NewMemoryQueue(32),
		Catalog: store,
	})

	server := newGatewayServer(t, store, gateway)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1)
	uploaderConn := mustDial(t, wsURL+"?user="+uploader.ID)
	defer uploaderConn.Close()
	viewerConn := mustDial(t, wsURL+"?user="+viewer.ID)
	defer viewerConn.Close()

	join := map[string]string{"type": "join-video", "videoId": video.ID}
	sendJSON(t, uploaderConn, join)
	waitForType(t, uploaderConn, "ack")
	sendJSON(t, viewerConn, join)
	waitForType(t, viewerConn, "ack")

	sendJSON(t, viewerConn, map[string]string{
		"type":    "comment",
		"videoId": video.ID,
		"content": "great video",
	})

	expectEvent(t, uploaderConn, "new-comment")
	event := expectEvent(t, viewerConn, "new-comment")
	comment, _ := event["comment"].(map[string]interface{})
	if comment == nil {
		t.Fatalf("expected comment payload, got %v", event)
	}
	if comment["content"] != "great video" {
		t.Fatalf("unexpected content %v", comment["content"])
	}
	user, _ := comment["user"].(map[string]interface{})
	if user == nil || user["channelName"] != viewer.ChannelName {
		t.Fatalf("expected author snapshot for %s, got %v", viewer.ChannelName, comment["user"])
	}

	commentID, _ := comment["id"].(string)
	sendJSON(t, viewerConn, map[string]string{
		"type":      "delete-comment",
		"videoId":   video.ID,
		"commentId": commentID,
	})
	deleted := expectEvent(t, uploaderConn, "comment-deleted")
	if deleted["commentId"] != commentID {
		t.Fatalf("expected deletion of %s, got %v", commentID, deleted["commentId"])
	}

	comments, err := gateway.Comments(video.ID, viewer.ID)
	if err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("expected empty room after delete, got %d", len(comments))
	}
}

func TestGatewayPrivateVideoAccess(t *testing.T) {
	store := newTestStorage(t)
	uploader := mustCreateUser(t, store, "uploader")
	outsider := mustCreateUser(t, store, "outsider")
	friend := mustCreateUser(t, store, "friend")
	video := mustCreateVideo(t, store, uploader.ID, true)
	if _, err := store.ShareVideo(video.ID, friend.ID, uploader.ID); err != nil {
		t.Fatalf("ShareVideo: %v", err)
	}

	gateway := livecomments.NewGateway(livecomments.GatewayConfig{Catalog: store})
	server := newGatewayServer(t, store, gateway)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1)
	outsiderConn := mustDial(t, wsURL+"?user="+outsider.ID)
	defer outsiderConn.Close()
	friendConn := mustDial(t, wsURL+"?user="+friend.ID)
	defer friendConn.Close()

	sendJSON(t, outsiderConn, map[string]string{"type": "join-video", "videoId": video.ID})
	waitForType(t, outsiderConn, "error")
	sendJSON(t, friendConn, map[string]string{"type": "join-video", "videoId": video.ID})
	waitForType(t, friendConn, "ack")

	if _, err := gateway.PostComment(context.Background(), outsider, video.ID, "hi"); !errors.Is(err, livecomments.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
	if _, err := gateway.Comments("missing-video", outsider.ID); !errors.Is(err, livecomments.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound for unknown video, got %v", err)
	}
	if _, err := gateway.PostComment(context.Background(), friend, video.ID, "hi"); err != nil {
		t.Fatalf("PostComment as grantee: %v", err)
	}
}

func TestGatewayDeleteRequiresAuthor(t *testing.T) {
	store := newTestStorage(t)
	uploader := mustCreateUser(t, store, "uploader")
	viewer := mustCreateUser(t, store, "viewer")
	video := mustCreateVideo(t, store, uploader.ID, false)

	gateway := livecomments.NewGateway(livecomments.GatewayConfig{Catalog: store})
	comment, err := gateway.PostComment(context.Background(), viewer, video.ID, "mine")
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if err := gateway.DeleteComment(context.Background(), uploader, video.ID, comment.ID); !errors.Is(err, livecomments.ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound for non-author delete, got %v", err)
	}
	if err := gateway.DeleteComment(context.Background(), viewer, video.ID, comment.ID); err != nil {
		t.Fatalf("DeleteComment by author: %v", err)
	}
}

func TestGatewayMirrorsQueueEvents(t *testing.T) {
	store := newTestStorage(t)
	uploader := mustCreateUser(t, store, "uploader")
	video := mustCreateVideo(t, store, uploader.ID, false)

	queue := livecomments.NewMemoryQueue(32)
	gatewayA := livecomments.NewGateway(livecomments.GatewayConfig{Queue: queue, Catalog: store})
	gatewayB := livecomments.NewGateway(livecomments.GatewayConfig{Queue: queue, Catalog: store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gatewayB.Run(ctx)
	// let the subscription attach before publishing
	time.Sleep(50 * time.Millisecond)

	comment, err := gatewayA.PostComment(context.Background(), uploader, video.ID, "hello from A")
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		mirrored, err := gatewayB.Comments(video.ID, uploader.ID)
		return err == nil && len(mirrored) == 1 && mirrored[0].ID == comment.ID
	})

	if err := gatewayA.DeleteComment(context.Background(), uploader, video.ID, comment.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		mirrored, err := gatewayB.Comments(video.ID, uploader.ID)
		return err == nil && len(mirrored) == 0
	})
}

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(t.TempDir() + "/store.json")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store
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

func mustCreateVideo(t *testing.T, store *storage.Storage, userID string, private bool) models.Video {
	t.Helper()
	video, err := store.CreateVideo(storage.CreateVideoParams{
		UserID:     userID,
		AssetID:    "asset-" + userID,
		PlaybackID: "playback-" + userID,
		Title:      "Test video",
		IsPrivate:  private,
		Status:     models.VideoStatusReady,
	})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

func newGatewayServer(t *testing.T, store *storage.Storage, gateway *livecomments.Gateway) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := store.GetUser(r.URL.Query().Get("user"))
		if !ok {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		gateway.HandleConnection(w, r, user)
	}))
}

func mustDial(t *testing.T, url string) *livecomments.Conn {
	t.Helper()
	conn, err := livecomments.Dial(context.Background(), url, http.Header{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func sendJSON(t *testing.T, conn *livecomments.Conn, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteText(data); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
}

func waitForType(t *testing.T, conn *livecomments.Conn, expected string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		data, err := conn.ReadMessage(ctx)
		cancel()
		if err != nil {
			t.Fatalf("ReadMessage while waiting for %q: %v", expected, err)
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if payload["type"] == expected {
			return payload
		}
	}
	t.Fatalf("did not receive %q before timeout", expected)
	return nil
}

func expectEvent(t *testing.T, conn *livecomments.Conn, expectedType string) map[string]interface{} {
	t.Helper()
	message := waitForType(t, conn, "event")
	event, ok := message["event"].(map[string]interface{})
	if !ok {
		t.Fatalf("malformed event payload: %v", message)
	}
	if event["type"] != expectedType {
		t.Fatalf("expected event %s, got %v", expectedType, event["type"])
	}
	return event
}

func waitUntil(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
