package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"framecast/internal/livecomments"
	"framecast/internal/storage"
)

func newLiveCommentHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	handler, store := newTestHandler(t)
	handler.LiveComments = livecomments.NewGateway(livecomments.GatewayConfig{
		Queue:   livecomments.NewMemoryQueue(0),
		Catalog: store,
	})
	return handler, store
}

func TestLiveCommentRailOverHTTP(t *testing.T) {
	handler, store := newLiveCommentHandler(t)
	owner := mustCreateUser(t, store, "railowner")
	video := mustCreateVideo(t, store, owner.ID, false)
	cookie := mustLogin(t, handler, "railowner@example.com")

	body := []byte(`{"content":"hello live"}`)
	req := authedRequest(http.MethodPost, "/api/videos/"+video.ID+"/livecomments", body, cookie)
	rec := httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status %d: %s", rec.Code, rec.Body.String())
	}
	var comment livecomments.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &comment); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if comment.Content != "hello live" || comment.Author.ChannelName != "railowner" {
		t.Fatalf("unexpected comment: %+v", comment)
	}

	req = authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/livecomments", nil, cookie)
	rec = httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listResp struct {
		Comments []livecomments.Comment `json:"comments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode comments: %v", err)
	}
	if len(listResp.Comments) != 1 {
		t.Fatalf("expected 1 live comment, got %d", len(listResp.Comments))
	}

	req = authedRequest(http.MethodDelete, "/api/videos/"+video.ID+"/livecomments/"+comment.ID, nil, cookie)
	rec = httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d: %s", rec.Code, rec.Body.String())
	}

	req = authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/livecomments", nil, cookie)
	rec = httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode comments after delete: %v", err)
	}
	if len(listResp.Comments) != 0 {
		t.Fatalf("comment survived deletion")
	}
}

func TestLiveCommentRailHonoursPrivacy(t *testing.T) {
	handler, store := newLiveCommentHandler(t)
	owner := mustCreateUser(t, store, "privowner")
	mustCreateUser(t, store, "outsider")
	video := mustCreateVideo(t, store, owner.ID, true)
	outsiderCookie := mustLogin(t, handler, "outsider@example.com")

	body := []byte(`{"content":"let me in"}`)
	req := authedRequest(http.MethodPost, "/api/videos/"+video.ID+"/livecomments", body, outsiderCookie)
	rec := httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d", rec.Code)
	}

	req = authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/livecomments", nil, outsiderCookie)
	rec = httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider list, got %d", rec.Code)
	}
}

func TestLiveCommentsDisabled(t *testing.T) {
	handler, store := newTestHandler(t)
	owner := mustCreateUser(t, store, "nochat")
	video := mustCreateVideo(t, store, owner.ID, false)
	cookie := mustLogin(t, handler, "nochat@example.com")

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/livecomments", nil, cookie)
	rec := httptest.NewRecorder()
	handler.VideoSubtree(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when live comments are off, got %d", rec.Code)
	}
}
