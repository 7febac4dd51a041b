package livecomments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"framecast/internal/models"
	"framecast/internal/observability/metrics"
)

var (
	// ErrVideoNotFound is returned when a live comment operation names a
	// video the catalog does not know.
	ErrVideoNotFound = errors.New("video not found")
	// ErrForbidden is returned when the requester may not view the video.
	ErrForbidden = errors.New("forbidden")
	// ErrCommentNotFound is returned when a deletion names a comment the
	// requester does not own or that is already gone.
	ErrCommentNotFound = errors.New("comment not found")
)

// Catalog exposes the read-only video lookups the gateway needs to gate room
// membership.
type Catalog interface {
	GetVideo(id string) (models.Video, bool)
	CanAccessVideo(userID, videoID string) bool
}

// GatewayConfig configures a live comment Gateway.
type GatewayConfig struct {
	Queue   Queue
	Store   *Store
	Catalog Catalog
	Logger  *slog.Logger
	// HeartbeatInterval controls how often ping frames are sent to
	// connected viewers. Zero disables heartbeats.
	HeartbeatInterval time.Duration
}

// Gateway manages WebSocket viewers grouped into per-video rooms, fans
// comment events out to them, and mirrors the events onto the queue so other
// gateway instances can do the same.
type Gateway struct {
	id      string
	queue   Queue
	store   *Store
	catalog Catalog
	logger  *slog.Logger

	heartbeatInterval time.Duration

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

// NewGateway initialises a gateway using the provided configuration.
func NewGateway(cfg GatewayConfig) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = NewStore()
	}
	return &Gateway{
		id:                instanceID(),
		queue:             cfg.Queue,
		store:             store,
		catalog:           cfg.Catalog,
		logger:            logger,
		heartbeatInterval: cfg.HeartbeatInterval,
		rooms:             make(map[string]map[*client]struct{}),
	}
}

// Store returns the backing live comment store.
func (g *Gateway) Store() *Store {
	return g.store
}

// Run consumes the queue and re-broadcasts events produced by other gateway
// instances to local viewers. It blocks until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	if g.queue == nil {
		<-ctx.Done()
		return
	}
	sub := g.queue.Subscribe()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if event.Origin == g.id {
				continue
			}
			g.applyRemote(event)
			g.broadcast(event)
		}
	}
}

func (g *Gateway) applyRemote(event Event) {
	switch event.Type {
	case EventTypeNewComment:
		if event.Comment != nil {
			g.store.insert(*event.Comment)
		}
	case EventTypeCommentDeleted:
		g.store.remove(event.VideoID, event.CommentID)
	}
}

// HandleConnection upgrades the HTTP request to a WebSocket connection for
// the authenticated viewer.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request, user models.User) {
	conn, err := Upgrade(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-r.Context().Done()
		cancel()
	}()

	c := &client{
		gateway: g,
		conn:    conn,
		user:    user,
		send:    make(chan outboundMessage, 16),
		rooms:   make(map[string]struct{}),
		cancel:  cancel,
	}

	go c.writeLoop()
	if g.heartbeatInterval > 0 {
		go c.heartbeatLoop(ctx, g.heartbeatInterval)
	}
	go c.readLoop(ctx)
}

// PostComment records a live comment on a video and fans it out to the
// video's room.
func (g *Gateway) PostComment(ctx context.Context, author models.User, videoID, content string) (Comment, error) {
	if err := g.ensureVideoAccessible(videoID, author.ID); err != nil {
		return Comment{}, err
	}
	comment, err := g.store.Add(videoID, Author{
		ID:          author.ID,
		DisplayName: author.DisplayName,
		ChannelName: author.ChannelName,
		Email:       author.Email,
	}, content)
	if err != nil {
		return Comment{}, err
	}
	event := Event{
		Type:       EventTypeNewComment,
		VideoID:    videoID,
		Comment:    &comment,
		Origin:     g.id,
		OccurredAt: comment.CreatedAt,
	}
	g.broadcast(event)
	g.publish(ctx, event)
	metrics.Default().ObserveLiveCommentEvent(string(EventTypeNewComment))
	return comment, nil
}

// DeleteComment removes a live comment authored by the requester and
// announces the removal to the video's room.
func (g *Gateway) DeleteComment(ctx context.Context, requester models.User, videoID, commentID string) error {
	if !g.store.Delete(videoID, commentID, requester.ID) {
		return fmt.Errorf("comment %s: %w", commentID, ErrCommentNotFound)
	}
	event := Event{
		Type:       EventTypeCommentDeleted,
		VideoID:    videoID,
		CommentID:  commentID,
		Origin:     g.id,
		OccurredAt: time.Now().UTC(),
	}
	g.broadcast(event)
	g.publish(ctx, event)
	metrics.Default().ObserveLiveCommentEvent(string(EventTypeCommentDeleted))
	return nil
}

// Comments lists the live comments for a video, newest first, after checking
// the requester can view it.
func (g *Gateway) Comments(videoID, requesterID string) ([]Comment, error) {
	if err := g.ensureVideoAccessible(videoID, requesterID); err != nil {
		return nil, err
	}
	return g.store.Comments(videoID), nil
}

// DropVideo evicts the room and its comments, typically after the video is
// deleted.
func (g *Gateway) DropVideo(videoID string) {
	g.store.DropVideo(videoID)
	g.mu.Lock()
	delete(g.rooms, videoID)
	g.mu.Unlock()
}

func (g *Gateway) ensureVideoAccessible(videoID, userID string) error {
	if g.catalog == nil {
		return nil
	}
	video, ok := g.catalog.GetVideo(videoID)
	if !ok {
		return fmt.Errorf("video %s: %w", videoID, ErrVideoNotFound)
	}
	if video.IsPrivate && !g.catalog.CanAccessVideo(userID, videoID) {
		return ErrForbidden
	}
	return nil
}

func (g *Gateway) publish(ctx context.Context, event Event) {
	if g.queue == nil {
		return
	}
	if err := g.queue.Publish(ctx, event); err != nil {
		g.logger.Warn("failed to publish live comment event", "error", err)
	}
}

func (g *Gateway) broadcast(event Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	recipients := g.rooms[event.VideoID]
	if len(recipients) == 0 {
		return
	}
	payload, err := json.Marshal(outboundMessage{Type: "event", Event: &event})
	if err != nil {
		g.logger.Error("failed to marshal live comment event", "error", err)
		return
	}
	for c := range recipients {
		c.enqueue(outboundMessage{Raw: payload})
	}
}

func instanceID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("gw-%d", time.Now().UnixNano())
	}
	return "gw-" + hex.EncodeToString(buf)
}

type client struct {
	gateway *Gateway
	conn    *Conn
	user    models.User
	send    chan outboundMessage
	rooms   map[string]struct{}
	closed  sync.Once
	cancel  context.CancelFunc

	// sendMu orders enqueues against close: once stopping is set the send
	// channel may be closed, so no further sends are attempted.
	sendMu   sync.Mutex
	stopping bool
}

// enqueue offers a message to the client's write loop. Messages are dropped
// when the buffer is full or the client is shutting down; delivery on the
// live rail is best effort.
func (c *client) enqueue(msg outboundMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.stopping {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

type inboundMessage struct {
	Type      string `json:"type"`
	VideoID   string `json:"videoId"`
	Content   string `json:"content"`
	CommentID string `json:"commentId"`
}

type outboundMessage struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
	Event *Event `json:"event,omitempty"`
	Raw   []byte `json:"-"`
}

func (c *client) writeLoop() {
	defer c.close()
	for msg := range c.send {
		payload := msg.Raw
		if payload == nil {
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			payload = data
		}
		if err := c.conn.WriteText(payload); err != nil {
			return
		}
	}
}

func (c *client) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context) {
	defer c.close()
	for {
		payload, err := c.conn.ReadMessage(ctx)
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError("invalid payload")
			continue
		}
		switch msg.Type {
		case "join-video":
			c.handleJoin(msg.VideoID)
		case "leave-video":
			c.handleLeave(msg.VideoID)
		case "comment":
			c.handleComment(msg)
		case "delete-comment":
			c.handleDelete(msg)
		default:
			c.sendError("unknown command")
		}
	}
}

func (c *client) handleJoin(videoID string) {
	if videoID == "" {
		c.sendError("video required")
		return
	}
	if err := c.gateway.ensureVideoAccessible(videoID, c.user.ID); err != nil {
		c.sendError(err.Error())
		return
	}
	c.gateway.mu.Lock()
	if c.gateway.rooms[videoID] == nil {
		c.gateway.rooms[videoID] = make(map[*client]struct{})
	}
	c.gateway.rooms[videoID][c] = struct{}{}
	c.gateway.mu.Unlock()
	c.rooms[videoID] = struct{}{}

	payload, _ := json.Marshal(outboundMessage{Type: "ack"})
	c.enqueue(outboundMessage{Raw: payload})
}

func (c *client) handleLeave(videoID string) {
	if videoID == "" {
		return
	}
	c.gateway.mu.Lock()
	if clients := c.gateway.rooms[videoID]; clients != nil {
		delete(clients, c)
		if len(clients) == 0 {
			delete(c.gateway.rooms, videoID)
		}
	}
	c.gateway.mu.Unlock()
	delete(c.rooms, videoID)
}

func (c *client) handleComment(msg inboundMessage) {
	if msg.VideoID == "" {
		c.sendError("video required")
		return
	}
	if _, joined := c.rooms[msg.VideoID]; !joined {
		c.sendError("join video first")
		return
	}
	if _, err := c.gateway.PostComment(context.Background(), c.user, msg.VideoID, msg.Content); err != nil {
		c.sendError(err.Error())
	}
}

func (c *client) handleDelete(msg inboundMessage) {
	if msg.VideoID == "" || msg.CommentID == "" {
		c.sendError("video and comment required")
		return
	}
	if _, joined := c.rooms[msg.VideoID]; !joined {
		c.sendError("join video first")
		return
	}
	if err := c.gateway.DeleteComment(context.Background(), c.user, msg.VideoID, msg.CommentID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *client) sendError(message string) {
	payload, _ := json.Marshal(outboundMessage{Type: "error", Error: message})
	c.enqueue(outboundMessage{Raw: payload})
}

func (c *client) close() {
	c.closed.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		for videoID := range c.rooms {
			c.handleLeave(videoID)
		}
		c.sendMu.Lock()
		c.stopping = true
		close(c.send)
		c.sendMu.Unlock()
		_ = c.conn.Close()
	})
}
