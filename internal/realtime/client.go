package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"expertene/internal/engagement"
	"expertene/internal/models"
	"expertene/internal/platform"
)

// Frame types.
const (
	FrameSubscribe      = "subscribe"
	FrameUnsubscribe    = "unsubscribe"
	FrameWatchUpload    = "watch_upload"
	FrameToggleLike     = "toggle_like"
	FrameToggleBookmark = "toggle_bookmark"
	FrameCounts         = "counts"
	FrameUpload         = "upload"
	FrameStreak         = "streak"
	FrameError          = "error"
)

// Inbound is a frame sent by the browser.
type Inbound struct {
	Type       string `json:"type"`
	DocumentID int64  `json:"document_id,omitempty"`
	UploadID   string `json:"upload_id,omitempty"`
}

// Frame is a frame pushed to the browser.
type Frame struct {
	Type       string            `json:"type"`
	DocumentID int64             `json:"document_id,omitempty"`
	UploadID   string            `json:"upload_id,omitempty"`
	State      *engagement.State `json:"state,omitempty"`
	Change     *platform.Change  `json:"change,omitempty"`
	Streak     *models.Streak    `json:"streak,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type documentWatch struct {
	sub     platform.Subscription
	counter *engagement.Counter
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan Frame
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu        sync.Mutex
	closed    bool
	documents map[int64]*documentWatch
	uploads   map[string]platform.Subscription
	wg        sync.WaitGroup
}

func newClient(h *Hub, conn *websocket.Conn, userID int64) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		hub:       h,
		conn:      conn,
		userID:    userID,
		send:      make(chan Frame, sendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		logger:    h.logger.With(zap.Int64("user_id", userID)),
		documents: make(map[int64]*documentWatch),
		uploads:   make(map[string]platform.Subscription),
	}
}

// push queues a frame without blocking. Frames for a full or closed
// socket are dropped.
func (c *client) push(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	default:
		c.logger.Warn("Dropping frame for slow socket", zap.String("type", f.Type))
	}
}

func (c *client) fail(documentID int64, msg string) {
	c.push(Frame{Type: FrameError, DocumentID: documentID, Error: msg})
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(msg Inbound) {
	switch msg.Type {
	case FrameSubscribe:
		c.watchDocument(msg.DocumentID)
	case FrameUnsubscribe:
		c.unwatchDocument(msg.DocumentID)
	case FrameWatchUpload:
		c.watchUpload(msg.UploadID)
	case FrameToggleLike:
		c.toggle(msg.DocumentID, engagement.KindLike)
	case FrameToggleBookmark:
		c.toggle(msg.DocumentID, engagement.KindBookmark)
	default:
		c.fail(msg.DocumentID, "unknown frame type")
	}
}

// watchDocument seeds a counter from fetched counts and subscribes to the
// document's change channel. Every notification triggers a full re-fetch.
func (c *client) watchDocument(documentID int64) {
	if documentID <= 0 {
		c.fail(0, "document_id is required")
		return
	}
	c.mu.Lock()
	_, exists := c.documents[documentID]
	c.mu.Unlock()
	if exists {
		return
	}

	counts, err := c.hub.engagement.GetCounts(c.ctx, documentID)
	if err != nil {
		c.fail(documentID, "document not found")
		return
	}
	var viewer models.ViewerState
	if c.userID != 0 {
		if viewer, err = c.hub.engagement.GetViewerState(c.ctx, documentID, c.userID); err != nil {
			c.logger.Warn("Failed to load viewer state", zap.Error(err), zap.Int64("document_id", documentID))
		}
	}

	sub, err := c.hub.feed.Subscribe(c.ctx, platform.DocumentChannel(documentID))
	if err != nil {
		c.logger.Error("Failed to subscribe", zap.Error(err), zap.Int64("document_id", documentID))
		c.fail(documentID, "realtime unavailable")
		return
	}
	watch := &documentWatch{sub: sub, counter: engagement.NewCounter(counts, viewer)}

	c.mu.Lock()
	if c.closed || c.documents[documentID] != nil {
		c.mu.Unlock()
		sub.Close()
		return
	}
	c.documents[documentID] = watch
	c.wg.Add(1)
	c.mu.Unlock()

	state := watch.counter.State()
	c.push(Frame{Type: FrameCounts, DocumentID: documentID, State: &state})

	go func() {
		defer c.wg.Done()
		for range sub.C() {
			counts, err := c.hub.engagement.GetCounts(c.ctx, documentID)
			if err != nil {
				c.logger.Warn("Failed to refresh counts", zap.Error(err), zap.Int64("document_id", documentID))
				continue
			}
			state := watch.counter.Reconcile(counts)
			c.push(Frame{Type: FrameCounts, DocumentID: documentID, State: &state})
		}
	}()
}

func (c *client) unwatchDocument(documentID int64) {
	c.mu.Lock()
	watch, ok := c.documents[documentID]
	delete(c.documents, documentID)
	c.mu.Unlock()
	if ok {
		watch.sub.Close()
	}
}

func (c *client) watchUpload(uploadID string) {
	if uploadID == "" {
		c.fail(0, "upload_id is required")
		return
	}
	sub, err := c.hub.feed.Subscribe(c.ctx, platform.UploadChannel(uploadID))
	if err != nil {
		c.fail(0, "realtime unavailable")
		return
	}

	c.mu.Lock()
	if c.closed || c.uploads[uploadID] != nil {
		c.mu.Unlock()
		sub.Close()
		return
	}
	c.uploads[uploadID] = sub
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		for change := range sub.C() {
			c.push(Frame{Type: FrameUpload, UploadID: uploadID, Change: &change})
			if change.Event != "progress" {
				c.mu.Lock()
				delete(c.uploads, uploadID)
				c.mu.Unlock()
				sub.Close()
			}
		}
	}()
}

// toggle applies the change to the socket's counter first, then performs
// the mutation; on failure the counter is restored and the restored state
// is sent with the error.
func (c *client) toggle(documentID int64, kind engagement.Kind) {
	if c.userID == 0 {
		c.fail(documentID, "sign in to continue")
		return
	}
	c.mu.Lock()
	watch, ok := c.documents[documentID]
	c.mu.Unlock()
	if !ok {
		c.fail(documentID, "subscribe to the document first")
		return
	}

	state, err := watch.counter.Toggle(c.ctx, kind, func(ctx context.Context, active bool) error {
		return c.hub.engagement.Toggle(ctx, c.userID, documentID, kind, active)
	})
	frame := Frame{Type: FrameCounts, DocumentID: documentID, State: &state}
	if err != nil {
		c.logger.Warn("Toggle failed", zap.Error(err), zap.Int64("document_id", documentID), zap.String("kind", string(kind)))
		frame.Type = FrameError
		frame.Error = "could not update, please try again"
	}
	c.push(frame)
}

// close releases every subscription exactly once.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	docs := c.documents
	uploads := c.uploads
	c.documents = map[int64]*documentWatch{}
	c.uploads = map[string]platform.Subscription{}
	c.mu.Unlock()

	c.cancel()
	for _, w := range docs {
		w.sub.Close()
	}
	for _, s := range uploads {
		s.Close()
	}
	c.wg.Wait()

	c.hub.remove(c)
	close(c.send)
	c.logger.Debug("WebSocket disconnected")
}
