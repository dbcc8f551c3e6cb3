// Package realtime serves the WebSocket endpoint that keeps readers'
// engagement counters live and relays upload progress and streak updates.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/engagement"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Engagement is the part of the engagement service the hub drives.
type Engagement interface {
	Toggle(ctx context.Context, userID, documentID int64, kind engagement.Kind, active bool) error
	GetCounts(ctx context.Context, documentID int64) (models.EngagementCounts, error)
	GetViewerState(ctx context.Context, documentID, userID int64) (models.ViewerState, error)
}

// Config tunes the hub.
type Config struct {
	AllowedOrigins []string
}

// Hub tracks connected sockets. A socket may watch any number of documents
// and uploads; each watch holds one change feed subscription that is
// released when the socket unsubscribes or disconnects.
type Hub struct {
	feed       platform.ChangeFeed
	engagement Engagement
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	byUser  map[int64]map[*client]struct{}
}

// NewHub creates a hub.
func NewHub(feed platform.ChangeFeed, eng Engagement, cfg Config, logger *zap.Logger) *Hub {
	h := &Hub{
		feed:       feed,
		engagement: eng,
		logger:     logger,
		clients:    make(map[*client]struct{}),
		byUser:     make(map[int64]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Register subscribes the hub to streak updates so they reach the
// author's open sockets.
func (h *Hub) Register(bus events.EventBus) error {
	return bus.Subscribe(events.TypeStreakUpdated,
		events.NewTypedEventHandler("realtime.streak", h.onStreak))
}

func (h *Hub) onStreak(_ context.Context, evt *events.StreakUpdatedEvent) error {
	userID := evt.GetUserID()
	if userID == nil {
		return nil
	}
	h.SendToUser(*userID, Frame{
		Type:   FrameStreak,
		Streak: &models.Streak{UserID: *userID, Current: evt.CurrentStreak, Longest: evt.LongestStreak},
	})
	return nil
}

// ServeHTTP upgrades the request. Anonymous sockets may watch documents but
// cannot toggle.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	userID := contextutils.GetUserID(r.Context())
	c := newClient(h, conn, userID)
	h.add(c)

	h.logger.Debug("WebSocket connected", zap.Int64("user_id", userID))
	go c.writePump()
	c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if c.userID != 0 {
		if h.byUser[c.userID] == nil {
			h.byUser[c.userID] = make(map[*client]struct{})
		}
		h.byUser[c.userID][c] = struct{}{}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if set, ok := h.byUser[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.userID)
		}
	}
}

// SendToUser queues frame on every socket of userID.
func (h *Hub) SendToUser(userID int64, frame Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.push(frame)
	}
}

// Connections reports the number of open sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every socket and releases their subscriptions.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("Realtime hub stopped", zap.Int("closed", len(clients)))
}
