package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Change is one realtime notification. Table/Event/RowID describe a row
// mutation; Data carries optional extra payload such as upload progress.
type Change struct {
	Table string         `json:"table"`
	Event string         `json:"event"`
	RowID int64          `json:"row_id,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// DocumentChannel is the change channel for one document.
func DocumentChannel(documentID int64) string {
	return "documents:" + strconv.FormatInt(documentID, 10)
}

// UploadChannel is the progress channel for one upload.
func UploadChannel(uploadID string) string {
	return "uploads:" + uploadID
}

// Subscription delivers changes for one channel until closed.
type Subscription interface {
	C() <-chan Change
	Close() error
}

// ChangeFeed publishes and subscribes to realtime change channels.
type ChangeFeed interface {
	Publish(ctx context.Context, channel string, change Change) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

const subscriptionBuffer = 32

// ===============================
// IN-MEMORY FEED
// ===============================

type memoryFeed struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	logger *zap.Logger
}

type memorySubscription struct {
	feed    *memoryFeed
	channel string
	ch      chan Change
	once    sync.Once
}

// NewMemoryFeed returns a process-local change feed.
func NewMemoryFeed(logger *zap.Logger) ChangeFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryFeed{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		logger: logger,
	}
}

func (f *memoryFeed) Publish(_ context.Context, channel string, change Change) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[channel] {
		select {
		case sub.ch <- change:
		default:
			f.logger.Warn("Dropping change for slow subscriber", zap.String("channel", channel))
		}
	}
	return nil
}

func (f *memoryFeed) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{feed: f, channel: channel, ch: make(chan Change, subscriptionBuffer)}
	f.mu.Lock()
	if f.subs[channel] == nil {
		f.subs[channel] = make(map[*memorySubscription]struct{})
	}
	f.subs[channel][sub] = struct{}{}
	f.mu.Unlock()
	return sub, nil
}

func (f *memoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, subs := range f.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	f.subs = make(map[string]map[*memorySubscription]struct{})
	return nil
}

func (s *memorySubscription) C() <-chan Change { return s.ch }

func (s *memorySubscription) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if subs, ok := s.feed.subs[s.channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.feed.subs, s.channel)
		}
	}
	s.once.Do(func() { close(s.ch) })
	return nil
}

// ===============================
// REDIS FEED
// ===============================

type redisFeed struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisFeed returns a change feed over Redis pub/sub so every server
// instance sees every change.
func NewRedisFeed(client *redis.Client, prefix string, logger *zap.Logger) ChangeFeed {
	return &redisFeed{client: client, prefix: prefix, logger: logger}
}

func (f *redisFeed) Publish(ctx context.Context, channel string, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := f.client.Publish(ctx, f.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Change
	once   sync.Once
}

func (f *redisFeed) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.prefix+channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{pubsub: pubsub, ch: make(chan Change, subscriptionBuffer)}
	go func() {
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				f.logger.Warn("Ignoring malformed change", zap.String("channel", channel), zap.Error(err))
				continue
			}
			select {
			case sub.ch <- change:
			default:
				f.logger.Warn("Dropping change for slow subscriber", zap.String("channel", channel))
			}
		}
	}()
	return sub, nil
}

func (f *redisFeed) Close() error {
	return nil
}

func (s *redisSubscription) C() <-chan Change { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.pubsub.Close() })
	return err
}
