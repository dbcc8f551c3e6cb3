package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expertene/internal/contextutils"
	"expertene/internal/engagement"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
)

type fakeEngagement struct {
	mu        sync.Mutex
	counts    map[int64]models.EngagementCounts
	toggleErr error
	toggles   []engagement.Kind
}

func (f *fakeEngagement) Toggle(_ context.Context, _, _ int64, kind engagement.Kind, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, kind)
	return f.toggleErr
}

func (f *fakeEngagement) GetCounts(_ context.Context, documentID int64) (models.EngagementCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counts[documentID]
	if !ok {
		return models.EngagementCounts{}, errors.New("not found")
	}
	return c, nil
}

func (f *fakeEngagement) GetViewerState(context.Context, int64, int64) (models.ViewerState, error) {
	return models.ViewerState{}, nil
}

func (f *fakeEngagement) setCounts(id int64, c models.EngagementCounts) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id] = c
}

type hubFixture struct {
	hub  *Hub
	feed platform.ChangeFeed
	eng  *fakeEngagement
	srv  *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	feed := platform.NewMemoryFeed(zap.NewNop())
	eng := &fakeEngagement{counts: map[int64]models.EngagementCounts{7: {Likes: 5, Bookmarks: 1}}}
	hub := NewHub(feed, eng, Config{}, zap.NewNop())

	// ?uid=N stands in for the auth middleware.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, err := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64); err == nil {
			r = r.WithContext(contextutils.WithUser(r.Context(), &models.User{ID: uid}))
		}
		hub.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return &hubFixture{hub: hub, feed: feed, eng: eng, srv: srv}
}

func (f *hubFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg Inbound) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHub_SubscribeToggleAndReconcile(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "uid=1")

	send(t, conn, Inbound{Type: FrameSubscribe, DocumentID: 7})
	initial := read(t, conn)
	require.Equal(t, FrameCounts, initial.Type)
	assert.Equal(t, 5, initial.State.Counts.Likes)

	send(t, conn, Inbound{Type: FrameToggleLike, DocumentID: 7})
	toggled := read(t, conn)
	require.Equal(t, FrameCounts, toggled.Type)
	assert.Equal(t, 6, toggled.State.Counts.Likes)
	assert.True(t, toggled.State.Liked)

	// A change notification triggers a full re-fetch.
	f.eng.setCounts(7, models.EngagementCounts{Likes: 10, Bookmarks: 3})
	require.NoError(t, f.feed.Publish(context.Background(), platform.DocumentChannel(7), platform.Change{Table: "likes", Event: "INSERT", RowID: 7}))

	refreshed := read(t, conn)
	require.Equal(t, FrameCounts, refreshed.Type)
	assert.Equal(t, 10, refreshed.State.Counts.Likes)
	assert.Equal(t, 3, refreshed.State.Counts.Bookmarks)
	assert.True(t, refreshed.State.Liked)
}

func TestHub_ToggleFailureRestoresState(t *testing.T) {
	f := newHubFixture(t)
	f.eng.toggleErr = errors.New("network down")
	conn := f.dial(t, "uid=1")

	send(t, conn, Inbound{Type: FrameSubscribe, DocumentID: 7})
	read(t, conn)

	send(t, conn, Inbound{Type: FrameToggleBookmark, DocumentID: 7})
	frame := read(t, conn)
	require.Equal(t, FrameError, frame.Type)
	require.NotNil(t, frame.State)
	assert.Equal(t, 1, frame.State.Counts.Bookmarks)
	assert.False(t, frame.State.Bookmarked)
	assert.NotEmpty(t, frame.Error)
}

func TestHub_Rejections(t *testing.T) {
	f := newHubFixture(t)

	anon := f.dial(t, "")
	send(t, anon, Inbound{Type: FrameSubscribe, DocumentID: 7})
	assert.Equal(t, FrameCounts, read(t, anon).Type)
	send(t, anon, Inbound{Type: FrameToggleLike, DocumentID: 7})
	assert.Equal(t, FrameError, read(t, anon).Type)

	user := f.dial(t, "uid=2")
	send(t, user, Inbound{Type: FrameToggleLike, DocumentID: 7})
	assert.Equal(t, "subscribe to the document first", read(t, user).Error)

	send(t, user, Inbound{Type: FrameSubscribe, DocumentID: 404})
	assert.Equal(t, "document not found", read(t, user).Error)

	send(t, user, Inbound{Type: "dance"})
	assert.Equal(t, FrameError, read(t, user).Type)

	f.eng.mu.Lock()
	assert.Empty(t, f.eng.toggles)
	f.eng.mu.Unlock()
}

func TestHub_UploadProgress(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "uid=1")

	send(t, conn, Inbound{Type: FrameWatchUpload, UploadID: "up-1"})
	// Frames are handled in order, so once the subscribe reply arrives the
	// upload watch is in place.
	send(t, conn, Inbound{Type: FrameSubscribe, DocumentID: 7})
	require.Equal(t, FrameCounts, read(t, conn).Type)

	channel := platform.UploadChannel("up-1")
	ctx := context.Background()
	require.NoError(t, f.feed.Publish(ctx, channel, platform.Change{Table: "uploads", Event: "progress", Data: map[string]any{"progress": 30}}))
	require.NoError(t, f.feed.Publish(ctx, channel, platform.Change{Table: "uploads", Event: "complete", Data: map[string]any{"progress": 100}}))

	first := read(t, conn)
	require.Equal(t, FrameUpload, first.Type)
	assert.Equal(t, "up-1", first.UploadID)
	assert.Equal(t, "progress", first.Change.Event)
	assert.EqualValues(t, 30, first.Change.Data["progress"])

	done := read(t, conn)
	assert.Equal(t, "complete", done.Change.Event)
}

func TestHub_StreakForwarding(t *testing.T) {
	f := newHubFixture(t)
	bus := events.NewEventBus(events.DefaultEventBusConfig(), zap.NewNop())
	require.NoError(t, f.hub.Register(bus))

	conn := f.dial(t, "uid=5")
	other := f.dial(t, "uid=6")
	require.Eventually(t, func() bool { return f.hub.Connections() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), events.NewStreakUpdatedEvent(5, 3, 9)))

	frame := read(t, conn)
	require.Equal(t, FrameStreak, frame.Type)
	assert.Equal(t, &models.Streak{UserID: 5, Current: 3, Longest: 9}, frame.Streak)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	var none Frame
	assert.Error(t, other.ReadJSON(&none))
}

func TestHub_DisconnectReleasesSubscriptions(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "uid=1")

	send(t, conn, Inbound{Type: FrameSubscribe, DocumentID: 7})
	read(t, conn)
	require.Equal(t, 1, f.hub.Connections())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Publishing after release must not block or panic.
	require.NoError(t, f.feed.Publish(context.Background(), platform.DocumentChannel(7), platform.Change{Table: "likes"}))
}
