package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expertene/internal/config"
)

func TestMemoryFeed_DeliversToChannelSubscribers(t *testing.T) {
	feed := NewMemoryFeed(zap.NewNop())
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, DocumentChannel(7))
	require.NoError(t, err)
	other, err := feed.Subscribe(ctx, DocumentChannel(8))
	require.NoError(t, err)
	defer other.Close()

	change := Change{Table: "likes", Event: "INSERT", RowID: 7}
	require.NoError(t, feed.Publish(ctx, DocumentChannel(7), change))

	select {
	case got := <-sub.C():
		assert.Equal(t, change, got)
	case <-time.After(time.Second):
		t.Fatal("change not delivered")
	}

	select {
	case <-other.C():
		t.Fatal("change leaked to another channel")
	default:
	}

	require.NoError(t, sub.Close())
	_, open := <-sub.C()
	assert.False(t, open)

	// publishing after release must not panic
	require.NoError(t, feed.Publish(ctx, DocumentChannel(7), change))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "documents:42", DocumentChannel(42))
	assert.Equal(t, "uploads:abc", UploadChannel("abc"))
}

func TestDetectKind(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	limits := StorageLimits{MaxImageSize: 1024, MaxVideoSize: 4096, Extensions: []string{"png", "jpg"}}

	tests := []struct {
		name    string
		upload  Upload
		want    MediaKind
		wantErr error
	}{
		{"png image", Upload{Filename: "a.PNG", Size: 100, Body: bytes.NewReader(png)}, MediaImage, nil},
		{"too large", Upload{Filename: "a.png", Size: 2048, Body: bytes.NewReader(png)}, "", ErrFileTooLarge},
		{"bad extension", Upload{Filename: "a.gif", Size: 100, Body: bytes.NewReader(png)}, "", ErrInvalidExtension},
		{"plain text", Upload{Filename: "a.png", Size: 5, Body: bytes.NewReader([]byte("hello"))}, "", ErrInvalidContentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := DetectKind(tt.upload, limits)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)

			pos, err := tt.upload.Body.Seek(0, 1)
			require.NoError(t, err)
			assert.Zero(t, pos)
		})
	}
}

func TestFunctionsClient_GenerateSlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-slug", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["title"] == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"exploded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"slug":"my-guide-x1"}`))
	}))
	defer srv.Close()

	client := NewFunctionsClient(config.PlatformConfig{
		FunctionsURL:     srv.URL,
		FunctionsKey:     "secret",
		FunctionsTimeout: time.Second,
	}, zap.NewNop())

	slug, err := client.GenerateSlug(context.Background(), "My Guide")
	require.NoError(t, err)
	assert.Equal(t, "my-guide-x1", slug)

	_, err = client.GenerateSlug(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}

func TestFunctionsClient_Disabled(t *testing.T) {
	client := NewFunctionsClient(config.PlatformConfig{}, zap.NewNop())
	_, err := client.GenerateSlug(context.Background(), "x")
	assert.ErrorIs(t, err, ErrFunctionsDisabled)
}

type recordingSink struct {
	events []AnalyticsEvent
	err    error
}

func (r *recordingSink) Track(_ context.Context, e AnalyticsEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) Close() error { return nil }

func TestMultiSink_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("broker down")}
	sink := MultiSink{ok, failing}

	err := sink.Track(context.Background(), AnalyticsEvent{Name: "published", DocumentID: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.Len(t, ok.events, 1)
	require.Len(t, failing.events, 1)
	assert.False(t, ok.events[0].Timestamp.IsZero())
}

func TestNewAnalyticsSink_EmptyWhenUnconfigured(t *testing.T) {
	functions := NewFunctionsClient(config.PlatformConfig{}, zap.NewNop())
	sink := NewAnalyticsSink(functions, config.AnalyticsConfig{}, zap.NewNop())
	assert.Empty(t, sink)
	assert.NoError(t, sink.Track(context.Background(), AnalyticsEvent{Name: "view"}))
}
