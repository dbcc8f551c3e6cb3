package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"expertene/internal/config"
)

// ErrFunctionsDisabled is returned when no edge-function endpoint is configured.
var ErrFunctionsDisabled = errors.New("edge functions are not configured")

// FunctionsClient calls the hosted edge functions over HTTP.
type FunctionsClient struct {
	http    *resty.Client
	enabled bool
	logger  *zap.Logger
}

// NewFunctionsClient builds a client for cfg.FunctionsURL. An empty URL
// yields a disabled client whose calls fail with ErrFunctionsDisabled.
func NewFunctionsClient(cfg config.PlatformConfig, logger *zap.Logger) *FunctionsClient {
	client := resty.New().
		SetBaseURL(cfg.FunctionsURL).
		SetTimeout(cfg.FunctionsTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.FunctionsKey != "" {
		client.SetAuthToken(cfg.FunctionsKey)
	}
	return &FunctionsClient{
		http:    client,
		enabled: cfg.FunctionsURL != "",
		logger:  logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *FunctionsClient) Enabled() bool { return c.enabled }

type functionError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *FunctionsClient) invoke(ctx context.Context, name string, body, out any) error {
	if !c.enabled {
		return ErrFunctionsDisabled
	}
	var fnErr functionError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&fnErr).
		Post("/" + name)
	if err != nil {
		return fmt.Errorf("edge function %s: %w", name, err)
	}
	if resp.IsError() {
		msg := fnErr.Message
		if msg == "" {
			msg = fnErr.Error
		}
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("edge function %s: %s", name, msg)
	}
	return nil
}

type slugResponse struct {
	Slug string `json:"slug"`
}

// GenerateSlug asks the generate-slug function for a slug of title.
func (c *FunctionsClient) GenerateSlug(ctx context.Context, title string) (string, error) {
	var out slugResponse
	if err := c.invoke(ctx, "generate-slug", map[string]string{"title": title}, &out); err != nil {
		return "", err
	}
	slug := strings.TrimSpace(out.Slug)
	if slug == "" {
		return "", fmt.Errorf("edge function generate-slug: empty slug")
	}
	return slug, nil
}

// Track forwards an analytics event to the track-event function.
func (c *FunctionsClient) Track(ctx context.Context, event AnalyticsEvent) error {
	if err := c.invoke(ctx, "track-event", event, nil); err != nil {
		return err
	}
	c.logger.Debug("Analytics event tracked",
		zap.String("event", event.Name),
		zap.Int64("document_id", event.DocumentID),
	)
	return nil
}

func (c *FunctionsClient) Close() error { return nil }
