package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// requestScope is attached by RequestID and shared by every later
// middleware on the same request. Authentication tags its logger with the
// caller so the completion line carries the user id.
type requestScope struct {
	start  time.Time
	logger *zap.Logger
}

type scopeKey struct{}

func withScope(ctx context.Context, s *requestScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) *requestScope {
	s, _ := ctx.Value(scopeKey{}).(*requestScope)
	return s
}

// GetRequestLogger returns the logger tagged with the request id, or a
// no-op logger outside a request.
func GetRequestLogger(ctx context.Context) *zap.Logger {
	if s := scopeFrom(ctx); s != nil && s.logger != nil {
		return s.logger
	}
	return zap.NewNop()
}

// GetRequestStart returns when RequestID first saw the request.
func GetRequestStart(ctx context.Context) time.Time {
	if s := scopeFrom(ctx); s != nil {
		return s.start
	}
	return time.Now()
}

// tagUser adds the authenticated user to the request logger.
func tagUser(ctx context.Context, userID int64, username string) {
	if s := scopeFrom(ctx); s != nil && s.logger != nil {
		s.logger = s.logger.With(zap.Int64("user_id", userID), zap.String("username", username))
	}
}
