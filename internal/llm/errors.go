package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUnauthorized means the provider rejected the API key.
	ErrUnauthorized = errors.New("model provider rejected the API key")
	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("model provider rate limit reached")
	// ErrEmptyResponse means the provider answered without any content.
	ErrEmptyResponse = errors.New("model returned no content")
)

// classifyStatus maps an HTTP status from a provider onto the package
// sentinels so callers can tell auth and quota failures apart.
func classifyStatus(provider string, status int, err error) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %v", provider, ErrUnauthorized, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %v", provider, ErrRateLimited, err)
	default:
		return fmt.Errorf("%s API call failed: %w", provider, err)
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
