package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hirewise/api/internal/client"
)

var (
	// ErrProviderUnavailable covers missing configuration, transport failures and provider-side errors.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrInvalidResponseShape means the provider answered but not with something usable.
	ErrInvalidResponseShape = errors.New("invalid ai response shape")
	ErrRateLimited          = errors.New("ai provider rate limited")
	// ErrInvalidInput is returned before any provider call is made.
	ErrInvalidInput = errors.New("invalid ai input")
)

// classify maps a provider call failure onto one of the typed errors while
// keeping the original error in the chain.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %w", op, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
}

func shapeError(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidResponseShape, reason)
}
