package cache

import (
	"context"
	"errors"

	"grocer/internal/cart"
)

// CartCache persists a session's cart lines between requests and restarts.
type CartCache interface {
	Get(ctx context.Context, sessionID string) ([]cart.Line, error)
	Set(ctx context.Context, sessionID string, lines []cart.Line) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
