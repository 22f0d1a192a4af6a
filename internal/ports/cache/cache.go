package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// SessionCache keeps short-lived authentication state.
type SessionCache interface {
	// Revoke marks a session id as signed out until ttl elapses.
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	// SaveState stores an OAuth state value; ConsumeState deletes it and
	// reports whether it was present.
	SaveState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeState(ctx context.Context, state string) (bool, error)
}

// SnapshotStore persists timeline snapshots per user and view. Payloads are
// opaque JSON documents tagged with the virtual date they were captured at.
type SnapshotStore interface {
	Save(ctx context.Context, userID, view, date string, payload []byte) error
	Load(ctx context.Context, userID, view string) (date string, payload []byte, err error)
	// Invalidate drops every snapshot of userID not captured at date.
	Invalidate(ctx context.Context, userID, date string) (int, error)
}
