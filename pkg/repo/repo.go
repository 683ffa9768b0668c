// Package repo defines the persistence contract for the engine: a versioned
// document store with optimistic concurrency. Games, lobbies and users are
// single documents; writes carry the version the caller read and fail with
// ErrVersionConflict when someone committed in between.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Document kinds. Each kind is its own keyspace.
const (
	KindGame  = "game"
	KindLobby = "lobby"
	KindUser  = "user"
)

var (
	// ErrNotFound is returned when no document exists under the given id.
	ErrNotFound = errors.New("repo: not found")
	// ErrVersionConflict is returned when the stored version differs from
	// the expected one, or when expected==0 and the document already exists.
	ErrVersionConflict = errors.New("repo: version conflict")
	// ErrUnavailable wraps backend failures that are worth retrying later.
	ErrUnavailable = errors.New("repo: unavailable")
)

// Store is the abstract persistence layer. An expected version of 0 on Put
// means "must not exist". Versions are opaque to callers beyond equality;
// both implementations here use a monotonically incrementing integer.
type Store interface {
	// Get returns the document and its current version.
	Get(ctx context.Context, kind, id string) (json.RawMessage, uint64, error)
	// Put writes the document if the stored version matches expected and
	// returns the new version.
	Put(ctx context.Context, kind, id string, doc json.RawMessage, expected uint64) (uint64, error)
	// Delete removes the document if the stored version matches expected.
	Delete(ctx context.Context, kind, id string, expected uint64) error
	// Close releases backend resources.
	Close() error
}

// Retry policy for optimistic-concurrency conflicts. The engine reads,
// validates and writes; on a conflict the whole read-validate-write cycle
// runs again from a fresh read.
const (
	RetryAttempts = 3
	RetryBase     = 20 * time.Millisecond
)

// WithRetry runs fn up to RetryAttempts times, backing off exponentially
// after each ErrVersionConflict. Any other error, and a conflict on the last
// attempt, is returned as-is. The context deadline is honoured between
// attempts.
func WithRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := RetryBase
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if attempt == RetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
