package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no usable refresh credential matches.
	ErrNotFound = errors.New("session: refresh credential not found")
	// ErrReused indicates the hash matched a revoked record: reuse of an
	// already-rotated credential. Callers log the event as suspicious.
	ErrReused = errors.New("session: refresh credential already revoked")
)

// Record is the durable trace of an issued refresh credential. Only the
// one-way hash of the token is stored; the record is mutated only to flip
// Revoked, and deleted by cleanup jobs.
type Record struct {
	ID        string
	UserID    string
	TokenHash string
	Rotation  int
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RotationResult reports the two halves of an atomic rotation. Both are true
// on success; a partial rotation is never observable.
type RotationResult struct {
	OldRevoked bool
	NewCreated bool
}

// Stats counts records by independent predicates. A record can be both
// revoked and expired, so the buckets are not a partition of the total.
type Stats struct {
	Total   int64
	Active  int64
	Expired int64
	Revoked int64
}

// Store is the only component allowed to mutate refresh-session state.
type Store interface {
	Create(ctx context.Context, rec *Record) error

	// FindValidByHash matches hash AND not revoked AND not expired.
	// A revoked match returns ErrReused; anything else ErrNotFound.
	FindValidByHash(ctx context.Context, hash string) (*Record, error)

	// Rotate revokes the record matching oldHash and inserts next as a
	// single atomic unit. Concurrent rotations of the same hash yield
	// exactly one success; the loser observes ErrNotFound or ErrReused.
	Rotate(ctx context.Context, oldHash string, next *Record) (RotationResult, error)

	// Revoke flips the revoked flag on a single record.
	Revoke(ctx context.Context, id string) error

	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	RevokeAllExcept(ctx context.Context, userID string) (revoked int64, affectedUsers int64, err error)

	// EnforcePerUserLimit deletes the oldest records beyond max concurrent
	// sessions for the user.
	EnforcePerUserLimit(ctx context.Context, userID string, max int) (int64, error)

	// Cleanup operations are idempotent, delete-only, and safe to run
	// concurrently with live traffic: their predicates are mutually
	// exclusive with "valid" by construction.
	CleanupExpired(ctx context.Context) (int64, error)
	CleanupRevoked(ctx context.Context) (int64, error)
	CleanupOlderThan(ctx context.Context, days int) (int64, error)

	Stats(ctx context.Context) (Stats, error)
}
