package store

import (
	"context"
	"errors"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (memory,
// sqlite) implement this. The revocation repo sits on the hot path of every
// validation; the key generation repo is only touched at startup, rotation
// and housekeeping.
type Store interface {
	Revocations() Revocations
	KeyGenerations() KeyGenerations

	ApplyMigrations() error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

type Revocations interface {
	// Revoke records a revocation entry. Idempotent: revoking an
	// already-revoked token id is a no-op success.
	Revoke(ctx context.Context, e domain.RevocationEntry) error

	// IsRevoked reports whether the token id has a live revocation entry.
	// Hash-lookup cheap; called on every validation.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpired evicts entries whose expiry has passed. Storage
	// reclamation only: by the time an entry expires the token it covered
	// has expired too.
	DeleteExpired(ctx context.Context, now time.Time) error
}

type KeyGenerations interface {
	// Create persists a new generation record.
	Create(ctx context.Context, rec domain.KeyGenerationRecord) error

	// Retire stamps the end of a generation's verification grace window.
	Retire(ctx context.Context, id uint64, validUntil time.Time) error

	// Delete removes a purged generation record.
	Delete(ctx context.Context, id uint64) error

	// List returns all stored generation records ordered by id.
	List(ctx context.Context) ([]domain.KeyGenerationRecord, error)
}

// SubjectIndex maps a subject to its live token ids. Maintained by the
// session-management layer, consumed here for revoke-all-for-subject. The
// memory driver ships an implementation for single-process deployments.
type SubjectIndex interface {
	ActiveTokens(ctx context.Context, subject string) ([]domain.SubjectTokenRef, error)
}
