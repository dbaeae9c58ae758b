// Package memory implements the token store with mutex-guarded maps.
// Suitable for single-process deployments and tests; multi-process
// deployments need the sqlite driver (or an external cache) so revocations
// are visible across instances.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/domain"
	"github.com/lockbridge/tokenvault/internal/token/store"
)

type Store struct {
	revocations *revocationsRepo
	keyGens     *keyGenerationsRepo
}

func NewStore() *Store {
	return &Store{
		revocations: &revocationsRepo{entries: make(map[string]domain.RevocationEntry)},
		keyGens:     &keyGenerationsRepo{records: make(map[uint64]domain.KeyGenerationRecord)},
	}
}

func (s *Store) Revocations() store.Revocations       { return s.revocations }
func (s *Store) KeyGenerations() store.KeyGenerations { return s.keyGens }
func (s *Store) ApplyMigrations() error               { return nil }
func (s *Store) Ping(ctx context.Context) error       { return nil }
func (s *Store) Close() error                         { return nil }

type revocationsRepo struct {
	mu      sync.RWMutex
	entries map[string]domain.RevocationEntry
}

func (r *revocationsRepo) Revoke(ctx context.Context, e domain.RevocationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// First revocation wins; a repeat is a no-op success.
	if _, ok := r.entries[e.TokenID]; !ok {
		r.entries[e.TokenID] = e
	}
	return nil
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[tokenID]
	return ok, nil
}

func (r *revocationsRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if now.After(e.ExpiresAt) {
			delete(r.entries, id)
		}
	}
	return nil
}

type keyGenerationsRepo struct {
	mu      sync.RWMutex
	records map[uint64]domain.KeyGenerationRecord
}

func (r *keyGenerationsRepo) Create(ctx context.Context, rec domain.KeyGenerationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *keyGenerationsRepo) Retire(ctx context.Context, id uint64, validUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.ValidUntil = &validUntil
	r.records[id] = rec
	return nil
}

func (r *keyGenerationsRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *keyGenerationsRepo) List(ctx context.Context) ([]domain.KeyGenerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]domain.KeyGenerationRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// SubjectIndex is an in-memory subject→token index for single-process
// deployments. The issuing layer calls Track; entries age out as the
// tokens behind them expire.
type SubjectIndex struct {
	mu     sync.RWMutex
	tokens map[string][]domain.SubjectTokenRef

	// Now is the clock source, time.Now when nil.
	Now func() time.Time
}

func NewSubjectIndex() *SubjectIndex {
	return &SubjectIndex{tokens: make(map[string][]domain.SubjectTokenRef)}
}

// Track records a live token for the subject.
func (s *SubjectIndex) Track(subject, tokenID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[subject] = append(s.tokens[subject], domain.SubjectTokenRef{
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	})
}

// ActiveTokens returns the subject's tokens that have not yet expired, and
// prunes the rest.
func (s *SubjectIndex) ActiveTokens(ctx context.Context, subject string) ([]domain.SubjectTokenRef, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var live []domain.SubjectTokenRef
	for _, ref := range s.tokens[subject] {
		if now.Before(ref.ExpiresAt) {
			live = append(live, ref)
		}
	}
	if live == nil {
		delete(s.tokens, subject)
	} else {
		s.tokens[subject] = live
	}
	return live, nil
}

func (s *SubjectIndex) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
