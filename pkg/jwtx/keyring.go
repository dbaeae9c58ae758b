package jwtx

import (
	"sync"
	"time"
)

// Generation is one versioned instance of key material: the signer for
// tokens issued under it, the AES key for their encrypted payloads, and the
// salt the material was derived from. Treated as immutable once installed;
// retirement produces a copy with ValidUntil set rather than mutating the
// shared value.
type Generation struct {
	ID        uint64
	Algorithm string
	Signer    Signer
	CipherKey []byte
	Salt      []byte
	DerivedAt time.Time

	// ValidUntil is zero while the generation is current. Once retired it
	// holds the instant after which the generation no longer verifies.
	ValidUntil time.Time
}

// Retired reports whether the generation has been rotated out of issuance.
func (g *Generation) Retired() bool { return !g.ValidUntil.IsZero() }

// Expired reports whether a retired generation has passed its grace window.
func (g *Generation) Expired(now time.Time) bool {
	return g.Retired() && now.After(g.ValidUntil)
}

// Keyring holds the active set of key generations. Readers always see a
// consistent snapshot: rotation builds a fresh map and swaps it in under
// the lock, so an issue call never observes a half-rotated state.
type Keyring struct {
	mu sync.RWMutex

	current *Generation
	byID    map[uint64]*Generation
	nextID  uint64
}

// NewKeyring returns an empty Keyring. Issuance fails with
// ErrKeyUnavailable until the first generation is installed.
func NewKeyring() *Keyring {
	return &Keyring{
		byID:   make(map[uint64]*Generation),
		nextID: 1,
	}
}

// Current returns the generation used for new issuance.
func (k *Keyring) Current() (*Generation, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.current == nil {
		return nil, ErrKeyUnavailable
	}
	return k.current, nil
}

// Lookup returns the generation with the given id if it is still in the
// active set (current or retained for verification).
func (k *Keyring) Lookup(id uint64) (*Generation, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if g, ok := k.byID[id]; ok {
		return g, nil
	}
	return nil, ErrUnknownKeyGeneration
}

// NextID returns the id the next installed generation will receive.
func (k *Keyring) NextID() uint64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.nextID
}

// Install publishes g as the new current generation. The previous current,
// if any, is retained for verification until retainUntil. The whole swap
// happens under the write lock so issuance is atomic with rotation.
// Returns the retired generation (nil on first install).
func (k *Keyring) Install(g *Generation, retainUntil time.Time) *Generation {
	k.mu.Lock()
	defer k.mu.Unlock()

	next := make(map[uint64]*Generation, len(k.byID)+1)
	for id, gen := range k.byID {
		next[id] = gen
	}

	var retired *Generation
	if k.current != nil {
		r := *k.current
		r.ValidUntil = retainUntil
		retired = &r
		next[r.ID] = retired
	}

	next[g.ID] = g
	k.byID = next
	k.current = g
	if g.ID >= k.nextID {
		k.nextID = g.ID + 1
	}

	return retired
}

// Restore loads a previously persisted set of generations, marking the one
// with currentID as current. Used at startup to rebuild the keyring from
// stored salts and encrypted key material.
func (k *Keyring) Restore(gens []*Generation, currentID uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	byID := make(map[uint64]*Generation, len(gens))
	var current *Generation
	var maxID uint64
	for _, g := range gens {
		byID[g.ID] = g
		if g.ID == currentID {
			current = g
		}
		if g.ID > maxID {
			maxID = g.ID
		}
	}
	if current == nil {
		return ErrUnknownKeyGeneration
	}

	k.byID = byID
	k.current = current
	k.nextID = maxID + 1
	return nil
}

// PurgeExpired drops retired generations whose grace window has passed and
// returns their ids. The current generation is never purged.
func (k *Keyring) PurgeExpired(now time.Time) []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	var purged []uint64
	next := make(map[uint64]*Generation, len(k.byID))
	for id, g := range k.byID {
		if g.Expired(now) {
			purged = append(purged, id)
			continue
		}
		next[id] = g
	}
	if len(purged) > 0 {
		k.byID = next
	}
	return purged
}

// Generations returns a point-in-time copy of the active set.
func (k *Keyring) Generations() []*Generation {
	k.mu.RLock()
	defer k.mu.RUnlock()

	gens := make([]*Generation, 0, len(k.byID))
	for _, g := range k.byID {
		gens = append(gens, g)
	}
	return gens
}

// IsReady reports whether at least one generation is installed.
func (k *Keyring) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current != nil
}
