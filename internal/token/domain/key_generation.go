package domain

import "time"

// KeyGenerationRecord is the persisted form of one key generation. The
// secret material itself is never stored in the clear: symmetric material
// is re-derivable from (master secret, salt), and asymmetric private keys
// are stored AES-256-GCM encrypted under the generation's derived cipher
// key. Records are immutable except for retirement (ValidUntil).
type KeyGenerationRecord struct {
	ID        uint64
	Algorithm string // HS256, RS256, or EdDSA
	Salt      []byte // KDF salt, unique per generation, not secret

	// EncryptedKey holds the encrypted private key PEM for asymmetric
	// generations (empty for HS256). Serialized cryptox.EncryptedPayload.
	EncryptedKey []byte

	DerivedAt time.Time

	// ValidUntil is nil while the generation is current for issuance; once
	// retired it holds the end of the verification grace window.
	ValidUntil *time.Time
}

// IsCurrent reports whether the generation is still used for issuance.
func (r *KeyGenerationRecord) IsCurrent() bool { return r.ValidUntil == nil }

// IsExpired reports whether a retired generation's grace window has passed.
func (r *KeyGenerationRecord) IsExpired(now time.Time) bool {
	return r.ValidUntil != nil && now.After(*r.ValidUntil)
}
