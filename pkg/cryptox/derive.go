package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. The iteration count is a floor, not a tunable:
// lowering it below 100k would silently weaken every derived generation.
const (
	// MinMasterSecretBytes is the minimum accepted master secret length.
	MinMasterSecretBytes = 32

	// KDFIterations is the PBKDF2 iteration count.
	KDFIterations = 100_000

	// SaltBytes is the per-generation salt length (128 bits).
	SaltBytes = 16

	// CipherKeyBytes is the AES-256 payload encryption key length.
	CipherKeyBytes = 32

	// SigningKeyBytes is the HMAC signing secret length.
	SigningKeyBytes = 32
)

// ErrWeakSecret reports a master secret below the minimum length. Deriving
// from it anyway would produce key material with too little entropy, so we
// refuse up front.
var ErrWeakSecret = errors.New("cryptox: master secret too short")

// KeyMaterial is the symmetric output of one derivation: an AES-256 key for
// payload encryption and a separate HMAC secret for token signing. The two
// halves come from a single PBKDF2 stretch and must never be swapped.
type KeyMaterial struct {
	CipherKey  []byte
	SigningKey []byte
}

// Derive stretches the master secret with PBKDF2-SHA256 into fresh key
// material for one key generation. It is deterministic: the same
// (master, salt) pair always yields the same keys, which is what makes
// disaster recovery from stored salts possible.
func Derive(master, salt []byte) (KeyMaterial, error) {
	if len(master) < MinMasterSecretBytes {
		return KeyMaterial{}, fmt.Errorf("%w: got %d bytes, need %d",
			ErrWeakSecret, len(master), MinMasterSecretBytes)
	}
	if len(salt) != SaltBytes {
		return KeyMaterial{}, fmt.Errorf("cryptox: salt must be %d bytes, got %d", SaltBytes, len(salt))
	}

	stretched := pbkdf2.Key(master, salt, KDFIterations, CipherKeyBytes+SigningKeyBytes, sha256.New)

	return KeyMaterial{
		CipherKey:  stretched[:CipherKeyBytes],
		SigningKey: stretched[CipherKeyBytes:],
	}, nil
}

// NewSalt returns a fresh random salt for a new key generation. Salts are
// not secret but must be unique per generation.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate salt: %w", err)
	}
	return salt, nil
}
