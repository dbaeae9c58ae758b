package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrIntegrity reports that a ciphertext or its tag failed authentication.
// No plaintext is ever returned alongside this error.
var ErrIntegrity = errors.New("cryptox: payload failed integrity check")

// EncryptedPayload is the envelope for an encrypted claim subset. It names
// the key generation that encrypted it so decryption can select the right
// key without a separate lookup parameter. The GCM tag is folded into
// Ciphertext.
type EncryptedPayload struct {
	KeyGeneration uint64 `json:"kid"`
	Nonce         []byte `json:"n"`
	Ciphertext    []byte `json:"ct"`
}

// EncryptPayload seals plaintext under an AES-256-GCM key belonging to the
// given key generation. A fresh random nonce is used per call.
func EncryptPayload(key []byte, generation uint64, plaintext []byte) (EncryptedPayload, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return EncryptedPayload{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedPayload{}, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}

	return EncryptedPayload{
		KeyGeneration: generation,
		Nonce:         nonce,
		Ciphertext:    gcm.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// DecryptPayload authenticates and opens an EncryptedPayload. The tag is
// verified before any plaintext is produced; tampering with a single bit of
// nonce, ciphertext or tag yields ErrIntegrity, never partial plaintext.
//
// Selecting the key for p.KeyGeneration is the caller's job (the keyring
// lookup reports unknown generations distinctly from tampering).
func DecryptPayload(key []byte, p EncryptedPayload) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(p.Nonce) != gcm.NonceSize() {
		return nil, ErrIntegrity
	}

	plaintext, err := gcm.Open(nil, p.Nonce, p.Ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != CipherKeyBytes {
		return nil, fmt.Errorf("cryptox: cipher key must be %d bytes, got %d", CipherKeyBytes, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create GCM: %w", err)
	}
	return gcm, nil
}
