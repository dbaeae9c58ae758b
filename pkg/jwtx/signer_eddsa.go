package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSASigner implements Signer using Ed25519.
type EdDSASigner struct {
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

func newEdDSASigner(pemKey []byte) (*EdDSASigner, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (Ed25519 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &EdDSASigner{
		key: key,
		pub: key.Public().(ed25519.PublicKey),
	}, nil
}

func (s *EdDSASigner) Alg() string { return AlgorithmEdDSA }

func (s *EdDSASigner) Sign(claims Claims, generation uint64) (string, error) {
	return signWithMethod(jwt.SigningMethodEdDSA, s.key, claims, generation)
}

func (s *EdDSASigner) VerificationKey() any { return s.pub }
