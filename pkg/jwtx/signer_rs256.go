package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer implements Signer using an RSA keypair.
type RS256Signer struct {
	key *rsa.PrivateKey
}

func newRS256Signer(pemKey []byte) (*RS256Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (RSA keys must be PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an RSA private key")
	}

	return &RS256Signer{key: key}, nil
}

func (s *RS256Signer) Alg() string { return AlgorithmRS256 }

func (s *RS256Signer) Sign(claims Claims, generation uint64) (string, error) {
	return signWithMethod(jwt.SigningMethodRS256, s.key, claims, generation)
}

func (s *RS256Signer) VerificationKey() any { return &s.key.PublicKey }
