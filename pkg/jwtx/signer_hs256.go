package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lockbridge/tokenvault/pkg/cryptox"
)

// HS256Signer signs tokens with a symmetric HMAC-SHA256 secret derived for
// one key generation. The secret doubles as the verification key, which is
// why the policy flags HS256 as sub-optimal in production.
type HS256Signer struct {
	secret []byte
}

func newHS256Signer(secret []byte) (*HS256Signer, error) {
	if len(secret) != cryptox.SigningKeyBytes {
		return nil, errors.New("jwtx: HS256 signing secret must be 32 bytes")
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Alg() string { return AlgorithmHS256 }

func (s *HS256Signer) Sign(claims Claims, generation uint64) (string, error) {
	return signWithMethod(jwt.SigningMethodHS256, s.secret, claims, generation)
}

func (s *HS256Signer) VerificationKey() any { return s.secret }
