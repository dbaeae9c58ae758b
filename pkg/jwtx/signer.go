package jwtx

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms. The allow-list is closed: HS256 as the
// symmetric option plus two asymmetric families.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer signs claims under one key generation's material.
type Signer interface {
	Alg() string

	// Sign serializes and signs claims, stamping the generation id into the
	// "kid" header so validators can select the right material.
	Sign(claims Claims, generation uint64) (string, error)

	// VerificationKey returns the key a parser needs to verify signatures
	// from this signer (the shared secret for HMAC, the public key for
	// asymmetric algorithms).
	VerificationKey() any
}

// NewSignerHS256 creates an HMAC-SHA256 signer from a derived signing secret.
func NewSignerHS256(secret []byte) (Signer, error) {
	return newHS256Signer(secret)
}

// NewSignerRS256 creates an RS256 signer from PKCS8 PEM bytes.
func NewSignerRS256(pemKey []byte) (Signer, error) {
	return newRS256Signer(pemKey)
}

// NewSignerEdDSA creates an EdDSA signer from PKCS8 PEM bytes.
func NewSignerEdDSA(pemKey []byte) (Signer, error) {
	return newEdDSASigner(pemKey)
}

// GenerationKID formats a generation id for the "kid" header.
func GenerationKID(generation uint64) string {
	return strconv.FormatUint(generation, 10)
}

func signWithMethod(method jwt.SigningMethod, key any, claims Claims, generation uint64) (string, error) {
	t := jwt.NewWithClaims(method, claims)
	t.Header["kid"] = GenerationKID(generation)
	return t.SignedString(key)
}
