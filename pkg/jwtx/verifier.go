package jwtx

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Header is the unverified token header: which algorithm the token claims
// to be signed with and under which key generation. Nothing here is trusted
// until the signature verifies, but both fields are needed to pick the
// verification material.
type Header struct {
	Algorithm  string
	Generation uint64
}

// PeekHeader decodes the first token segment without verifying anything.
func PeekHeader(token string) (Header, error) {
	seg, _, ok := strings.Cut(token, ".")
	if !ok {
		return Header{}, ErrMalformed
	}

	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return Header{}, ErrMalformed
	}

	var h struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, ErrMalformed
	}
	if h.Alg == "" || h.Kid == "" {
		return Header{}, ErrMalformed
	}

	gen, err := strconv.ParseUint(h.Kid, 10, 64)
	if err != nil {
		return Header{}, ErrMalformed
	}

	return Header{Algorithm: h.Alg, Generation: gen}, nil
}

// VerifySignature verifies the token's signature under the given generation
// and returns the parsed claims. Claim-level checks (expiry, consistency)
// are deliberately NOT performed here: the validation pipeline owns their
// ordering, so parsing runs with claims validation disabled.
func VerifySignature(token string, gen *Generation) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{gen.Algorithm}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return gen.Signer.VerificationKey(), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}

	return claims, nil
}
