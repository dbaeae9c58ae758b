package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lockbridge/tokenvault/pkg/cryptox"
)

// ClockSkewLeeway is the fixed tolerance applied to expiry checks so that
// validators on hosts with slightly drifting clocks do not reject tokens
// that are still live. Deliberately a constant, not configuration.
const ClockSkewLeeway = 5 * time.Second

// Compliance marks whether a token carries personal data, for downstream
// audit consumption. Attached to every token at issuance.
type Compliance struct {
	PersonalData   bool   `json:"personal_data"`
	Classification string `json:"classification,omitempty"`
}

// Claims is the fixed claim set carried by every token. Anything beyond the
// known fields goes into Custom (size-bounded at issuance) or, for the
// sensitive subset, into Sealed as an encrypted envelope.
type Claims struct {
	jwt.RegisteredClaims

	// DeviceBinding is the fingerprint hash of the issuing device context,
	// empty when the token was issued without binding.
	DeviceBinding string `json:"dfp,omitempty"`

	// Custom carries caller-provided plaintext claims.
	Custom map[string]any `json:"custom,omitempty"`

	// Sealed carries the encrypted sensitive claim subset, if any.
	Sealed *cryptox.EncryptedPayload `json:"sealed,omitempty"`

	// Compliance is always present.
	Compliance Compliance `json:"compliance"`
}

// NewClaims builds minimally-correct registered claims for a token.
func NewClaims(subject, jti, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
}

// ValidateConsistency rejects claims whose expiry is not strictly after the
// issue time. Such a token is broken regardless of signature validity.
func (c *Claims) ValidateConsistency() error {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return ErrInvalidClaims
	}
	if !c.ExpiresAt.After(c.IssuedAt.Time) {
		return ErrInvalidClaims
	}
	return nil
}

// ValidateExpiry checks exp and nbf against now with the fixed skew leeway.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(ClockSkewLeeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-ClockSkewLeeway)) {
		return ErrNotYetValid
	}
	return nil
}
