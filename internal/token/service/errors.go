package service

import "errors"

var (
	// ErrTokenRevoked reports a token whose id has a live revocation entry.
	ErrTokenRevoked = errors.New("service: token revoked")

	// ErrDeviceMismatch reports a bound token presented from a device whose
	// fingerprint does not match the one captured at issuance.
	ErrDeviceMismatch = errors.New("service: device fingerprint mismatch")

	// ErrTokenTampered reports a sealed claim payload that failed
	// authenticated decryption.
	ErrTokenTampered = errors.New("service: sealed payload failed integrity check")

	// ErrClaimTooLarge reports a custom claim set over the serialized size
	// limit.
	ErrClaimTooLarge = errors.New("service: custom claims exceed size limit")

	// ErrRevocationUnavailable reports that the revocation store could not be
	// reached. Validation fails closed on it: the token is rejected, but with
	// an error distinct from ErrTokenRevoked so operators can tell an outage
	// from an actual revocation.
	ErrRevocationUnavailable = errors.New("service: revocation store unavailable")
)
