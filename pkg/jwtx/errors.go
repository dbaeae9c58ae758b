package jwtx

import "errors"

var (
	// ErrMalformed reports a token that does not parse as header.body.signature.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrInvalidSignature reports a signature that does not verify under the
	// key generation named in the token header.
	ErrInvalidSignature = errors.New("jwtx: invalid signature")

	// ErrUnknownKeyGeneration reports a key generation id that is not in the
	// active keyring (never existed, or already purged).
	ErrUnknownKeyGeneration = errors.New("jwtx: unknown key generation")

	// ErrKeyUnavailable reports that no generation is current for issuance.
	ErrKeyUnavailable = errors.New("jwtx: no current key generation")

	// ErrUnsupportedAlgorithm reports an algorithm outside the allow-list.
	ErrUnsupportedAlgorithm = errors.New("jwtx: unsupported algorithm")

	// ErrAlgorithmDowngrade reports a token header naming a different
	// algorithm than its key generation was configured with. Always a hard
	// rejection, never a warning.
	ErrAlgorithmDowngrade = errors.New("jwtx: algorithm downgrade detected")

	// ErrExpired reports a token past its expiry (beyond leeway).
	ErrExpired = errors.New("jwtx: token expired")

	// ErrNotYetValid reports a token used before its nbf.
	ErrNotYetValid = errors.New("jwtx: token not yet valid")

	// ErrInvalidClaims reports internally inconsistent claims, e.g. an
	// expiry at or before the issue time.
	ErrInvalidClaims = errors.New("jwtx: invalid claims")
)
