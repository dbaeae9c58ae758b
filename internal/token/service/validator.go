package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/pkg/cryptox"
	"github.com/lockbridge/tokenvault/pkg/fingerprint"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// revocationRetries bounds how many times a validation retries a failing
// revocation lookup before failing closed with ErrRevocationUnavailable.
const revocationRetries = 3

// ValidatorService runs the staged validation pipeline. It is read-only: no
// stage mutates the keyring or the store.
//
// Stage order is fixed: header inspection (unverified, to select key
// material and catch downgrades), signature, claim consistency, expiry,
// revocation, device binding, sealed payload. A token failing an earlier
// stage never reaches a later one.
type ValidatorService struct {
	Keyring     *jwtx.Keyring
	Policy      jwtx.Policy
	Revocations store.Revocations

	// IPSalt keys the fingerprint's client IP hash. Must match the issuing
	// service's salt or every bound token will mismatch.
	IPSalt []byte

	// Now is the clock source, time.Now when nil.
	Now func() time.Time
}

type ValidateRequest struct {
	Token string

	// Device is the presenting device's context, required to validate a
	// bound token.
	Device *fingerprint.DeviceContext

	// RequireBinding rejects tokens that carry no device binding. Bound
	// tokens are always checked regardless of this flag.
	RequireBinding bool
}

// ValidatedToken is the successful pipeline output: the verified claims
// plus the decrypted sensitive subset, if the token carried one.
type ValidatedToken struct {
	Claims        *jwtx.Claims
	Sensitive     map[string]any
	KeyGeneration uint64
}

// Validate runs the full pipeline and returns the reconstructed claims.
// Every rejection is one of the package sentinels, comparable with
// errors.Is; callers own the user-visible mapping.
func (s *ValidatorService) Validate(ctx context.Context, req ValidateRequest) (*ValidatedToken, error) {
	log := slogx.FromContext(ctx)

	now := s.now()

	header, err := jwtx.PeekHeader(req.Token)
	if err != nil {
		return nil, err
	}

	gen, err := s.Keyring.Lookup(header.Generation)
	if err != nil {
		return nil, err
	}
	// A retired generation past its grace window no longer verifies, even
	// if housekeeping has not purged it from the keyring yet.
	if gen.Expired(now) {
		return nil, jwtx.ErrUnknownKeyGeneration
	}

	// Downgrade defense runs before signature verification: the header's
	// algorithm must be exactly the generation's, so a forged header is
	// rejected as a downgrade rather than surfacing as a signature error.
	if err := s.Policy.CheckHeader(header.Algorithm, gen); err != nil {
		log.Warn("algorithm downgrade rejected",
			"header_alg", header.Algorithm,
			"generation", gen.ID,
			"generation_alg", gen.Algorithm,
		)
		return nil, err
	}

	claims, err := jwtx.VerifySignature(req.Token, gen)
	if err != nil {
		return nil, err
	}

	if err := claims.ValidateConsistency(); err != nil {
		return nil, err
	}

	if err := claims.ValidateExpiry(now); err != nil {
		return nil, err
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		log.Warn("revoked token presented", "token_id", claims.ID, "subject", claims.Subject)
		return nil, ErrTokenRevoked
	}

	if claims.DeviceBinding != "" {
		if err := s.checkDeviceBinding(claims, req.Device); err != nil {
			log.Warn("device binding mismatch", "token_id", claims.ID, "subject", claims.Subject)
			return nil, err
		}
	} else if req.RequireBinding {
		log.Warn("unbound token rejected, binding required", "token_id", claims.ID, "subject", claims.Subject)
		return nil, fmt.Errorf("%w: device binding required but token is unbound", ErrDeviceMismatch)
	}

	sensitive, err := s.openSealed(claims)
	if err != nil {
		return nil, err
	}

	return &ValidatedToken{
		Claims:        claims,
		Sensitive:     sensitive,
		KeyGeneration: gen.ID,
	}, nil
}

// isRevoked consults the revocation store, failing closed: if the store
// cannot answer after bounded retries the token is rejected with
// ErrRevocationUnavailable rather than accepted unchecked.
func (s *ValidatorService) isRevoked(ctx context.Context, tokenID string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < revocationRetries; attempt++ {
		revoked, err := s.Revocations.IsRevoked(ctx, tokenID)
		if err == nil {
			return revoked, nil
		}
		lastErr = err
	}
	return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, lastErr)
}

func (s *ValidatorService) checkDeviceBinding(claims *jwtx.Claims, device *fingerprint.DeviceContext) error {
	if device == nil {
		return fmt.Errorf("%w: token is device-bound but no device context was presented", ErrDeviceMismatch)
	}

	presented := fingerprint.Compute(*device, s.IPSalt)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(claims.DeviceBinding)) != 1 {
		return ErrDeviceMismatch
	}
	return nil
}

// openSealed decrypts the sensitive claim subset, if present. The payload
// names its own key generation, which may be an older retained one when the
// token outlived a rotation.
func (s *ValidatorService) openSealed(claims *jwtx.Claims) (map[string]any, error) {
	if claims.Sealed == nil {
		return nil, nil
	}

	gen, err := s.Keyring.Lookup(claims.Sealed.KeyGeneration)
	if err != nil {
		return nil, err
	}

	plaintext, err := cryptox.DecryptPayload(gen.CipherKey, *claims.Sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenTampered, err)
	}

	var sensitive map[string]any
	if err := json.Unmarshal(plaintext, &sensitive); err != nil {
		return nil, fmt.Errorf("%w: sealed payload is not valid JSON", ErrTokenTampered)
	}
	return sensitive, nil
}

func (s *ValidatorService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
