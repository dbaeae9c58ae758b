package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lockbridge/tokenvault/pkg/cryptox"
	"github.com/lockbridge/tokenvault/pkg/fingerprint"
	"github.com/lockbridge/tokenvault/pkg/idx"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

// DefaultMaxCustomClaimBytes bounds the serialized size of caller-provided
// claims (custom + sensitive) on a single token.
const DefaultMaxCustomClaimBytes = 4096

// SubjectTracker records issued tokens against their subject so they can be
// found again for revoke-all-for-subject. The session layer provides the
// real implementation; the memory driver ships one for single-process use.
type SubjectTracker interface {
	Track(subject, tokenID string, expiresAt time.Time)
}

// IssuerService mints signed tokens under the keyring's current generation.
type IssuerService struct {
	Keyring *jwtx.Keyring

	// Issuer is the iss claim stamped on every token.
	Issuer string

	// DefaultTTL applies when a request does not name a TTL.
	DefaultTTL time.Duration

	// MaxTTL caps requested TTLs. Revocation retention defaults assume no
	// token outlives this, so a longer request is clamped down to it.
	// Unlimited when zero.
	MaxTTL time.Duration

	// MaxCustomClaimBytes bounds encoded custom+sensitive claims;
	// DefaultMaxCustomClaimBytes when zero.
	MaxCustomClaimBytes int

	// IPSalt keys the fingerprint's client IP hash.
	IPSalt []byte

	// Tracker is optional; when set, every issued token is registered
	// against its subject.
	Tracker SubjectTracker

	// Now is the clock source, time.Now when nil.
	Now func() time.Time
}

type IssueRequest struct {
	Subject string

	// TTL overrides the service default when positive.
	TTL time.Duration

	// Custom claims travel in the token as plaintext.
	Custom map[string]any

	// Sensitive claims are sealed with the current generation's cipher key
	// when EncryptSensitive is set; otherwise they are folded into the
	// plaintext custom set.
	Sensitive        map[string]any
	EncryptSensitive bool

	// Device, when present, binds the token to the issuing device context.
	Device *fingerprint.DeviceContext

	// Compliance metadata. PersonalData is forced on whenever sensitive
	// claims are present.
	PersonalData   bool
	Classification string
}

type IssueResponse struct {
	Token         string    `json:"token"`
	TokenID       string    `json:"token_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	KeyGeneration uint64    `json:"key_generation"`
}

// Issue builds, seals and signs a token. The current generation is read
// once, so signing and payload encryption always use material from the same
// generation even if a rotation lands mid-call.
func (s *IssuerService) Issue(req IssueRequest) (*IssueResponse, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", jwtx.ErrInvalidClaims)
	}

	gen, err := s.Keyring.Current()
	if err != nil {
		return nil, err
	}

	if err := s.checkClaimSize(req); err != nil {
		return nil, err
	}

	now := s.now()
	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	if s.MaxTTL > 0 && ttl > s.MaxTTL {
		ttl = s.MaxTTL
	}

	claims := jwtx.NewClaims(req.Subject, idx.New().String(), s.Issuer, ttl, now)
	claims.Compliance = jwtx.Compliance{
		PersonalData:   req.PersonalData || len(req.Sensitive) > 0,
		Classification: req.Classification,
	}

	if len(req.Custom) > 0 {
		claims.Custom = req.Custom
	}

	if len(req.Sensitive) > 0 {
		if req.EncryptSensitive {
			sealed, err := sealClaims(gen, req.Sensitive)
			if err != nil {
				return nil, err
			}
			claims.Sealed = sealed
		} else {
			if claims.Custom == nil {
				claims.Custom = make(map[string]any, len(req.Sensitive))
			}
			for k, v := range req.Sensitive {
				claims.Custom[k] = v
			}
		}
	}

	if req.Device != nil {
		claims.DeviceBinding = fingerprint.Compute(*req.Device, s.IPSalt)
	}

	token, err := gen.Signer.Sign(claims, gen.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if s.Tracker != nil {
		s.Tracker.Track(req.Subject, claims.ID, claims.ExpiresAt.Time)
	}

	return &IssueResponse{
		Token:         token,
		TokenID:       claims.ID,
		ExpiresAt:     claims.ExpiresAt.Time,
		KeyGeneration: gen.ID,
	}, nil
}

// checkClaimSize bounds the combined encoded size of caller-provided claims.
// The limit applies before sealing, so an encrypted payload cannot smuggle
// an oversized claim set past the check.
func (s *IssuerService) checkClaimSize(req IssueRequest) error {
	limit := s.MaxCustomClaimBytes
	if limit <= 0 {
		limit = DefaultMaxCustomClaimBytes
	}

	var total int
	for _, m := range []map[string]any{req.Custom, req.Sensitive} {
		if len(m) == 0 {
			continue
		}
		encoded, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode claims: %w", err)
		}
		total += len(encoded)
	}

	if total > limit {
		return fmt.Errorf("%w: %d bytes encoded, limit %d", ErrClaimTooLarge, total, limit)
	}
	return nil
}

func sealClaims(gen *jwtx.Generation, sensitive map[string]any) (*cryptox.EncryptedPayload, error) {
	plaintext, err := json.Marshal(sensitive)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sensitive claims: %w", err)
	}

	payload, err := cryptox.EncryptPayload(gen.CipherKey, gen.ID, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal sensitive claims: %w", err)
	}
	return &payload, nil
}

func (s *IssuerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
