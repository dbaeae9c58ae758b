package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/domain"
	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// RevocationService invalidates tokens ahead of their natural expiry.
type RevocationService struct {
	Revocations store.Revocations

	// Subjects resolves a subject's live token ids for bulk revocation.
	// Optional; RevokeAllForSubject fails without it.
	Subjects store.SubjectIndex

	// DefaultRetention is how long a revocation entry is kept when the
	// caller does not supply the token's expiry. Must cover the longest TTL
	// issued, or a revoked token could outlive its entry.
	DefaultRetention time.Duration

	// Now is the clock source, time.Now when nil.
	Now func() time.Time
}

// Revoke marks one token id revoked. Idempotent: revoking an
// already-revoked id succeeds without change. The entry is retained until
// expiresAt, or for DefaultRetention when expiresAt is zero.
func (s *RevocationService) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("token id is required")
	}

	now := s.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.DefaultRetention)
	}

	err := s.Revocations.Revoke(ctx, domain.RevocationEntry{
		TokenID:   tokenID,
		RevokedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	slogx.FromContext(ctx).Info("token revoked", "token_id", tokenID)
	return nil
}

// RevokeAllForSubject revokes every live token the subject index knows for
// the subject. Returns the number of tokens revoked.
func (s *RevocationService) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	if subject == "" {
		return 0, fmt.Errorf("subject is required")
	}
	if s.Subjects == nil {
		return 0, fmt.Errorf("no subject index configured")
	}

	refs, err := s.Subjects.ActiveTokens(ctx, subject)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve subject tokens: %w", err)
	}

	now := s.now()
	for _, ref := range refs {
		err := s.Revocations.Revoke(ctx, domain.RevocationEntry{
			TokenID:   ref.TokenID,
			RevokedAt: now,
			ExpiresAt: ref.ExpiresAt,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to revoke token %s: %w", ref.TokenID, err)
		}
	}

	slogx.FromContext(ctx).Info("subject tokens revoked", "subject", subject, "count", len(refs))
	return len(refs), nil
}

func (s *RevocationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
