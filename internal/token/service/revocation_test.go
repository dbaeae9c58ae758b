package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

func TestRevokeDefaultRetention(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	ctx := context.Background()

	require.NoError(t, stack.revoker.Revoke(ctx, "01J0SOMETOKENID", time.Time{}))

	revoked, err := stack.store.Revocations().IsRevoked(ctx, "01J0SOMETOKENID")
	require.NoError(t, err)
	require.True(t, revoked)

	// The entry survives the default retention window, then gets evicted.
	require.NoError(t, stack.store.Revocations().DeleteExpired(ctx, stack.clock.Now().Add(30*time.Minute)))
	revoked, err = stack.store.Revocations().IsRevoked(ctx, "01J0SOMETOKENID")
	require.NoError(t, err)
	require.True(t, revoked)

	require.NoError(t, stack.store.Revocations().DeleteExpired(ctx, stack.clock.Now().Add(2*time.Hour)))
	revoked, err = stack.store.Revocations().IsRevoked(ctx, "01J0SOMETOKENID")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokedTokenStaysRejectedAfterEntryEviction(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	ctx := context.Background()

	// The longest-lived token the issuer allows, revoked without an
	// explicit expiry, so the entry lives for the default retention only.
	resp, err := stack.issuer.Issue(IssueRequest{Subject: "user-1", TTL: 2 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, stack.revoker.Revoke(ctx, resp.TokenID, time.Time{}))

	_, err = stack.validator.Validate(ctx, ValidateRequest{Token: resp.Token})
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Once retention passes and the entry is evicted, the token must still
	// be rejected: the TTL cap guarantees it has expired by then.
	stack.clock.Advance(time.Hour + jwtx.ClockSkewLeeway + time.Second)
	require.NoError(t, stack.store.Revocations().DeleteExpired(ctx, stack.clock.Now()))

	_, err = stack.validator.Validate(ctx, ValidateRequest{Token: resp.Token})
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestRevokeRequiresTokenID(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	require.Error(t, stack.revoker.Revoke(context.Background(), "", time.Time{}))
}

func TestRevokeAllForSubject(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	ctx := context.Background()

	resp1, err := stack.issuer.Issue(IssueRequest{Subject: "user-1"})
	require.NoError(t, err)
	resp2, err := stack.issuer.Issue(IssueRequest{Subject: "user-1"})
	require.NoError(t, err)
	other, err := stack.issuer.Issue(IssueRequest{Subject: "user-2"})
	require.NoError(t, err)

	count, err := stack.revoker.RevokeAllForSubject(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	for _, token := range []string{resp1.Token, resp2.Token} {
		_, err := stack.validator.Validate(ctx, ValidateRequest{Token: token})
		require.ErrorIs(t, err, ErrTokenRevoked)
	}

	// Other subjects are untouched.
	_, err = stack.validator.Validate(ctx, ValidateRequest{Token: other.Token})
	require.NoError(t, err)

	// A repeat run re-revokes the same ids, which is a no-op.
	count, err = stack.revoker.RevokeAllForSubject(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRevokeAllForSubjectWithoutIndex(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	stack.revoker.Subjects = nil

	_, err := stack.revoker.RevokeAllForSubject(context.Background(), "user-1")
	require.Error(t, err)
}
