package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbridge/tokenvault/pkg/cryptox"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

func TestRotateWeakMasterSecret(t *testing.T) {
	rotation := &RotationService{
		Keyring:      jwtx.NewKeyring(),
		Policy:       jwtx.Policy{Environment: "dev"},
		MasterSecret: []byte("too short"),
		Algorithm:    jwtx.AlgorithmHS256,
		GracePeriod:  time.Hour,
	}

	_, err := rotation.Rotate(context.Background())
	require.ErrorIs(t, err, cryptox.ErrWeakSecret)
	require.False(t, rotation.Keyring.IsReady())
}

func TestRotateRejectsUnsupportedAlgorithm(t *testing.T) {
	rotation := &RotationService{
		Keyring:      jwtx.NewKeyring(),
		Policy:       jwtx.Policy{Environment: "dev"},
		MasterSecret: testMasterSecret,
		Algorithm:    "ES384",
		GracePeriod:  time.Hour,
	}

	_, err := rotation.Rotate(context.Background())
	require.ErrorIs(t, err, jwtx.ErrUnsupportedAlgorithm)
}

func TestRotationGracePeriod(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	ctx := context.Background()

	// Token issued under generation 1, then rotate.
	resp, err := stack.issuer.Issue(IssueRequest{
		Subject:          "user-1",
		TTL:              30 * time.Minute,
		Sensitive:        map[string]any{"ssn": "123-45-6789"},
		EncryptSensitive: true,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), resp.KeyGeneration)

	newID, err := stack.rotation.Rotate(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), newID)

	// New issuance uses the new generation immediately.
	resp2, err := stack.issuer.Issue(IssueRequest{Subject: "user-2"})
	require.NoError(t, err)
	require.Equal(t, uint64(2), resp2.KeyGeneration)

	// The old token, sealed payload included, verifies through the grace
	// window.
	validated, err := stack.validator.Validate(ctx, ValidateRequest{Token: resp.Token})
	require.NoError(t, err)
	require.Equal(t, "123-45-6789", validated.Sensitive["ssn"])

	// Past the grace window the generation is purged and the old token is
	// no longer verifiable.
	stack.clock.Advance(stack.rotation.GracePeriod + time.Minute)
	purged := stack.keyring.PurgeExpired(stack.clock.Now())
	require.Equal(t, []uint64{1}, purged)

	_, err = stack.validator.Validate(ctx, ValidateRequest{Token: resp.Token})
	require.ErrorIs(t, err, jwtx.ErrUnknownKeyGeneration)

	_, err = stack.validator.Validate(ctx, ValidateRequest{Token: resp2.Token})
	require.NoError(t, err)
}

func TestRestore(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmEdDSA)
	ctx := context.Background()

	resp, err := stack.issuer.Issue(IssueRequest{
		Subject:          "user-1",
		TTL:              30 * time.Minute,
		Sensitive:        map[string]any{"ssn": "123-45-6789"},
		EncryptSensitive: true,
	})
	require.NoError(t, err)

	_, err = stack.rotation.Rotate(ctx)
	require.NoError(t, err)

	// Simulated restart: a fresh keyring rebuilt from the store. The
	// private keys come back by decrypting the stored PEM under material
	// re-derived from (master secret, salt).
	restored := &RotationService{
		Keyring:      jwtx.NewKeyring(),
		Store:        stack.store,
		Policy:       jwtx.Policy{Environment: "dev"},
		MasterSecret: testMasterSecret,
		Algorithm:    jwtx.AlgorithmEdDSA,
		GracePeriod:  time.Hour,
		Now:          stack.clock.Now,
	}
	n, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	current, err := restored.Keyring.Current()
	require.NoError(t, err)
	require.Equal(t, uint64(2), current.ID)
	require.Equal(t, uint64(3), restored.Keyring.NextID())

	validator := &ValidatorService{
		Keyring:     restored.Keyring,
		Policy:      jwtx.Policy{Environment: "dev"},
		Revocations: stack.store.Revocations(),
		Now:         stack.clock.Now,
	}
	validated, err := validator.Validate(ctx, ValidateRequest{Token: resp.Token})
	require.NoError(t, err)
	require.Equal(t, "123-45-6789", validated.Sensitive["ssn"])
}

func TestRestoreEmptyStore(t *testing.T) {
	clock := newFakeClock()
	rotation := &RotationService{
		Keyring:      jwtx.NewKeyring(),
		Store:        newTestStack(t, jwtx.AlgorithmHS256).store,
		Policy:       jwtx.Policy{Environment: "dev"},
		MasterSecret: testMasterSecret,
		Algorithm:    jwtx.AlgorithmHS256,
		GracePeriod:  time.Hour,
		Now:          clock.Now,
	}

	// Drop the generation the stack helper created.
	require.NoError(t, rotation.Store.KeyGenerations().Delete(context.Background(), 1))

	n, err := rotation.Restore(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.False(t, rotation.Keyring.IsReady())
}

func TestRestoreSkipsExpiredGenerations(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmHS256)
	ctx := context.Background()

	_, err := stack.rotation.Rotate(ctx)
	require.NoError(t, err)

	// Generation 1's grace window ends; a restart must not resurrect it.
	stack.clock.Advance(stack.rotation.GracePeriod + time.Minute)

	restored := &RotationService{
		Keyring:      jwtx.NewKeyring(),
		Store:        stack.store,
		Policy:       jwtx.Policy{Environment: "dev"},
		MasterSecret: testMasterSecret,
		Algorithm:    jwtx.AlgorithmHS256,
		GracePeriod:  time.Hour,
		Now:          stack.clock.Now,
	}
	n, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = restored.Keyring.Lookup(1)
	require.ErrorIs(t, err, jwtx.ErrUnknownKeyGeneration)
}

func TestRotateWrongMasterSecretCannotRestore(t *testing.T) {
	stack := newTestStack(t, jwtx.AlgorithmEdDSA)

	restored := &RotationService{
		Keyring:      jwtx.NewKeyring(),
		Store:        stack.store,
		Policy:       jwtx.Policy{Environment: "dev"},
		MasterSecret: []byte("another-master-secret-32-bytes!!"),
		Algorithm:    jwtx.AlgorithmEdDSA,
		GracePeriod:  time.Hour,
		Now:          stack.clock.Now,
	}

	// The wrong master secret derives the wrong cipher key, so the stored
	// private key envelope fails authentication.
	_, err := restored.Restore(context.Background())
	require.ErrorIs(t, err, cryptox.ErrIntegrity)
}
