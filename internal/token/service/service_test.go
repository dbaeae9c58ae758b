package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbridge/tokenvault/internal/token/store/drivers/memory"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

var testMasterSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a mutable clock shared by every service in a test stack, so
// expiry and grace-period behaviour can be tested without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testStack wires the full service set over the memory store with one
// installed key generation.
type testStack struct {
	clock     *fakeClock
	store     *memory.Store
	subjects  *memory.SubjectIndex
	keyring   *jwtx.Keyring
	rotation  *RotationService
	issuer    *IssuerService
	validator *ValidatorService
	revoker   *RevocationService
}

func newTestStack(t *testing.T, algorithm string) *testStack {
	t.Helper()

	clock := newFakeClock()
	st := memory.NewStore()
	subjects := memory.NewSubjectIndex()
	subjects.Now = clock.Now
	keyring := jwtx.NewKeyring()
	policy := jwtx.Policy{Environment: "dev"}
	ipSalt := []byte("test-ip-salt")

	rotation := &RotationService{
		Keyring:      keyring,
		Store:        st,
		Policy:       policy,
		MasterSecret: testMasterSecret,
		Algorithm:    algorithm,
		GracePeriod:  time.Hour,
		Now:          clock.Now,
	}
	_, err := rotation.Rotate(context.Background())
	require.NoError(t, err)

	return &testStack{
		clock:    clock,
		store:    st,
		subjects: subjects,
		keyring:  keyring,
		rotation: rotation,
		issuer: &IssuerService{
			Keyring:    keyring,
			Issuer:     "tokenvault-test",
			DefaultTTL: 15 * time.Minute,
			MaxTTL:     time.Hour,
			IPSalt:     ipSalt,
			Tracker:    subjects,
			Now:        clock.Now,
		},
		validator: &ValidatorService{
			Keyring:     keyring,
			Policy:      policy,
			Revocations: st.Revocations(),
			IPSalt:      ipSalt,
			Now:         clock.Now,
		},
		revoker: &RevocationService{
			Revocations:      st.Revocations(),
			Subjects:         subjects,
			DefaultRetention: time.Hour,
			Now:              clock.Now,
		},
	}
}
