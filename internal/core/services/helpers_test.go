package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/adapters/persistence/testdb"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/jwt"
	"energia-backend/internal/pkg/password"

	"github.com/stretchr/testify/require"
)

func init() {
	password.Configure(1024, 1)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeNotifier struct {
	mu      sync.Mutex
	codes   map[string]string
	invites []*Invitation
	err     error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: make(map[string]string)}
}

func (n *fakeNotifier) SendOTP(_ context.Context, to, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.codes[to] = code
	return nil
}

func (n *fakeNotifier) SendInvite(_ context.Context, invite *Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, invite)
	return n.err
}

func (n *fakeNotifier) code(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[to]
}

func (n *fakeNotifier) fail() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = errors.New("smtp: connection refused")
}

type identityFixture struct {
	svc      *IdentityService
	store    repositories.Store
	issuer   *jwt.Issuer
	notifier *fakeNotifier
	clock    *testClock
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()

	store := repositories.NewStore(testdb.Open(t))
	clock := &testClock{t: time.Now().UTC()}
	issuer := jwt.NewIssuer("test-secret", "energia-test", 12*time.Hour)
	notifier := newFakeNotifier()

	svc := NewIdentityService(store, issuer, NewOTPService(6, 5*time.Minute, 5, clock.now), notifier, nil)
	svc.now = clock.now

	return &identityFixture{
		svc:      svc,
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		clock:    clock,
	}
}

func (f *identityFixture) allow(t *testing.T, ktuID, department, year string) {
	t.Helper()
	_, err := f.store.Repos().Authorizations.Ensure(context.Background(), &domain.AuthorizationRecord{
		KtuID:      ktuID,
		Department: department,
		Year:       year,
	})
	require.NoError(t, err)
}

func (f *identityFixture) registerStudent(t *testing.T, ktuID, email, pw string) {
	t.Helper()
	f.allow(t, ktuID, "CSE", "3")
	require.NoError(t, f.svc.Register(context.Background(), &RegisterInput{
		Username:   ktuID,
		Password:   pw,
		Role:       "student",
		KtuID:      ktuID,
		Department: "CSE",
		Year:       "3",
		Email:      email,
	}))
}

func (f *identityFixture) registerStaff(t *testing.T, username, role, pw string) {
	t.Helper()
	require.NoError(t, f.svc.Register(context.Background(), &RegisterInput{
		Username: username,
		Password: pw,
		Role:     role,
	}))
}
