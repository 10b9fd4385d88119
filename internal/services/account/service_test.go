package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/auth"
	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/outbox"
	outboxsvc "github.com/NordCoder/Custodian/internal/outbox"
	"github.com/NordCoder/Custodian/internal/repository/memory"
	"github.com/NordCoder/Custodian/internal/services/verification"
)

type fakeMail struct {
	mu       sync.Mutex
	verify   map[string]string
	reset    map[string]string
	failNext bool
}

func newFakeMail() *fakeMail {
	return &fakeMail{verify: map[string]string{}, reset: map[string]string{}}
}

func (m *fakeMail) SendVerification(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return domain.ErrDependency
	}
	m.verify[to] = token
	return nil
}

func (m *fakeMail) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[to] = token
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc      *Service
	accounts *memory.Accounts
	outbox   *memory.Outbox
	mail     *fakeMail
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		accounts: memory.NewAccounts(),
		outbox:   memory.NewOutbox(),
		mail:     newFakeMail(),
		clock:    &clock{t: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)},
	}
	tx := &memory.Transactor{}
	issuer, err := auth.NewIssuer(auth.Config{
		Issuer:     "custodian-test",
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Now:        f.clock.now,
	})
	require.NoError(t, err)

	vm := verification.NewManager(memory.NewVerifications(), f.accounts, tx, verification.Config{TTL: 24 * time.Hour}, zap.NewNop())
	f.svc = NewService(Deps{
		Accounts:     f.accounts,
		Authorities:  memory.NewAuthorities(f.accounts),
		Tx:           tx,
		Verification: vm,
		Issuer:       issuer,
		Hasher:       auth.NewBcryptHasher(4),
		Events:       outboxsvc.NewRecorder(f.outbox),
		Mail:         f.mail,
	})
	f.svc.now = f.clock.now
	return f
}

// activate registers an account and sets its password through the mailed token.
func (f *fixture) activate(t *testing.T, username, email, password string) *account.Account {
	t.Helper()
	ctx := context.Background()
	a, err := f.svc.Register(ctx, username, email)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetPassword(ctx, f.mail.verify[email], password))
	return a
}

func kinds(msgs []outbox.Message) []outbox.Kind {
	out := make([]outbox.Kind, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Kind)
	}
	return out
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, "alice_1", " Alice@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.False(t, a.Enabled)
	assert.NotEmpty(t, a.PasswordHash)
	assert.NotEmpty(t, f.mail.verify["alice@example.com"])
	assert.Equal(t, []outbox.Kind{outbox.KindAccountRegistered}, kinds(f.outbox.Messages()))

	_, _, err = f.svc.Login(ctx, "alice@example.com", "anything")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "alice@example.com")
	require.NoError(t, err)

	cases := []struct {
		name, username, email string
		want                  error
	}{
		{"bad username", "al ice", "x@example.com", domain.ErrUnprocessable},
		{"empty username", "", "x@example.com", domain.ErrUnprocessable},
		{"bad email", "bob", "not-an-email", domain.ErrUnprocessable},
		{"username taken", "alice", "other@example.com", domain.ErrConflict},
		{"email taken", "bob", "ALICE@example.com", domain.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.username, tc.email)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.mail.failNext = true

	a, err := f.svc.Register(context.Background(), "alice", "alice@example.com")
	require.ErrorIs(t, err, domain.ErrDependency)
	require.NotNil(t, a)

	_, err = f.accounts.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
}

func TestSetPasswordAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.activate(t, "alice", "alice@example.com", "correct-horse")

	stored, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
	assert.Equal(t, []string{account.RoleUser}, stored.Roles)

	access, refresh, err := f.svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, access.Token)
	assert.NotEmpty(t, refresh.Token)

	who, err := f.svc.Authenticate(ctx, access.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, who.AccountID)
	assert.Equal(t, "alice@example.com", who.Email)
	assert.Equal(t, []string{account.RoleUser}, who.Roles)

	_, err = f.svc.Authenticate(ctx, refresh.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = f.svc.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, []outbox.Kind{outbox.KindAccountRegistered, outbox.KindPasswordSet}, kinds(f.outbox.Messages()))
}

func TestSetPassword_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	tok := f.mail.verify["alice@example.com"]

	require.ErrorIs(t, f.svc.SetPassword(ctx, tok, "short"), domain.ErrUnprocessable)
	require.ErrorIs(t, f.svc.SetPassword(ctx, "unknown", "long-enough"), domain.ErrUnauthorized)

	require.NoError(t, f.svc.SetPassword(ctx, tok, "long-enough"))
	require.ErrorIs(t, f.svc.SetPassword(ctx, tok, "long-enough-2"), domain.ErrUnauthorized)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activate(t, "alice", "alice@example.com", "first-password")

	require.ErrorIs(t, f.svc.RequestPasswordReset(ctx, "ghost@example.com"), domain.ErrNotFound)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@example.com"))
	tok := f.mail.reset["alice@example.com"]
	require.NotEmpty(t, tok)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@example.com"))
	assert.Equal(t, tok, f.mail.reset["alice@example.com"], "live token is reused")

	f.clock.advance(2 * time.Second)
	require.NoError(t, f.svc.SetPassword(ctx, tok, "second-password"))

	_, _, err := f.svc.Login(ctx, "alice@example.com", "first-password")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = f.svc.Login(ctx, "alice@example.com", "second-password")
	require.NoError(t, err)
}

func TestChangePassword_InvalidatesEarlierCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activate(t, "alice", "alice@example.com", "first-password")

	access, refresh, err := f.svc.Login(ctx, "alice@example.com", "first-password")
	require.NoError(t, err)
	who, err := f.svc.Authenticate(ctx, access.Token)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.ChangePassword(ctx, who, "wrong", "second-password"), domain.ErrUnauthorized)
	require.ErrorIs(t, f.svc.ChangePassword(ctx, who, "first-password", "short"), domain.ErrUnprocessable)

	f.clock.advance(2 * time.Second)
	require.NoError(t, f.svc.ChangePassword(ctx, who, "first-password", "second-password"))

	_, err = f.svc.Authenticate(ctx, access.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = f.svc.Refresh(ctx, refresh.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	access2, refresh2, err := f.svc.Login(ctx, "alice@example.com", "second-password")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, access2.Token)
	require.NoError(t, err)

	f.clock.advance(time.Minute)
	access3, _, err := f.svc.Refresh(ctx, refresh2.Token)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, access3.Token)
	require.NoError(t, err)
}

func TestProfileOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.activate(t, "alice", "alice@example.com", "alice-password")
	bob := f.activate(t, "bob", "bob@example.com", "bob-password")

	aliceID := &account.Identity{AccountID: alice.ID, Email: alice.Email, Roles: []string{account.RoleUser}}
	bobID := &account.Identity{AccountID: bob.ID, Email: bob.Email, Roles: []string{account.RoleUser}}
	admin := &account.Identity{AccountID: 999, Email: "root@example.com", Roles: []string{account.RoleAdmin}}

	_, err := f.svc.UpdateUsername(ctx, bobID, alice.ID, "mallory")
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.UpdateUsername(ctx, nil, alice.ID, "mallory")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.UpdateUsername(ctx, aliceID, alice.ID, "bob")
	require.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.UpdateUsername(ctx, aliceID, alice.ID, "not valid!")
	require.ErrorIs(t, err, domain.ErrUnprocessable)

	renamed, err := f.svc.UpdateUsername(ctx, aliceID, alice.ID, "alice_b")
	require.NoError(t, err)
	assert.Equal(t, "alice_b", renamed.Username)

	birth := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.UpdateProfile(ctx, admin, alice.ID, account.Profile{PhoneNumber: "+100", BirthDate: &birth, Description: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "+100", updated.PhoneNumber)

	future := f.clock.now().Add(48 * time.Hour)
	_, err = f.svc.UpdateProfile(ctx, aliceID, alice.ID, account.Profile{BirthDate: &future})
	require.ErrorIs(t, err, domain.ErrUnprocessable)

	require.ErrorIs(t, f.svc.Delete(ctx, bobID, alice.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, aliceID, alice.ID))
	view, err := f.svc.Get(ctx, bobID, alice.ID)
	require.NoError(t, err)
	assert.True(t, view.(account.PublicView).Deleted)

	require.NoError(t, f.svc.Restore(ctx, admin, alice.ID))
	view, err = f.svc.Get(ctx, aliceID, alice.ID)
	require.NoError(t, err)
	red := view.(account.RedactedView)
	assert.False(t, red.Deleted)
	assert.Equal(t, "alice@example.com", red.Email)
	assert.Equal(t, "hi", red.Description)

	_, err = f.svc.Get(ctx, nil, 12345)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLookupsAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.activate(t, "alice", "alice@example.com", "alice-password")
	f.activate(t, "bob", "bob@example.com", "bob-password")

	ok, err := f.svc.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.UsernameExists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := f.svc.FindByUsername(ctx, nil, "alice")
	require.NoError(t, err)
	assert.IsType(t, account.PublicView{}, v)

	v, err = f.svc.FindByEmail(ctx, &account.Identity{AccountID: alice.ID}, "ALICE@example.com")
	require.NoError(t, err)
	assert.IsType(t, account.RedactedView{}, v)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
}

func TestLookup_UnknownSubject(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Lookup(context.Background(), "ghost@example.com")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}
