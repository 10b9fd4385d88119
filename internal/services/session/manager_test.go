package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Custodian/internal/domain"
	domainsession "github.com/NordCoder/Custodian/internal/domain/session"
	"github.com/NordCoder/Custodian/internal/repository/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(repo domainsession.Repo) (*Manager, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	m := NewManager(repo, &memory.Transactor{}, Config{TTL: time.Hour}, nil)
	m.now = c.now
	return m, c
}

func TestIssue_NonePresented(t *testing.T) {
	m, c := newTestManager(memory.NewSessions())

	tok, err := m.Issue(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Value)
	assert.Nil(t, tok.PreviousToken)
	assert.True(t, tok.ExpiresOn.Equal(c.t.Add(time.Hour)))
}

func TestIssue_UnknownPresented(t *testing.T) {
	m, _ := newTestManager(memory.NewSessions())

	tok, err := m.Issue(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.NotEqual(t, "never-issued", tok.Value)
	assert.Nil(t, tok.PreviousToken)
}

func TestIssue_LiveTokenIsExtended(t *testing.T) {
	repo := memory.NewSessions()
	m, c := newTestManager(repo)
	ctx := context.Background()

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)

	c.advance(30 * time.Minute)
	again, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)

	assert.Equal(t, first.Value, again.Value)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.ExpiresOn.Equal(c.t.Add(time.Hour)))

	stored, err := repo.GetByValue(ctx, first.Value)
	require.NoError(t, err)
	assert.True(t, stored.ExpiresOn.Equal(again.ExpiresOn))
}

func TestIssue_ExpiredTokenRotates(t *testing.T) {
	repo := memory.NewSessions()
	m, c := newTestManager(repo)
	ctx := context.Background()

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)

	c.advance(time.Hour)
	next, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)

	assert.NotEqual(t, first.Value, next.Value)
	require.NotNil(t, next.PreviousToken)
	assert.Equal(t, first.Value, *next.PreviousToken)

	chain, err := repo.ListByPrevious(ctx, first.Value)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, next.Value, chain[0].Value)

	old, err := repo.GetByValue(ctx, first.Value)
	require.NoError(t, err)
	assert.True(t, old.Expired(c.t))
}

type brokenSessions struct{ domainsession.Repo }

func (brokenSessions) Create(context.Context, *domainsession.Token) error {
	return errors.New("connection refused")
}

func TestIssue_PersistenceFailure(t *testing.T) {
	m, _ := newTestManager(brokenSessions{memory.NewSessions()})

	tok, err := m.Issue(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrDependency)
	assert.Nil(t, tok)
}

func TestIssue_RotatedTokenResolvesToItsSuccessor(t *testing.T) {
	repo := memory.NewSessions()
	m, c := newTestManager(repo)
	ctx := context.Background()

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)

	c.advance(time.Hour)
	next, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)

	c.advance(time.Minute)
	again, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)
	assert.Equal(t, next.Value, again.Value)
	assert.True(t, again.ExpiresOn.Equal(c.t.Add(time.Hour)))

	chain, err := repo.ListByPrevious(ctx, first.Value)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestIssue_WalksChainOfExpiredSuccessors(t *testing.T) {
	repo := memory.NewSessions()
	m, c := newTestManager(repo)
	ctx := context.Background()

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)
	c.advance(time.Hour)
	second, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)
	c.advance(time.Hour)

	third, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)
	require.NotNil(t, third.PreviousToken)
	assert.Equal(t, second.Value, *third.PreviousToken)

	chain, err := repo.ListByPrevious(ctx, first.Value)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

// racingSessions hides successors from the first lookup, the way a concurrent
// rotation that has not committed yet is invisible.
type racingSessions struct {
	*memory.Sessions
	hidden int
}

func (r *racingSessions) ListByPrevious(ctx context.Context, previous string) ([]*domainsession.Token, error) {
	if r.hidden > 0 {
		r.hidden--
		return nil, nil
	}
	return r.Sessions.ListByPrevious(ctx, previous)
}

func TestIssue_ConcurrentRotationReturnsWinner(t *testing.T) {
	repo := &racingSessions{Sessions: memory.NewSessions()}
	m, c := newTestManager(repo)
	ctx := context.Background()

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)
	c.advance(time.Hour)
	winner, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)

	repo.hidden = 1
	loser, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)
	assert.Equal(t, winner.Value, loser.Value)

	chain, err := repo.ListByPrevious(ctx, first.Value)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestSessionsCreate_RejectsSecondSuccessor(t *testing.T) {
	repo := memory.NewSessions()
	ctx := context.Background()
	prev := "old"

	require.NoError(t, repo.Create(ctx, &domainsession.Token{Value: "a", PreviousToken: &prev}))
	err := repo.Create(ctx, &domainsession.Token{Value: "b", PreviousToken: &prev})
	require.ErrorIs(t, err, domain.ErrConflict)
}
