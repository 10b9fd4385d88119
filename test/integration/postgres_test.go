//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/outbox"
	domaintransfer "github.com/NordCoder/Custodian/internal/domain/transfer"
	outboxsvc "github.com/NordCoder/Custodian/internal/outbox"
	pg "github.com/NordCoder/Custodian/internal/repository/postgres"
	"github.com/NordCoder/Custodian/internal/services/session"
	"github.com/NordCoder/Custodian/internal/services/transfer"
	"github.com/NordCoder/Custodian/internal/services/verification"
)

type nopMail struct{}

func (nopMail) SendTransferConfirm(context.Context, string, string, string) error { return nil }
func (nopMail) SendTransferAccept(context.Context, string, string, string) error  { return nil }

func TestTransfer_ConcurrentDecisions_SwapOnce(t *testing.T) {
	cfg := LoadCfg()
	db := PGOpen(t, cfg.DBDSN)
	sqlDB := DBOpen(t, cfg.DBDSN)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		n := RandID()
		oldEmail := fmt.Sprintf("it-old-%d@example.com", n)
		newEmail := fmt.Sprintf("it-new-%d@example.com", n)
		id := SeedAccount(t, sqlDB, fmt.Sprintf("it_%d", n), oldEmail, true)

		repo := pg.NewTransferRepo(db)
		c := transfer.NewCoordinator(repo, pg.NewAccountRepo(db), pg.NewTransactor(db, nil),
			outboxsvc.NewRecorder(pg.NewOutboxRepo(db)), nopMail{}, nil)

		tr, err := c.RequestTransfer(ctx, &account.Identity{AccountID: id, Email: oldEmail}, oldEmail, newEmail)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = c.ConfirmOrDeny(ctx, tr.TokenOld, true) }()
		go func() { defer wg.Done(); errs[1] = c.AcceptOrReject(ctx, tr.TokenNew, true) }()
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Equal(t, newEmail, AccountEmail(t, sqlDB, id))
		assert.Equal(t, 1, CountOutbox(t, sqlDB, int(outbox.KindEmailTransferred), id))

		err = c.ConfirmOrDeny(ctx, tr.TokenOld, true)
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	}
}

func TestTransfer_DecideOnlyOnce(t *testing.T) {
	cfg := LoadCfg()
	db := PGOpen(t, cfg.DBDSN)
	ctx := context.Background()
	repo := pg.NewTransferRepo(db)

	n := RandID()
	tr := &domaintransfer.Transfer{
		RequestedOn: time.Now(),
		EmailOld:    fmt.Sprintf("d-old-%d@example.com", n),
		EmailNew:    fmt.Sprintf("d-new-%d@example.com", n),
		TokenOld:    fmt.Sprintf("old-%d", n),
		TokenNew:    fmt.Sprintf("new-%d", n),
	}
	require.NoError(t, repo.Create(ctx, tr))

	got, err := repo.Decide(ctx, domaintransfer.OldEmail, tr.TokenOld, domaintransfer.No, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domaintransfer.No, got.Confirmed)
	assert.Equal(t, domaintransfer.Unset, got.Accepted)

	_, err = repo.Decide(ctx, domaintransfer.OldEmail, tr.TokenOld, domaintransfer.Yes, time.Now())
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	_, err = repo.Decide(ctx, domaintransfer.NewEmail, "missing", domaintransfer.Yes, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Create(ctx, &domaintransfer.Transfer{RequestedOn: time.Now(), EmailOld: "a", EmailNew: "b", TokenOld: tr.TokenOld, TokenNew: "other"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSession_RotateAndRefresh(t *testing.T) {
	cfg := LoadCfg()
	db := PGOpen(t, cfg.DBDSN)
	ctx := context.Background()
	repo := pg.NewSessionTokenRepo(db)

	m := session.NewManager(repo, pg.NewTransactor(db, nil), session.Config{TTL: time.Second}, nil)

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)

	same, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)
	assert.Equal(t, first.Value, same.Value)

	time.Sleep(1500 * time.Millisecond)
	rotated, err := m.Issue(ctx, first.Value)
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, rotated.Value)
	require.NotNil(t, rotated.PreviousToken)
	assert.Equal(t, first.Value, *rotated.PreviousToken)

	children, err := repo.ListByPrevious(ctx, first.Value)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, rotated.Value, children[0].Value)
}

func TestSession_ConcurrentRotationSingleSuccessor(t *testing.T) {
	cfg := LoadCfg()
	db := PGOpen(t, cfg.DBDSN)
	ctx := context.Background()
	repo := pg.NewSessionTokenRepo(db)

	m := session.NewManager(repo, pg.NewTransactor(db, nil), session.Config{TTL: time.Second}, nil)

	first, err := m.Issue(ctx, "")
	require.NoError(t, err)
	time.Sleep(1500 * time.Millisecond)

	const n = 8
	var wg sync.WaitGroup
	got := make([]string, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			tok, err := m.Issue(ctx, first.Value)
			errs[i] = err
			if err == nil {
				got[i] = tok.Value
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, got[0], got[i])
	}
	children, err := repo.ListByPrevious(ctx, first.Value)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, got[0], children[0].Value)
}

func TestVerification_ConcurrentConsumeOnce(t *testing.T) {
	cfg := LoadCfg()
	db := PGOpen(t, cfg.DBDSN)
	sqlDB := DBOpen(t, cfg.DBDSN)
	ctx := context.Background()

	n := RandID()
	email := fmt.Sprintf("vt-%d@example.com", n)
	SeedAccount(t, sqlDB, fmt.Sprintf("vt_%d", n), email, false)

	m := verification.NewManager(pg.NewVerificationTokenRepo(db), pg.NewAccountRepo(db), pg.NewTransactor(db, nil),
		verification.Config{TTL: time.Hour}, nil)
	tok, err := m.Issue(ctx, email)
	require.NoError(t, err)

	const workers = 8
	var (
		wg    sync.WaitGroup
		acted atomic.Int32
	)
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Consume(ctx, tok.Value, func(context.Context, *account.Account) error {
				acted.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrExpired)
	}
	assert.Equal(t, 1, ok)
	assert.EqualValues(t, 1, acted.Load())
}

func TestOutbox_PickAndMark(t *testing.T) {
	cfg := LoadCfg()
	db := PGOpen(t, cfg.DBDSN)
	ctx := context.Background()
	repo := pg.NewOutboxRepo(db)

	key := fmt.Sprintf("it-%d", RandID())
	require.NoError(t, repo.Enqueue(ctx, key, outbox.KindAccountRegistered, []byte(`{"account_id":1}`)))
	require.NoError(t, repo.Enqueue(ctx, key, outbox.KindAccountRegistered, []byte(`{}`)))

	var picked []outbox.Message
	require.Eventually(t, func() bool {
		msgs, err := repo.PickBatch(ctx, 100, time.Minute)
		if err != nil {
			return false
		}
		for _, m := range msgs {
			if m.IdempotencyKey == key {
				picked = append(picked, m)
			}
		}
		return len(picked) > 0
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, outbox.StatusInProgress, picked[0].Status)
	assert.JSONEq(t, `{"account_id":1}`, string(picked[0].Data))
	require.NoError(t, repo.MarkSuccess(ctx, []string{key}))
}
