package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	domainverification "github.com/NordCoder/Custodian/internal/domain/verification"
	"github.com/NordCoder/Custodian/internal/obs"
)

type Config struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Manager mints and consumes single-use tokens bound to an email address.
type Manager struct {
	repo     domainverification.Repo
	accounts account.Repo
	tx       domain.Transactor
	ttl      time.Duration
	log      *zap.Logger

	now      func() time.Time
	newValue func() string
}

func NewManager(repo domainverification.Repo, accounts account.Repo, tx domain.Transactor, cfg Config, log *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:     repo,
		accounts: accounts,
		tx:       tx,
		ttl:      cfg.TTL,
		log:      log.With(zap.String("component", "verification.manager")),
		now:      time.Now,
		newValue: uuid.NewString,
	}
}

// Issue always mints a new token for email.
func (m *Manager) Issue(ctx context.Context, email string) (*domainverification.Token, error) {
	now := m.now()
	t := &domainverification.Token{
		Value:     m.newValue(),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.Create(ctx, t); err != nil {
		obs.VerificationTokens.WithLabelValues("failed").Inc()
		obs.WithTrace(ctx, m.log).Error("verification.issue failed", obs.Email("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenCreation, err.Error())
	}
	obs.VerificationTokens.WithLabelValues("issued").Inc()
	return t, nil
}

// IssueOrReuse returns the token with the latest expiry for email while it is live, and mints
// a new one otherwise.
func (m *Manager) IssueOrReuse(ctx context.Context, email string) (*domainverification.Token, error) {
	tokens, err := m.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenCreation, err.Error())
	}
	var latest *domainverification.Token
	for _, t := range tokens {
		if latest == nil || t.ExpiresAt.After(latest.ExpiresAt) {
			latest = t
		}
	}
	if latest != nil && !latest.Expired(m.now()) {
		obs.VerificationTokens.WithLabelValues("reused").Inc()
		return latest, nil
	}
	return m.Issue(ctx, email)
}

// Consume resolves token to its account, spends it and runs act, all in one transaction.
// The token is spent before act so two concurrent consumers cannot both reach act.
// An unknown token yields domain.ErrNotFound, a spent or stale one domain.ErrExpired.
func (m *Manager) Consume(ctx context.Context, token string, act func(ctx context.Context, a *account.Account) error) (*account.Account, error) {
	var out *account.Account
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		t, err := m.repo.GetByValue(ctx, token)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: verification token", domain.ErrNotFound)
			}
			return err
		}
		now := m.now()
		if t.Expired(now) {
			return fmt.Errorf("%w: verification token", domain.ErrExpired)
		}

		if err := m.repo.Expire(ctx, t, now); err != nil {
			return err
		}
		a, err := m.accounts.GetByEmail(ctx, t.Email)
		if err != nil {
			return err
		}
		if act != nil {
			if err := act(ctx, a); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	if err != nil {
		obs.VerificationTokens.WithLabelValues("rejected").Inc()
		return nil, err
	}
	obs.VerificationTokens.WithLabelValues("consumed").Inc()
	return out, nil
}
