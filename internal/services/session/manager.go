// Package session hands out anonymous continuity tokens. A live token is
// extended in place; an expired one is replaced by a new row that points back
// at it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain"
	domainsession "github.com/NordCoder/Custodian/internal/domain/session"
	"github.com/NordCoder/Custodian/internal/obs"
)

const CookieName = "Session-Token"

type Config struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type Manager struct {
	repo domainsession.Repo
	tx   domain.Transactor
	ttl  time.Duration
	log  *zap.Logger

	now      func() time.Time
	newValue func() string
}

func NewManager(repo domainsession.Repo, tx domain.Transactor, cfg Config, log *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:     repo,
		tx:       tx,
		ttl:      cfg.TTL,
		log:      log.With(zap.String("component", "session.manager")),
		now:      time.Now,
		newValue: uuid.NewString,
	}
}

// Issue resolves the presented token, if any, to the token the caller should carry from now on.
// An expired token that was already rotated resolves to its successor, so every token has at
// most one successor.
func (m *Manager) Issue(ctx context.Context, presented string) (*domainsession.Token, error) {
	out, outcome, err := m.issue(ctx, presented)
	if errors.Is(err, domain.ErrConflict) {
		// A concurrent request rotated the same token first. Its successor is committed now.
		out, outcome, err = m.issue(ctx, presented)
	}
	if err != nil {
		obs.SessionTokens.WithLabelValues("failed").Inc()
		obs.WithTrace(ctx, m.log).Error("session.issue failed", zap.Error(err))
		if errors.Is(err, domain.ErrDependency) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: session token: %s", domain.ErrDependency, err.Error())
	}
	obs.SessionTokens.WithLabelValues(outcome).Inc()
	obs.WithTrace(ctx, m.log).Debug("session.issue", zap.String("outcome", outcome), zap.Int64("id", out.ID))
	return out, nil
}

func (m *Manager) issue(ctx context.Context, presented string) (out *domainsession.Token, outcome string, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		now := m.now()
		if presented == "" {
			t, err := m.create(ctx, now, nil)
			out, outcome = t, "minted"
			return err
		}

		cur, err := m.repo.GetByValue(ctx, presented)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			t, err := m.create(ctx, now, nil)
			out, outcome = t, "minted"
			return err
		case err != nil:
			return err
		}

		for cur.Expired(now) {
			next, err := m.repo.ListByPrevious(ctx, cur.Value)
			if err != nil {
				return err
			}
			if len(next) == 0 {
				prev := cur.Value
				t, err := m.create(ctx, now, &prev)
				out, outcome = t, "rotated"
				return err
			}
			cur = next[0]
		}

		exp := now.Add(m.ttl)
		if err := m.repo.Extend(ctx, cur.ID, exp); err != nil {
			return err
		}
		cur.ExpiresOn = exp
		out, outcome = cur, "refreshed"
		return nil
	})
	return out, outcome, err
}

func (m *Manager) create(ctx context.Context, now time.Time, previous *string) (*domainsession.Token, error) {
	t := &domainsession.Token{
		Value:         m.newValue(),
		CreatedOn:     now,
		ExpiresOn:     now.Add(m.ttl),
		PreviousToken: previous,
	}
	if err := m.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
