package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/outbox"
	"github.com/NordCoder/Custodian/internal/obs"
)

func authorize(who *account.Identity, id int64) error {
	if who == nil {
		return fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
	}
	if !who.CanManage(id) {
		return fmt.Errorf("%w: not allowed to modify account %d", domain.ErrForbidden, id)
	}
	return nil
}

func (s *Service) UpdateUsername(ctx context.Context, who *account.Identity, id int64, username string) (*account.Account, error) {
	if err := authorize(who, id); err != nil {
		return nil, err
	}
	if !account.ValidUsername(username) {
		return nil, fmt.Errorf("%w: username may contain only letters, digits and underscores", domain.ErrUnprocessable)
	}
	var out *account.Account
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if cur, err := s.accounts.GetByUsername(ctx, username); err == nil && cur.ID != id {
			return fmt.Errorf("%w: username %s is taken", domain.ErrConflict, username)
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := s.accounts.UpdateUsername(ctx, id, username); err != nil {
			return err
		}
		a, err := s.accounts.GetByID(ctx, id)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	obs.WithTrace(ctx, s.log).Info("account.update_username", zap.Int64("account_id", id))
	return out, nil
}

func (s *Service) UpdateProfile(ctx context.Context, who *account.Identity, id int64, p account.Profile) (*account.Account, error) {
	if err := authorize(who, id); err != nil {
		return nil, err
	}
	if p.BirthDate != nil && p.BirthDate.After(s.now()) {
		return nil, fmt.Errorf("%w: birth date is in the future", domain.ErrUnprocessable)
	}
	var out *account.Account
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.UpdateProfile(ctx, id, p); err != nil {
			return err
		}
		a, err := s.accounts.GetByID(ctx, id)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	obs.WithTrace(ctx, s.log).Info("account.update_profile", zap.Int64("account_id", id))
	return out, nil
}

func (s *Service) Delete(ctx context.Context, who *account.Identity, id int64) error {
	return s.setDeleted(ctx, who, id, true)
}

func (s *Service) Restore(ctx context.Context, who *account.Identity, id int64) error {
	return s.setDeleted(ctx, who, id, false)
}

func (s *Service) setDeleted(ctx context.Context, who *account.Identity, id int64, deleted bool) error {
	if err := authorize(who, id); err != nil {
		return err
	}
	kind := outbox.KindAccountRestored
	if deleted {
		kind = outbox.KindAccountDeleted
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.SetDeleted(ctx, id, deleted); err != nil {
			return err
		}
		return s.events.Record(ctx, kind, outbox.AccountEvent{AccountID: id, At: s.now()})
	})
	if err != nil {
		return err
	}
	obs.WithTrace(ctx, s.log).Info(kind.String(), zap.Int64("account_id", id), zap.Int64("by", who.AccountID))
	return nil
}

// Get returns the redacted view to the owner and the public view otherwise.
func (s *Service) Get(ctx context.Context, viewer *account.Identity, id int64) (any, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.ViewFor(viewer), nil
}

func (s *Service) FindByUsername(ctx context.Context, viewer *account.Identity, username string) (any, error) {
	a, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.ViewFor(viewer), nil
}

func (s *Service) FindByEmail(ctx context.Context, viewer *account.Identity, email string) (any, error) {
	a, err := s.accounts.GetByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return a.ViewFor(viewer), nil
}

func (s *Service) List(ctx context.Context) ([]account.PublicView, error) {
	all, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]account.PublicView, 0, len(all))
	for _, a := range all {
		out = append(out, a.Public())
	}
	return out, nil
}

func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
