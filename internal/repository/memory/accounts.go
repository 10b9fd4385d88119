// Package memory holds in-process stores. They back the service tests and the
// storage.driver=memory mode used for local runs without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
)

var (
	_ account.Repo          = (*Accounts)(nil)
	_ account.AuthorityRepo = (*Authorities)(nil)
)

type Accounts struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*account.Account
	roles  map[int64][]string
}

func NewAccounts() *Accounts {
	return &Accounts{byID: map[int64]*account.Account{}, roles: map[int64][]string{}}
}

func (s *Accounts) Create(ctx context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.byID {
		if cur.Email == a.Email || cur.Username == a.Username {
			return fmt.Errorf("%w: account already exists", domain.ErrConflict)
		}
	}
	s.nextID++
	a.ID = s.nextID
	keep(ctx, &s.mu, s.byID, a.ID)
	cp := *a
	cp.Roles = nil
	s.byID[a.ID] = &cp
	return nil
}

func (s *Accounts) GetByID(_ context.Context, id int64) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.snapshot(a), nil
}

func (s *Accounts) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return a.Email == email })
}

func (s *Accounts) GetByUsername(_ context.Context, username string) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return a.Username == username })
}

func (s *Accounts) List(_ context.Context) ([]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*account.Account, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, s.snapshot(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Accounts) UpdateEmail(ctx context.Context, oldEmail, newEmail string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *account.Account
	for _, a := range s.byID {
		switch a.Email {
		case newEmail:
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		case oldEmail:
			target = a
		}
	}
	if target == nil {
		return nil, domain.ErrNotFound
	}
	keep(ctx, &s.mu, s.byID, target.ID)
	target.Email = newEmail
	return s.snapshot(target), nil
}

func (s *Accounts) UpdatePassword(ctx context.Context, id int64, hash string, resetAt time.Time, enable bool) error {
	return s.mutate(ctx, id, func(a *account.Account) error {
		a.PasswordHash = hash
		a.LastPasswordReset = resetAt
		if enable {
			a.Enabled = true
		}
		return nil
	})
}

func (s *Accounts) UpdateUsername(ctx context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Username == username && a.ID != id {
			return fmt.Errorf("%w: username already registered", domain.ErrConflict)
		}
	}
	a, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	keep(ctx, &s.mu, s.byID, id)
	a.Username = username
	return nil
}

func (s *Accounts) UpdateProfile(ctx context.Context, id int64, p account.Profile) error {
	return s.mutate(ctx, id, func(a *account.Account) error {
		a.PhoneNumber = p.PhoneNumber
		a.BirthDate = p.BirthDate
		a.Description = p.Description
		return nil
	})
}

func (s *Accounts) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	return s.mutate(ctx, id, func(a *account.Account) error {
		a.Deleted = deleted
		return nil
	})
}

func (s *Accounts) mutate(ctx context.Context, id int64, fn func(a *account.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	keep(ctx, &s.mu, s.byID, id)
	return fn(a)
}

func (s *Accounts) find(match func(a *account.Account) bool) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if match(a) {
			return s.snapshot(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

// snapshot must be called with mu held.
func (s *Accounts) snapshot(a *account.Account) *account.Account {
	cp := *a
	cp.Roles = slices.Clone(s.roles[a.ID])
	return &cp
}

type Authorities struct {
	accounts *Accounts
}

func NewAuthorities(accounts *Accounts) *Authorities { return &Authorities{accounts: accounts} }

func (r *Authorities) Ensure(ctx context.Context, accountID int64, role string) error {
	s := r.accounts
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[accountID]; !ok {
		return domain.ErrNotFound
	}
	if !slices.Contains(s.roles[accountID], role) {
		prev := slices.Clone(s.roles[accountID])
		onRollback(ctx, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.roles[accountID] = prev
		})
		s.roles[accountID] = append(s.roles[accountID], role)
	}
	return nil
}

func (r *Authorities) ListRoles(_ context.Context, accountID int64) ([]string, error) {
	s := r.accounts
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.roles[accountID]), nil
}
