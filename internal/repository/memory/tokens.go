package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/session"
	"github.com/NordCoder/Custodian/internal/domain/verification"
)

var (
	_ session.Repo      = (*Sessions)(nil)
	_ verification.Repo = (*Verifications)(nil)
)

type Sessions struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*session.Token
}

func NewSessions() *Sessions { return &Sessions{rows: map[int64]*session.Token{}} }

func (s *Sessions) Create(ctx context.Context, t *session.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.rows {
		if cur.Value == t.Value {
			return fmt.Errorf("%w: session token exists", domain.ErrConflict)
		}
		if cur.PreviousToken != nil && t.PreviousToken != nil && *cur.PreviousToken == *t.PreviousToken {
			return fmt.Errorf("%w: session token already rotated", domain.ErrConflict)
		}
	}
	s.nextID++
	t.ID = s.nextID
	keep(ctx, &s.mu, s.rows, t.ID)
	cp := *t
	s.rows[t.ID] = &cp
	return nil
}

func (s *Sessions) GetByValue(_ context.Context, value string) (*session.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.Value == value {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Sessions) Extend(ctx context.Context, id int64, expiresOn time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	keep(ctx, &s.mu, s.rows, id)
	t.ExpiresOn = expiresOn
	return nil
}

func (s *Sessions) ListByPrevious(_ context.Context, previous string) ([]*session.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*session.Token
	for _, t := range s.rows {
		if t.PreviousToken != nil && *t.PreviousToken == previous {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type Verifications struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*verification.Token
}

func NewVerifications() *Verifications {
	return &Verifications{rows: map[int64]*verification.Token{}}
}

func (s *Verifications) Create(ctx context.Context, t *verification.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	keep(ctx, &s.mu, s.rows, t.ID)
	cp := *t
	s.rows[t.ID] = &cp
	return nil
}

func (s *Verifications) GetByValue(_ context.Context, value string) (*verification.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.Value == value {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Verifications) ListByEmail(_ context.Context, email string) ([]*verification.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*verification.Token
	for _, t := range s.rows {
		if t.Email == email {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Verifications) Expire(ctx context.Context, t *verification.Token, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[t.ID]
	if !ok || !cur.ExpiresAt.Equal(t.ExpiresAt) || !at.Before(cur.ExpiresAt) {
		return domain.ErrExpired
	}
	keep(ctx, &s.mu, s.rows, t.ID)
	cur.ExpiresAt = at
	return nil
}
