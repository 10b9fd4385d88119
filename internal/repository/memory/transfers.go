package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/transfer"
)

var _ transfer.Repo = (*Transfers)(nil)

type Transfers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*transfer.Transfer
}

func NewTransfers() *Transfers { return &Transfers{rows: map[int64]*transfer.Transfer{}} }

func (s *Transfers) Create(ctx context.Context, t *transfer.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.rows {
		if cur.TokenOld == t.TokenOld || cur.TokenNew == t.TokenNew {
			return fmt.Errorf("%w: transfer token exists", domain.ErrConflict)
		}
	}
	s.nextID++
	t.ID = s.nextID
	keep(ctx, &s.mu, s.rows, t.ID)
	cp := *t
	s.rows[t.ID] = &cp
	return nil
}

func (s *Transfers) GetByID(_ context.Context, id int64) (*transfer.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Transfers) GetByToken(_ context.Context, side transfer.Side, token string) (*transfer.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.byToken(side, token)
	if t == nil {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Transfers) Decide(ctx context.Context, side transfer.Side, token string, d transfer.Decision, at time.Time) (*transfer.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.byToken(side, token)
	if t == nil {
		return nil, domain.ErrNotFound
	}
	ts := at
	keep(ctx, &s.mu, s.rows, t.ID)
	switch side {
	case transfer.OldEmail:
		if t.Confirmed.Decided() {
			return nil, domain.ErrAlreadyProcessed
		}
		t.Confirmed, t.ConfirmedOn = d, &ts
	case transfer.NewEmail:
		if t.Accepted.Decided() {
			return nil, domain.ErrAlreadyProcessed
		}
		t.Accepted, t.AcceptedOn = d, &ts
	}
	cp := *t
	return &cp, nil
}

func (s *Transfers) byToken(side transfer.Side, token string) *transfer.Transfer {
	for _, t := range s.rows {
		if (side == transfer.OldEmail && t.TokenOld == token) || (side == transfer.NewEmail && t.TokenNew == token) {
			return t
		}
	}
	return nil
}
