package transfer

import (
	"context"
	"time"
)

// Side names which token of the record a decision is made with.
type Side int8

const (
	OldEmail Side = iota + 1
	NewEmail
)

func (s Side) String() string {
	if s == OldEmail {
		return "confirm"
	}
	return "accept"
}

type Repo interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, id int64) (*Transfer, error)
	GetByToken(ctx context.Context, side Side, token string) (*Transfer, error)
	// Decide writes the decision for one side only if that side is still unset and returns the
	// record as stored after the write. It returns domain.ErrNotFound when no record carries the
	// token and domain.ErrAlreadyProcessed when the side was already decided.
	Decide(ctx context.Context, side Side, token string, d Decision, at time.Time) (*Transfer, error)
}
