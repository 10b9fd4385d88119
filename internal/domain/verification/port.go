package verification

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, t *Token) error
	GetByValue(ctx context.Context, value string) (*Token, error)
	ListByEmail(ctx context.Context, email string) ([]*Token, error)
	// Expire spends t at the given instant. It succeeds only while the stored expiry still equals
	// t.ExpiresAt and lies after at, and reports domain.ErrExpired otherwise.
	Expire(ctx context.Context, t *Token, at time.Time) error
}
