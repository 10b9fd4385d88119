package session

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, t *Token) error
	GetByValue(ctx context.Context, value string) (*Token, error)
	Extend(ctx context.Context, id int64, expiresOn time.Time) error
	ListByPrevious(ctx context.Context, previous string) ([]*Token, error)
}
