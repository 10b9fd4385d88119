package account

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	UpdateEmail(ctx context.Context, oldEmail, newEmail string) (*Account, error)
	UpdatePassword(ctx context.Context, id int64, hash string, resetAt time.Time, enable bool) error
	UpdateUsername(ctx context.Context, id int64, username string) error
	UpdateProfile(ctx context.Context, id int64, p Profile) error
	SetDeleted(ctx context.Context, id int64, deleted bool) error
}

type AuthorityRepo interface {
	Ensure(ctx context.Context, accountID int64, role string) error
	ListRoles(ctx context.Context, accountID int64) ([]string, error)
}
