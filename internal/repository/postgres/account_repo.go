package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/jackc/pgx/v5"
)

var _ account.Repo = (*AccountRepo)(nil)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `
a.id, a.username, a.email, a.password_hash, a.created_at, a.last_password_reset,
a.enabled, a.deleted, a.phone_number, a.birth_date, a.description,
COALESCE((SELECT array_agg(au.role ORDER BY au.role) FROM authorities au WHERE au.account_id = a.id), '{}')`

const (
	qAccountInsert = `
INSERT INTO accounts (username, email, password_hash, created_at, last_password_reset,
                      enabled, deleted, phone_number, birth_date, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id;`

	qAccountByID = `SELECT` + accountColumns + `
FROM accounts a
WHERE a.id = $1;`

	qAccountByEmail = `SELECT` + accountColumns + `
FROM accounts a
WHERE a.email = $1;`

	qAccountByUsername = `SELECT` + accountColumns + `
FROM accounts a
WHERE a.username = $1;`

	qAccountList = `SELECT` + accountColumns + `
FROM accounts a
ORDER BY a.id;`

	qAccountUpdateEmail = `
UPDATE accounts a
SET email = $2
WHERE a.email = $1
RETURNING` + accountColumns + `;`

	qAccountUpdatePassword = `
UPDATE accounts
SET password_hash       = $2,
    last_password_reset = $3,
    enabled             = enabled OR $4
WHERE id = $1;`

	qAccountUpdateUsername = `
UPDATE accounts SET username = $2 WHERE id = $1;`

	qAccountUpdateProfile = `
UPDATE accounts
SET phone_number = $2,
    birth_date   = $3,
    description  = $4
WHERE id = $1;`

	qAccountSetDeleted = `
UPDATE accounts SET deleted = $2 WHERE id = $1;`
)

func (r *AccountRepo) Create(ctx context.Context, a *account.Account) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qAccountInsert,
		a.Username, a.Email, a.PasswordHash, a.CreatedAt, a.LastPasswordReset,
		a.Enabled, a.Deleted, a.PhoneNumber, a.BirthDate, a.Description,
	).Scan(&a.ID)
	return mapErr("account insert", err)
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	return r.one(ctx, qAccountByID, id)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.one(ctx, qAccountByEmail, email)
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	return r.one(ctx, qAccountByUsername, username)
}

func (r *AccountRepo) List(ctx context.Context) ([]*account.Account, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qAccountList)
	if err != nil {
		return nil, mapErr("account list", err)
	}
	defer rows.Close()

	var out []*account.Account
	for rows.Next() {
		var a account.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, mapErr("account scan", err)
		}
		out = append(out, &a)
	}
	return out, mapErr("account list", rows.Err())
}

func (r *AccountRepo) UpdateEmail(ctx context.Context, oldEmail, newEmail string) (*account.Account, error) {
	return r.one(ctx, qAccountUpdateEmail, oldEmail, newEmail)
}

func (r *AccountRepo) UpdatePassword(ctx context.Context, id int64, hash string, resetAt time.Time, enable bool) error {
	return r.exec(ctx, "account update password", qAccountUpdatePassword, id, hash, resetAt, enable)
}

func (r *AccountRepo) UpdateUsername(ctx context.Context, id int64, username string) error {
	return r.exec(ctx, "account update username", qAccountUpdateUsername, id, username)
}

func (r *AccountRepo) UpdateProfile(ctx context.Context, id int64, p account.Profile) error {
	return r.exec(ctx, "account update profile", qAccountUpdateProfile, id, p.PhoneNumber, p.BirthDate, p.Description)
}

func (r *AccountRepo) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	return r.exec(ctx, "account set deleted", qAccountSetDeleted, id, deleted)
}

func (r *AccountRepo) one(ctx context.Context, q string, args ...any) (*account.Account, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var a account.Account
	if err := scanAccount(r.db.execQueryer(ctx).QueryRow(ctx, q, args...), &a); err != nil {
		return nil, mapErr("account select", err)
	}
	return &a, nil
}

func (r *AccountRepo) exec(ctx context.Context, op, q string, args ...any) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, q, args...)
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s: no account", domain.ErrNotFound, op)
	}
	return nil
}

func scanAccount(row pgx.Row, out *account.Account) error {
	return row.Scan(
		&out.ID, &out.Username, &out.Email, &out.PasswordHash, &out.CreatedAt, &out.LastPasswordReset,
		&out.Enabled, &out.Deleted, &out.PhoneNumber, &out.BirthDate, &out.Description, &out.Roles,
	)
}
