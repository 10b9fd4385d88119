package postgres

import (
	"context"

	"github.com/NordCoder/Custodian/internal/domain/account"
)

var _ account.AuthorityRepo = (*AuthorityRepo)(nil)

type AuthorityRepo struct{ db *DB }

func NewAuthorityRepo(db *DB) *AuthorityRepo { return &AuthorityRepo{db: db} }

const (
	qAuthorityEnsure = `
INSERT INTO authorities (account_id, role)
VALUES ($1, $2)
ON CONFLICT (account_id, role) DO NOTHING;`

	qAuthorityList = `
SELECT role FROM authorities WHERE account_id = $1 ORDER BY role;`
)

func (r *AuthorityRepo) Ensure(ctx context.Context, accountID int64, role string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, qAuthorityEnsure, accountID, role)
	return mapErr("authority ensure", err)
}

func (r *AuthorityRepo) ListRoles(ctx context.Context, accountID int64) ([]string, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qAuthorityList, accountID)
	if err != nil {
		return nil, mapErr("authority list", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, mapErr("authority scan", err)
		}
		roles = append(roles, role)
	}
	return roles, mapErr("authority list", rows.Err())
}
