package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/verification"
	"github.com/jackc/pgx/v5"
)

var _ verification.Repo = (*VerificationTokenRepo)(nil)

type VerificationTokenRepo struct{ db *DB }

func NewVerificationTokenRepo(db *DB) *VerificationTokenRepo {
	return &VerificationTokenRepo{db: db}
}

const (
	qVTCreate = `
INSERT INTO verification_tokens (token, email, created_at, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id;`

	qVTByValue = `
SELECT id, token, email, created_at, expires_at
FROM verification_tokens
WHERE token = $1;`

	qVTByEmail = `
SELECT id, token, email, created_at, expires_at
FROM verification_tokens
WHERE email = $1
ORDER BY expires_at;`

	qVTExpire = `
UPDATE verification_tokens SET expires_at = $2
WHERE id = $1 AND expires_at = $3 AND expires_at > $2;`
)

func (r *VerificationTokenRepo) Create(ctx context.Context, t *verification.Token) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qVTCreate, t.Value, t.Email, t.CreatedAt, t.ExpiresAt).Scan(&t.ID)
	return mapErr("verification token insert", err)
}

func (r *VerificationTokenRepo) GetByValue(ctx context.Context, value string) (*verification.Token, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t verification.Token
	if err := scanVerificationToken(r.db.execQueryer(ctx).QueryRow(ctx, qVTByValue, value), &t); err != nil {
		return nil, mapErr("verification token select", err)
	}
	return &t, nil
}

func (r *VerificationTokenRepo) ListByEmail(ctx context.Context, email string) ([]*verification.Token, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qVTByEmail, email)
	if err != nil {
		return nil, mapErr("verification token list", err)
	}
	defer rows.Close()

	var out []*verification.Token
	for rows.Next() {
		var t verification.Token
		if err := scanVerificationToken(rows, &t); err != nil {
			return nil, mapErr("verification token scan", err)
		}
		out = append(out, &t)
	}
	return out, mapErr("verification token list", rows.Err())
}

// Expire is a compare-and-set on expires_at. A concurrent consumer that already spent the
// token changed the column, so the row no longer matches and the loser gets domain.ErrExpired.
func (r *VerificationTokenRepo) Expire(ctx context.Context, t *verification.Token, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qVTExpire, t.ID, at, t.ExpiresAt)
	if err != nil {
		return mapErr("verification token expire", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: verification token %d", domain.ErrExpired, t.ID)
	}
	return nil
}

func scanVerificationToken(row pgx.Row, t *verification.Token) error {
	return row.Scan(&t.ID, &t.Value, &t.Email, &t.CreatedAt, &t.ExpiresAt)
}
