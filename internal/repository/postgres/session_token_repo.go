package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/session"
	"github.com/jackc/pgx/v5"
)

var _ session.Repo = (*SessionTokenRepo)(nil)

type SessionTokenRepo struct{ db *DB }

func NewSessionTokenRepo(db *DB) *SessionTokenRepo { return &SessionTokenRepo{db: db} }

const (
	qSTCreate = `
INSERT INTO session_tokens (token, created_on, expires_on, previous_token)
VALUES ($1, $2, $3, $4)
RETURNING id;`

	qSTByValue = `
SELECT id, token, created_on, expires_on, previous_token
FROM session_tokens
WHERE token = $1;`

	qSTByPrevious = `
SELECT id, token, created_on, expires_on, previous_token
FROM session_tokens
WHERE previous_token = $1
ORDER BY id;`

	qSTExtend = `
UPDATE session_tokens SET expires_on = $2 WHERE id = $1;`
)

func (r *SessionTokenRepo) Create(ctx context.Context, t *session.Token) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qSTCreate, t.Value, t.CreatedOn, t.ExpiresOn, t.PreviousToken).Scan(&t.ID)
	return mapErr("session token insert", err)
}

func (r *SessionTokenRepo) GetByValue(ctx context.Context, value string) (*session.Token, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t session.Token
	if err := scanSessionToken(r.db.execQueryer(ctx).QueryRow(ctx, qSTByValue, value), &t); err != nil {
		return nil, mapErr("session token select", err)
	}
	return &t, nil
}

func (r *SessionTokenRepo) ListByPrevious(ctx context.Context, previous string) ([]*session.Token, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qSTByPrevious, previous)
	if err != nil {
		return nil, mapErr("session token list", err)
	}
	defer rows.Close()

	var out []*session.Token
	for rows.Next() {
		var t session.Token
		if err := scanSessionToken(rows, &t); err != nil {
			return nil, mapErr("session token scan", err)
		}
		out = append(out, &t)
	}
	return out, mapErr("session token list", rows.Err())
}

func (r *SessionTokenRepo) Extend(ctx context.Context, id int64, expiresOn time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qSTExtend, id, expiresOn)
	if err != nil {
		return mapErr("session token extend", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session token %d", domain.ErrNotFound, id)
	}
	return nil
}

func scanSessionToken(row pgx.Row, t *session.Token) error {
	return row.Scan(&t.ID, &t.Value, &t.CreatedOn, &t.ExpiresOn, &t.PreviousToken)
}
