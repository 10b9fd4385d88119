package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/transfer"
	"github.com/jackc/pgx/v5"
)

var _ transfer.Repo = (*TransferRepo)(nil)

type TransferRepo struct{ db *DB }

func NewTransferRepo(db *DB) *TransferRepo { return &TransferRepo{db: db} }

const transferColumns = `
id, requested_on, email_old, email_new, token_old, token_new,
confirmed, confirmed_on, accepted, accepted_on`

const (
	qTransferInsert = `
INSERT INTO account_transfers (requested_on, email_old, email_new, token_old, token_new)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;`

	qTransferByID = `SELECT` + transferColumns + `
FROM account_transfers
WHERE id = $1;`

	qTransferByTokenOld = `SELECT` + transferColumns + `
FROM account_transfers
WHERE token_old = $1;`

	qTransferByTokenNew = `SELECT` + transferColumns + `
FROM account_transfers
WHERE token_new = $1;`

	// The IS NULL guard makes the decision write-once; concurrent writers on the same row
	// serialize on the row lock and the loser matches zero rows.
	qTransferConfirm = `
UPDATE account_transfers
SET confirmed = $2, confirmed_on = $3
WHERE token_old = $1 AND confirmed IS NULL
RETURNING` + transferColumns + `;`

	qTransferAccept = `
UPDATE account_transfers
SET accepted = $2, accepted_on = $3
WHERE token_new = $1 AND accepted IS NULL
RETURNING` + transferColumns + `;`
)

func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qTransferInsert,
		t.RequestedOn, t.EmailOld, t.EmailNew, t.TokenOld, t.TokenNew,
	).Scan(&t.ID)
	return mapErr("transfer insert", err)
}

func (r *TransferRepo) GetByID(ctx context.Context, id int64) (*transfer.Transfer, error) {
	return r.one(ctx, qTransferByID, id)
}

func (r *TransferRepo) GetByToken(ctx context.Context, side transfer.Side, token string) (*transfer.Transfer, error) {
	q := qTransferByTokenOld
	if side == transfer.NewEmail {
		q = qTransferByTokenNew
	}
	return r.one(ctx, q, token)
}

func (r *TransferRepo) Decide(ctx context.Context, side transfer.Side, token string, d transfer.Decision, at time.Time) (*transfer.Transfer, error) {
	if !d.Decided() {
		return nil, fmt.Errorf("%w: decision must be yes or no", domain.ErrUnprocessable)
	}
	q := qTransferConfirm
	if side == transfer.NewEmail {
		q = qTransferAccept
	}

	t, err := r.one(ctx, q, token, d.Null(), at)
	if errors.Is(err, domain.ErrNotFound) {
		if _, lookupErr := r.GetByToken(ctx, side, token); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, fmt.Errorf("%w: %s token has already been used", domain.ErrAlreadyProcessed, side)
	}
	return t, err
}

func (r *TransferRepo) one(ctx context.Context, q string, args ...any) (*transfer.Transfer, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t transfer.Transfer
	if err := scanTransfer(r.db.execQueryer(ctx).QueryRow(ctx, q, args...), &t); err != nil {
		return nil, mapErr("transfer select", err)
	}
	return &t, nil
}

func scanTransfer(row pgx.Row, t *transfer.Transfer) error {
	var confirmed, accepted *bool
	if err := row.Scan(
		&t.ID, &t.RequestedOn, &t.EmailOld, &t.EmailNew, &t.TokenOld, &t.TokenNew,
		&confirmed, &t.ConfirmedOn, &accepted, &t.AcceptedOn,
	); err != nil {
		return err
	}
	t.Confirmed = transfer.DecisionFromNull(confirmed)
	t.Accepted = transfer.DecisionFromNull(accepted)
	return nil
}
