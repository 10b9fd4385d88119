package postgres

import (
	"errors"
	"fmt"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const codeUniqueViolation = "23505"

// mapErr translates driver errors into the domain taxonomy. Anything unrecognised is a
// dependency failure of the store.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return fmt.Errorf("%w: %s: %s", domain.ErrConflict, op, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrDependency, op, err.Error())
}
