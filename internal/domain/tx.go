package domain

import "context"

// Transactor runs fn inside one store transaction. Nested calls join the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
