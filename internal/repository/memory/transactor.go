package memory

import (
	"context"
	"sync"

	"github.com/NordCoder/Custodian/internal/domain"
)

var _ domain.Transactor = (*Transactor)(nil)

// Transactor serializes transactions with a single lock. Nested calls run inline.
// Stores record an undo step for every write made under WithTx, and the steps run in
// reverse order when fn fails, so a failed transaction leaves no partial writes behind.
type Transactor struct {
	mu sync.Mutex
}

type undoLog struct {
	steps []func()
}

type undoKey struct{}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	log := &undoLog{}
	err := fn(context.WithValue(ctx, undoKey{}, log))
	if err != nil {
		for i := len(log.steps) - 1; i >= 0; i-- {
			log.steps[i]()
		}
	}
	return err
}

// onRollback registers step with the transaction in ctx. Outside WithTx writes are final.
func onRollback(ctx context.Context, step func()) {
	if log, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		log.steps = append(log.steps, step)
	}
}

// keep saves the current state of m[k] so a failed transaction can put it back.
// It must be called with mu held and before m[k] is written.
func keep[K comparable, V any](ctx context.Context, mu *sync.Mutex, m map[K]*V, k K) {
	prev, had := m[k]
	var saved V
	if had {
		saved = *prev
	}
	onRollback(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !had {
			delete(m, k)
			return
		}
		*prev = saved
		m[k] = prev
	})
}
