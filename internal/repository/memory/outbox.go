package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Custodian/internal/domain/outbox"
)

var _ outbox.Repository = (*Outbox)(nil)

type Outbox struct {
	mu   sync.Mutex
	rows map[string]*outbox.Message
	now  func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{rows: map[string]*outbox.Message{}, now: time.Now}
}

func (o *Outbox) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.rows[key]; ok {
		return nil
	}
	now := o.now()
	keep(ctx, &o.mu, o.rows, key)
	o.rows[key] = &outbox.Message{
		IdempotencyKey: key, Kind: kind, Data: data,
		Status: outbox.StatusCreated, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (o *Outbox) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	var cand []*outbox.Message
	for _, m := range o.rows {
		if m.Status == outbox.StatusCreated || (m.Status == outbox.StatusInProgress && m.UpdatedAt.Before(now.Add(-inProgressTTL))) {
			cand = append(cand, m)
		}
	}
	sort.Slice(cand, func(i, j int) bool { return cand[i].CreatedAt.Before(cand[j].CreatedAt) })
	if len(cand) > batch {
		cand = cand[:batch]
	}
	out := make([]outbox.Message, 0, len(cand))
	for _, m := range cand {
		keep(ctx, &o.mu, o.rows, m.IdempotencyKey)
		m.Status, m.UpdatedAt = outbox.StatusInProgress, now
		out = append(out, *m)
	}
	return out, nil
}

func (o *Outbox) MarkSuccess(ctx context.Context, keys []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range keys {
		if m, ok := o.rows[k]; ok {
			keep(ctx, &o.mu, o.rows, k)
			m.Status, m.UpdatedAt = outbox.StatusSuccess, o.now()
		}
	}
	return nil
}

// Messages returns every stored message ordered by creation time.
func (o *Outbox) Messages() []outbox.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]outbox.Message, 0, len(o.rows))
	for _, m := range o.rows {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
