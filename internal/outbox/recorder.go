package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/NordCoder/Custodian/internal/domain/outbox"
)

var _ outbox.Recorder = (*Recorder)(nil)

// Recorder writes events through the repository, so it joins whatever
// transaction is carried by ctx.
type Recorder struct {
	repo outbox.Repository
}

func NewRecorder(repo outbox.Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Record(ctx context.Context, kind outbox.Kind, ev outbox.AccountEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}
	key := fmt.Sprintf("%s:%d:%s", kind, ev.AccountID, uuid.NewString())
	return r.repo.Enqueue(ctx, key, kind, data)
}
