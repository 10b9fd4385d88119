package kafka

import (
	"context"

	"github.com/NordCoder/Custodian/internal/domain/outbox"
)

// AccountEventsKafka publishes account lifecycle events keyed by account id.
type AccountEventsKafka struct {
	p *Producer
}

func NewAccountEventsKafka(p *Producer) *AccountEventsKafka {
	return &AccountEventsKafka{p: p}
}

func (a *AccountEventsKafka) Publish(ctx context.Context, kind outbox.Kind, ev outbox.AccountEvent) error {
	return a.p.PublishJSON(ctx, KeyFromInt64(ev.AccountID), kind.String(), ev)
}
