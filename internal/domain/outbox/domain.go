package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindAccountRegistered Kind = iota + 1
	KindPasswordSet
	KindEmailTransferred
	KindAccountDeleted
	KindAccountRestored
)

func (k Kind) String() string {
	switch k {
	case KindAccountRegistered:
		return "account.registered"
	case KindPasswordSet:
		return "account.password_set"
	case KindEmailTransferred:
		return "account.email_transferred"
	case KindAccountDeleted:
		return "account.deleted"
	case KindAccountRestored:
		return "account.restored"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// AccountEvent is the payload stored for every kind.
type AccountEvent struct {
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	OldEmail  string    `json:"old_email,omitempty"`
	At        time.Time `json:"at"`
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)

// Recorder stores an account event in the outbox as part of the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, kind Kind, ev AccountEvent) error
}
