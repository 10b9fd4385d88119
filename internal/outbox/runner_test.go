package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain/outbox"
	"github.com/NordCoder/Custodian/internal/obs/retry"
	"github.com/NordCoder/Custodian/internal/repository/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []outbox.AccountEvent
	kinds  []outbox.Kind
	fail   int
}

func (c *capturePublisher) Publish(_ context.Context, kind outbox.Kind, ev outbox.AccountEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return errors.New("broker unavailable")
	}
	c.kinds = append(c.kinds, kind)
	c.events = append(c.events, ev)
	return nil
}

func noRetry() retry.Policy {
	return retry.Policy{Name: "test", Attempts: 1}
}

func TestRunner_DeliversRecordedEvents(t *testing.T) {
	store := memory.NewOutbox()
	rec := NewRecorder(store)
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, outbox.KindAccountRegistered, outbox.AccountEvent{AccountID: 1, Username: "alice"}))
	require.NoError(t, rec.Record(ctx, outbox.KindEmailTransferred, outbox.AccountEvent{AccountID: 1, Email: "b@x.io", OldEmail: "a@x.io"}))

	pub := &capturePublisher{}
	r := NewOutboxRunner(zap.NewNop(), store, MakeGlobalOutboxHandler(pub, noRetry()), Config{BatchSize: 10})

	assert.Equal(t, 2, r.tick(ctx))
	assert.ElementsMatch(t, []outbox.Kind{outbox.KindAccountRegistered, outbox.KindEmailTransferred}, pub.kinds)
	for _, m := range store.Messages() {
		assert.Equal(t, outbox.StatusSuccess, m.Status)
	}

	assert.Equal(t, 0, r.tick(ctx))
}

func TestRunner_FailedMessageStaysInProgress(t *testing.T) {
	store := memory.NewOutbox()
	ctx := context.Background()
	require.NoError(t, NewRecorder(store).Record(ctx, outbox.KindAccountDeleted, outbox.AccountEvent{AccountID: 7}))

	pub := &capturePublisher{fail: 1}
	r := NewOutboxRunner(zap.NewNop(), store, MakeGlobalOutboxHandler(pub, noRetry()), Config{BatchSize: 10, InProgressTTL: time.Hour})

	assert.Equal(t, 0, r.tick(ctx))
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, outbox.StatusInProgress, msgs[0].Status)
	assert.Empty(t, pub.events)
}

func TestGlobalHandler_UnknownKind(t *testing.T) {
	_, err := MakeGlobalOutboxHandler(&capturePublisher{}, noRetry())(outbox.Kind(99))
	require.Error(t, err)
}

func TestGlobalHandler_BadPayloadIsNotRetried(t *testing.T) {
	attempts := 0
	pol := retry.Policy{
		Name:      "test",
		Attempts:  5,
		Backoff:   retry.ExpoJitter{Base: time.Millisecond},
		OnAttempt: func(int, error) { attempts++ },
	}
	h, err := MakeGlobalOutboxHandler(&capturePublisher{}, pol)(outbox.KindPasswordSet)
	require.NoError(t, err)

	err = h(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
	assert.Equal(t, 1, attempts)
}

func TestRunner_StartStops(t *testing.T) {
	store := memory.NewOutbox()
	pub := &capturePublisher{}
	r := NewOutboxRunner(zap.NewNop(), store, MakeGlobalOutboxHandler(pub, noRetry()), Config{Workers: 2, WaitTime: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, NewRecorder(store).Record(ctx, outbox.KindPasswordSet, outbox.AccountEvent{AccountID: 3}))
	r.Start(ctx)

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	r.Wait()
}
