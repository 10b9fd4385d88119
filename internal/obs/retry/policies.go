package retry

import (
	"context"
	"errors"
	"net/textproto"
	"time"

	"go.uber.org/zap"
)

func DefaultKafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// DefaultMailPolicy retries SMTP sends a few times within the request budget. 5xx replies are
// permanent rejections and are not retried.
func DefaultMailPolicy(attempts int, log *zap.Logger) Policy {
	if attempts <= 0 {
		attempts = 3
	}
	return Policy{
		Name:     "smtp_send",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			var reply *textproto.Error
			if errors.As(err, &reply) && reply.Code >= 500 {
				return false
			}
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("smtp retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
