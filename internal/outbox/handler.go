package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain/outbox"
	"github.com/NordCoder/Custodian/internal/obs"
	"github.com/NordCoder/Custodian/internal/obs/retry"
)

// Publisher ships a decoded account event somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, kind outbox.Kind, ev outbox.AccountEvent) error
}

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		span.SetAttributes(attribute.String("outbox.kind", kind))
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

// MakeGlobalOutboxHandler routes every account event kind to pub.
func MakeGlobalOutboxHandler(pub Publisher, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindAccountRegistered,
			outbox.KindPasswordSet,
			outbox.KindEmailTransferred,
			outbox.KindAccountDeleted,
			outbox.KindAccountRestored:
			base := func(ctx context.Context, data []byte) error {
				var ev outbox.AccountEvent
				if err := json.Unmarshal(data, &ev); err != nil {
					return retry.Permanent(fmt.Errorf("unmarshal %s payload: %w", kind, err))
				}
				return pub.Publish(ctx, kind, ev)
			}
			return instrument(kind.String(), base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	Log *zap.Logger
}

func (l LogPublisher) Publish(ctx context.Context, kind outbox.Kind, ev outbox.AccountEvent) error {
	obs.WithTrace(ctx, l.Log).Info("account event",
		zap.String("kind", kind.String()),
		zap.Int64("account_id", ev.AccountID),
		zap.Time("at", ev.At),
	)
	return nil
}
