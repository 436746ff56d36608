package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/cctv/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/cctv/internal/replication"

// Retrying bounds every attempt by a timeout and retries a fixed number of times
// before reporting core.ErrTransientNetworkFailure.
type Retrying struct {
	next     Broadcaster
	attempts int
	timeout  time.Duration
	logger   *slog.Logger
	failures metric.Int64Counter
}

func NewRetrying(next Broadcaster, attempts int, timeout time.Duration, logger *slog.Logger) (*Retrying, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts < 1 {
		attempts = 1
	}
	r := &Retrying{
		next:     next,
		attempts: attempts,
		timeout:  timeout,
		logger:   logger.With("component", "replication"),
	}

	var err error
	r.failures, err = otel.Meter(instrumentationName).Int64Counter(
		"cctv.replication.failures",
		metric.WithDescription("Broadcast attempts that failed or timed out"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	return r, nil
}

func (r *Retrying) Broadcast(ctx context.Context, u Update) error {
	return r.BroadcastGuarded(ctx, u, nil)
}

// BroadcastGuarded is Broadcast with a check run before every attempt. Once
// stillCurrent reports false the update is abandoned with core.ErrStale.
func (r *Retrying) BroadcastGuarded(ctx context.Context, u Update, stillCurrent func() bool) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if stillCurrent != nil && !stillCurrent() {
			return fmt.Errorf("%s/%s v%d: %w", u.Topic, u.Key, u.Version, core.ErrStale)
		}

		actx := ctx
		cancel := context.CancelFunc(func() {})
		if r.timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		err := r.next.Broadcast(actx, u)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, core.ErrStale) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", u.Topic)))
		r.logger.Warn("Broadcast attempt failed",
			"topic", u.Topic, "key", u.Key, "version", u.Version, "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%s/%s v%d after %d attempts (%v): %w",
		u.Topic, u.Key, u.Version, r.attempts, lastErr, core.ErrTransientNetworkFailure)
}
