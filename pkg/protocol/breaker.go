package protocol

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerEmailDeliverer wraps an EmailDeliverer with a circuit breaker so a
// flapping delivery backend trips open instead of absorbing step retries.
type BreakerEmailDeliverer struct {
	next    EmailDeliverer
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerEmailDeliverer creates a circuit-breaking delivery wrapper. The
// breaker opens after five consecutive failures and probes again after 30s.
func NewBreakerEmailDeliverer(name string, next EmailDeliverer) *BreakerEmailDeliverer {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &BreakerEmailDeliverer{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerEmailDeliverer) Send(ctx context.Context, templateID, contactID string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Send(ctx, templateID, contactID)
	})

	return err
}
