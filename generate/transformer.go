package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Transformer sends a request to the code-transform service and returns the
// raw response text.
type Transformer interface {
	Transform(ctx context.Context, req Request) (string, error)
}

// TransportError wraps any failure to obtain a response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("code transform request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Breaker stops calling the wrapped Transformer after repeated failures.
type Breaker struct {
	next Transformer
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes a Breaker. Zero values pick defaults.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
}

func NewBreaker(next Transformer, st BreakerSettings, log *zap.Logger) *Breaker {
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.Timeout == 0 {
		st.Timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "code-transform",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		// a cancelled request says nothing about the service
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Transform(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Transform(ctx, req)
	})
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return "", err
		}
		return "", &TransportError{Err: err}
	}
	return out.(string), nil
}

// Open reports whether requests are currently refused.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}
