package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrOpen is returned when the breaker rejects a call without executing it.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker guards calls to one remote collaborator.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// New builds a breaker that trips after FailureThreshold consecutive failures.
// isSuccessful lets callers keep business rejections (declines, duplicates)
// from counting against the remote side; nil treats every error as a failure.
func New(s Settings, log *zap.Logger, isSuccessful func(error) bool) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: isSuccessful,
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](st)}
}

// Execute runs fn through the breaker.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn()
	}
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, ErrOpen
	}
	if v == nil {
		return zero, err
	}
	return v.(T), err
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
