package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientStore wraps a Store with retry and circuit breaking from fortify.
// Missing keys are not failures and never trip the breaker.
type ResilientStore struct {
	inner          Store
	circuitBreaker circuitbreaker.CircuitBreaker[any]
	retrier        retry.Retry[any]
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilient wrapper
type ResilientConfig struct {
	// MaxAttempts per operation including the first (default: 3)
	MaxAttempts int

	// InitialDelay before the first retry (default: 50ms)
	InitialDelay time.Duration

	// FailureThreshold is the consecutive failures that open the breaker (default: 5)
	FailureThreshold int

	// OpenTimeout is how long the breaker stays open (default: 30s)
	OpenTimeout time.Duration

	// Logger for resilience events
	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults tuned for local and networked stores
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:      3,
		InitialDelay:     50 * time.Millisecond,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// NewResilientStore wraps inner
func NewResilientStore(inner Store, cfg ResilientConfig) *ResilientStore {
	def := DefaultResilientConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	rs := &ResilientStore{inner: inner, logger: cfg.Logger}
	threshold := cfg.FailureThreshold

	rs.circuitBreaker = circuitbreaker.New[any](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= threshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			rs.logger.Warn("storage circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	rs.retrier = retry.New[any](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      2 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryable,
	})

	return rs
}

func isRetryable(err error) bool {
	return !errors.Is(err, ErrInvalidKey) &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

type lookup struct {
	value []byte
	found bool
}

func (s *ResilientStore) run(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	return s.circuitBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return s.retrier.Do(ctx, op)
	})
}

func (s *ResilientStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.run(ctx, func(ctx context.Context) (any, error) {
		v, err := s.inner.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return lookup{}, nil
		}
		if err != nil {
			return nil, err
		}
		return lookup{value: v, found: true}, nil
	})
	if err != nil {
		return nil, err
	}
	l, _ := out.(lookup)
	if !l.found {
		return nil, ErrNotFound
	}
	return l.value, nil
}

func (s *ResilientStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.run(ctx, func(ctx context.Context) (any, error) {
		return nil, s.inner.Set(ctx, key, value)
	})
	return err
}

func (s *ResilientStore) Delete(ctx context.Context, key string) error {
	out, err := s.run(ctx, func(ctx context.Context) (any, error) {
		err := s.inner.Delete(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return true, err
	})
	if err != nil {
		return err
	}
	if existed, _ := out.(bool); !existed {
		return ErrNotFound
	}
	return nil
}

func (s *ResilientStore) Keys(ctx context.Context) ([]string, error) {
	out, err := s.run(ctx, func(ctx context.Context) (any, error) {
		return s.inner.Keys(ctx)
	})
	if err != nil {
		return nil, err
	}
	keys, _ := out.([]string)
	return keys, nil
}

func (s *ResilientStore) Clear(ctx context.Context) error {
	_, err := s.run(ctx, func(ctx context.Context) (any, error) {
		return nil, s.inner.Clear(ctx)
	})
	return err
}

func (s *ResilientStore) Close() error {
	return s.inner.Close()
}
