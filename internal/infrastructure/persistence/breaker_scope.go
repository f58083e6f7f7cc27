package persistence

import (
	"context"
	"time"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds the circuit breaker settings for store access
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that opens the breaker once MinRequests is reached
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "catalog-store",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      10,
	}
}

// BreakerTransactionScope guards a TransactionScope with a circuit breaker.
// Only store failures (timeouts, unavailability) count against the breaker;
// validation and conflict errors are successful round trips. While open,
// Execute fails fast with STORE_UNAVAILABLE.
type BreakerTransactionScope struct {
	next appcatalog.TransactionScope
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerTransactionScope wraps next with a circuit breaker
func NewBreakerTransactionScope(next appcatalog.TransactionScope, cfg BreakerConfig, logger *zap.Logger) *BreakerTransactionScope {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return !isStoreOutage(err)
		},
	})
	return &BreakerTransactionScope{next: next, cb: cb}
}

// Execute runs fn through the breaker
func (s *BreakerTransactionScope) Execute(ctx context.Context, fn func(repos appcatalog.TransactionalRepositories) error) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.Execute(ctx, fn)
	})
	return translateError(err, errCategoryNotFound)
}

// State returns the current breaker state
func (s *BreakerTransactionScope) State() gobreaker.State {
	return s.cb.State()
}

func isStoreOutage(err error) bool {
	switch shared.ErrorCode(err) {
	case shared.CodeStoreTimeout, shared.CodeStoreUnavailable:
		return true
	}
	return false
}

// Ensure BreakerTransactionScope implements TransactionScope
var _ appcatalog.TransactionScope = (*BreakerTransactionScope)(nil)
