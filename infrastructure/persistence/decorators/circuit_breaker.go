// Package decorators wraps ports.NodeStore implementations with cross-cutting behaviour
package decorators

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"sitemap-backend/application/ports"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/pkg/observability"
)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MaxFailures consecutive infrastructure failures trip the breaker
	MaxFailures uint32
}

// DefaultBreakerConfig returns the settings used when none are configured
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		MaxFailures: 5,
	}
}

// CircuitBreakerNodeStore fails fast with an Unavailable error while the
// underlying store keeps failing
type CircuitBreakerNodeStore struct {
	inner  ports.NodeStore
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewCircuitBreakerNodeStore wraps inner. metrics may be nil.
func NewCircuitBreakerNodeStore(inner ports.NodeStore, config BreakerConfig, metrics *observability.Collector, logger *zap.Logger) *CircuitBreakerNodeStore {
	s := &CircuitBreakerNodeStore{inner: inner, logger: logger}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if metrics != nil {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
		IsSuccessful: isInfrastructureHealthy,
	})
	if metrics != nil {
		metrics.BreakerState.WithLabelValues(config.Name).Set(float64(gobreaker.StateClosed))
	}
	return s
}

// isInfrastructureHealthy treats caller mistakes as successes so a burst of
// unknown ids cannot open the breaker
func isInfrastructureHealthy(err error) bool {
	if err == nil {
		return true
	}
	return pkgerrors.IsNotFound(err) || pkgerrors.IsValidation(err) || pkgerrors.IsConflict(err) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state
func (s *CircuitBreakerNodeStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *CircuitBreakerNodeStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.NewUnavailableError("node store").WithCause(err)
	}
	return result, err
}

// ListBySitemap implements ports.NodeStore
func (s *CircuitBreakerNodeStore) ListBySitemap(ctx context.Context, sitemapID valueobjects.SitemapID) ([]*entities.Node, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.inner.ListBySitemap(ctx, sitemapID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*entities.Node), nil
}

// UpdatePosition implements ports.NodeStore
func (s *CircuitBreakerNodeStore) UpdatePosition(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.UpdatePosition(ctx, sitemapID, nodeID, pos)
	})
	return err
}

// UpdateParent implements ports.NodeStore
func (s *CircuitBreakerNodeStore) UpdateParent(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID, parentID valueobjects.NodeID) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.UpdateParent(ctx, sitemapID, nodeID, parentID)
	})
	return err
}

// Delete implements ports.NodeStore
func (s *CircuitBreakerNodeStore) Delete(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, sitemapID, nodeID)
	})
	return err
}

// Upsert implements ports.NodeStore
func (s *CircuitBreakerNodeStore) Upsert(ctx context.Context, node *entities.Node) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.Upsert(ctx, node)
	})
	return err
}

// Ping passes through to the wrapped store when it supports health checks
func (s *CircuitBreakerNodeStore) Ping(ctx context.Context) error {
	if hc, ok := s.inner.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}
