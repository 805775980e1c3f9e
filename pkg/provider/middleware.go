package provider

import (
	"context"

	"github.com/abdhe/textwise/pkg/resilience"
)

// breakerBackend routes every call through a circuit breaker so a dead
// endpoint fails fast instead of burning the full deadline on each chunk.
type breakerBackend struct {
	inner Backend
	cb    *resilience.CircuitBreaker
}

// WithBreaker wraps a backend with a circuit breaker. The wrapped backend
// keeps the inner name and capacity hint.
func WithBreaker(inner Backend, cb *resilience.CircuitBreaker) Backend {
	return &breakerBackend{inner: inner, cb: cb}
}

func (b *breakerBackend) Name() string      { return b.inner.Name() }
func (b *breakerBackend) CapacityHint() int { return b.inner.CapacityHint() }

func (b *breakerBackend) Run(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := b.cb.Execute(func() error {
		var callErr error
		resp, callErr = b.inner.Run(ctx, req)
		return callErr
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}
