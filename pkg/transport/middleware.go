package transport

import (
	"context"

	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Middleware represents a strategy middleware that can wrap a strategy
// to add additional functionality like observability.
type Middleware interface {
	// Wrap wraps the given strategy with middleware functionality
	Wrap(strategy Strategy) Strategy
}

// MiddlewareFunc is an adapter to allow the use of ordinary functions as middleware
type MiddlewareFunc func(Strategy) Strategy

// Wrap implements the Middleware interface
func (f MiddlewareFunc) Wrap(s Strategy) Strategy {
	return f(s)
}

// ChainMiddleware chains multiple middleware together
func ChainMiddleware(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(strategy Strategy) Strategy {
		// Apply middleware in reverse order so the first middleware is the outermost
		for i := len(middleware) - 1; i >= 0; i-- {
			strategy = middleware[i].Wrap(strategy)
		}
		return strategy
	})
}

// middlewareStrategy is a base type for middleware implementations
type middlewareStrategy struct {
	next Strategy
}

func (m *middlewareStrategy) Connect(ctx context.Context) error {
	return m.next.Connect(ctx)
}

func (m *middlewareStrategy) Disconnect(ctx context.Context) error {
	return m.next.Disconnect(ctx)
}

func (m *middlewareStrategy) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	return m.next.FetchRoster(ctx)
}

func (m *middlewareStrategy) ReportPick(ctx context.Context, id string) (bool, error) {
	return m.next.ReportPick(ctx, id)
}

func (m *middlewareStrategy) ReportRemoval(ctx context.Context, id string) (bool, error) {
	return m.next.ReportRemoval(ctx, id)
}

// Unwrap returns the wrapped strategy
func (m *middlewareStrategy) Unwrap() Strategy {
	return m.next
}

// Unwrap peels every middleware layer off s and returns the innermost
// strategy.
func Unwrap(s Strategy) Strategy {
	for {
		w, ok := s.(interface{ Unwrap() Strategy })
		if !ok {
			return s
		}
		s = w.Unwrap()
	}
}
