package auth

import (
	"context"
	"sync"
)

// Scope ties async results to the page that asked for them. Once closed,
// its context is cancelled and Commit drops late results.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewScope opens a scope under parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Commit runs apply only while the scope is open and reports whether it ran.
// apply runs under the scope lock so Close cannot interleave with it.
func (s *Scope) Commit(apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	apply()
	return true
}

// Close is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether Close was called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Go runs fetch in a goroutine and commits its result through apply if the
// scope is still open when it returns.
func Go[T any](s *Scope, fetch func(ctx context.Context) (T, error), apply func(T, error)) {
	go func() {
		v, err := fetch(s.Context())
		s.Commit(func() { apply(v, err) })
	}()
}
