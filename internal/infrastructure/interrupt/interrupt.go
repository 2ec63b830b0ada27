// Package interrupt routes operator interrupts to the transaction being enriched
package interrupt

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
)

// Token is the cancellation handle of a single transaction. Cancelling it
// stops automatic rate resolution for that transaction only.
type Token struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewToken creates a token derived from parent
func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancelCause(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Context is cancelled with cause entity.ErrOperatorCancelled when the token fires
func (t *Token) Context() context.Context {
	return t.ctx
}

// Cancel fires the token
func (t *Token) Cancel() {
	t.cancel(entity.ErrOperatorCancelled)
}

// Cancelled reports whether the operator fired the token
func (t *Token) Cancelled() bool {
	return errors.Is(context.Cause(t.ctx), entity.ErrOperatorCancelled)
}

// Release frees the token's resources once its transaction is done
func (t *Token) Release() {
	t.cancel(context.Canceled)
}

// Router delivers interrupts to the token of the transaction in flight.
// With nothing in flight an interrupt calls the idle hook instead.
type Router struct {
	mu      sync.Mutex
	current *Token
	onIdle  func()
}

// NewRouter creates a router; onIdle may be nil
func NewRouter(onIdle func()) *Router {
	return &Router{onIdle: onIdle}
}

// Begin starts a fresh token for the next transaction
func (r *Router) Begin(parent context.Context) *Token {
	token := NewToken(parent)

	r.mu.Lock()
	r.current = token
	r.mu.Unlock()

	return token
}

// End releases token and detaches it from the router
func (r *Router) End(token *Token) {
	r.mu.Lock()
	if r.current == token {
		r.current = nil
	}
	r.mu.Unlock()

	token.Release()
}

// Interrupt cancels the token in flight. It returns false, after calling the
// idle hook, when there was none.
func (r *Router) Interrupt() bool {
	r.mu.Lock()
	token := r.current
	r.mu.Unlock()

	if token != nil {
		token.Cancel()
		return true
	}

	if r.onIdle != nil {
		r.onIdle()
	}
	return false
}

// Listen turns each received signal into an Interrupt until ctx is done or
// signals is closed
func (r *Router) Listen(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			r.Interrupt()
		}
	}
}
