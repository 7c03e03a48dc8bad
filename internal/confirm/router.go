package confirm

import (
	"fmt"
	"sync"
	"time"
)

// Router fans incoming confirmations out to the watcher that owns each token.
// It is the in-process half of every Source implementation: transports push
// (token, arrival time) pairs in via Dispatch, estimators hang watchers on
// tokens via Watch.
type Router struct {
	mu       sync.Mutex
	watchers map[string]func(time.Time)
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{watchers: make(map[string]func(time.Time))}
}

// Watch registers fn for token. The returned cancel removes the registration
// and is safe to call more than once.
func (r *Router) Watch(token string, fn func(arrivedAt time.Time)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watchers[token]; ok {
		return nil, fmt.Errorf("token %s: %w", token, ErrAlreadyWatched)
	}
	r.watchers[token] = fn
	return func() {
		r.mu.Lock()
		delete(r.watchers, token)
		r.mu.Unlock()
	}, nil
}

// Dispatch delivers a confirmation to the watcher owning token, if any, and
// reports whether one was found. Unmatched tokens are inert: confirmations
// for steps this process never requested (or has already torn down) are
// someone else's business.
//
// The watcher runs outside the Router lock, so it may freely re-enter the
// Router (e.g. cancel itself).
func (r *Router) Dispatch(token string, arrivedAt time.Time) bool {
	r.mu.Lock()
	fn, ok := r.watchers[token]
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(arrivedAt)
	return true
}

// Watching returns the number of registered watchers.
func (r *Router) Watching() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}
