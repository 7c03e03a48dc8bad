package confirm

import (
	"context"
	"time"
)

// ManualSource is a Source with no transport behind it: requests go nowhere
// and confirmations arrive only when something in this process calls
// Dispatch. It backs single-node deployments where confirmations come in
// over the local API, and it is the workhorse of tests.
type ManualSource struct {
	router *Router
}

// NewManualSource creates a ManualSource.
func NewManualSource() *ManualSource {
	return &ManualSource{router: NewRouter()}
}

// Request is a no-op.
func (s *ManualSource) Request(context.Context, string) error { return nil }

// Watch registers fn for token.
func (s *ManualSource) Watch(token string, fn func(arrivedAt time.Time)) (func(), error) {
	return s.router.Watch(token, fn)
}

// Dispatch delivers a confirmation for token, reporting whether a watcher
// claimed it.
func (s *ManualSource) Dispatch(token string, arrivedAt time.Time) bool {
	return s.router.Dispatch(token, arrivedAt)
}
