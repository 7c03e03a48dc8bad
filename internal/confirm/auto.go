package confirm

import (
	"context"
	"time"
)

// AutoSource answers every request immediately, as if the other side
// confirmed the instant it was asked. Meant for simulation and dry runs
// where nobody is on the other end of the channel.
type AutoSource struct {
	router *Router
	now    func() time.Time
}

// NewAutoSource creates an AutoSource.
func NewAutoSource() *AutoSource {
	return &AutoSource{router: NewRouter(), now: time.Now}
}

// Request confirms the token synchronously, before returning.
func (s *AutoSource) Request(_ context.Context, token string) error {
	s.router.Dispatch(token, s.now())
	return nil
}

// Watch registers fn for token.
func (s *AutoSource) Watch(token string, fn func(arrivedAt time.Time)) (func(), error) {
	return s.router.Watch(token, fn)
}
