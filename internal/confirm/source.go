// Package confirm provides the confirmation channel that wait steps block on:
// a way to ask the outside world for a confirmation and to be told when one
// arrives. Correlation is by opaque token; whoever issued the token owns the
// answer, and everything else on the channel is ignored.
package confirm

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyWatched is returned when a watcher is registered for a token that
// already has one. Tokens are single-owner.
var ErrAlreadyWatched = errors.New("confirmation token already watched")

// Source is the capability estimators use to reach the confirmation channel.
//
// Request publishes (or re-publishes) a confirmation request carrying the
// given correlation token. Requests are idempotent: sending the same token
// again must not change the outcome, only remind the other side.
//
// Watch registers fn to be invoked when a confirmation for token arrives
// (repeats included; receivers latch the first), and returns a cancel func
// that removes the registration. Watch must be called before the first
// Request for the token, or a fast answer can be lost.
type Source interface {
	Request(ctx context.Context, token string) error
	Watch(token string, fn func(arrivedAt time.Time)) (cancel func(), err error)
}
