// Package waitconfirm implements the confirmation-wait step: a plan element
// that parks a robot until some external party (a supervisor console, a door
// interlock) confirms it may proceed, or until waiting has gone on long
// enough to call the plan dead.
//
// A Description is the immutable recipe (how long each wait quantum is, how
// long before giving up); MakeModel binds it into a live Model that owns a
// correlation token, a watcher on the confirmation channel, and the received
// signal. Feasibility is then sampled by calling EstimateFinish repeatedly.
package waitconfirm

import (
	"context"
	"log/slog"
	"time"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

// Description configures confirmation-wait steps. The zero value is not
// useful; build one with Make.
type Description struct {
	initialWait time.Duration
	timeout     time.Duration

	now    func() time.Time
	logger *slog.Logger
}

// Option adjusts how models built from a Description behave.
type Option func(*Description)

// WithClock overrides the models' time source. Tests use it to walk time
// forward deterministically.
func WithClock(now func() time.Time) Option {
	return func(d *Description) { d.now = now }
}

// WithLogger routes model logging somewhere other than slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Description) { d.logger = logger }
}

// Make builds a Description waiting in quanta of initialWait and giving up
// once timeout has passed since the last unanswered request. Durations are
// stored as given; negative values are legalized where they are consumed,
// not rejected here.
func Make(initialWait, timeout time.Duration, opts ...Option) *Description {
	d := &Description{
		initialWait: initialWait,
		timeout:     timeout,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewRequest bundles a booking with a fresh confirmation-wait Description.
func NewRequest(initialWait, timeout time.Duration, booking fleet.Booking, opts ...Option) *fleet.Request {
	return &fleet.Request{
		Booking:     booking,
		Description: Make(initialWait, timeout, opts...),
	}
}

// InitialWaitDuration returns the per-cycle wait quantum.
func (d *Description) InitialWaitDuration() time.Duration { return d.initialWait }

// SetInitialWaitDuration replaces the wait quantum and returns d for
// chaining. Models already built keep the value they were born with.
func (d *Description) SetInitialWaitDuration(wait time.Duration) *Description {
	d.initialWait = wait
	return d
}

// TimeoutDuration returns the give-up ceiling.
func (d *Description) TimeoutDuration() time.Duration { return d.timeout }

// SetTimeoutDuration replaces the give-up ceiling and returns d for chaining.
func (d *Description) SetTimeoutDuration(timeout time.Duration) *Description {
	d.timeout = timeout
	return d
}

// MakeModel binds a live Model for one candidate plan. It issues the
// correlation token, registers the watcher, and sends the first confirmation
// request before returning. params.Confirmations is mandatory.
func (d *Description) MakeModel(ctx context.Context, invariantInitialState fleet.State, params fleet.Parameters) (fleet.Model, error) {
	return newModel(ctx, d, invariantInitialState, params)
}

// GenerateHeader summarizes the step for display.
func (d *Description) GenerateHeader(fleet.State, fleet.Parameters) fleet.Header {
	return fleet.Header{
		Title:            "Waiting for Confirmation",
		Detail:           "Waiting until confirmation is received or timeout occurs",
		ExpectedDuration: d.initialWait,
	}
}

var _ fleet.Description = (*Description)(nil)
