package fleet

import (
	"context"
	"time"
)

// Model is one live estimation instance of a step. A Model may hold running
// state (subscriptions, correlation identifiers, received signals), so its
// answers can change between calls; Descriptions are the immutable half.
//
// Implementations must be safe for concurrent use: confirmation and other
// signal deliveries arrive on transport goroutines while the evaluator is
// mid-query.
type Model interface {
	// EstimateFinish projects the step forward from state. A non-nil
	// Estimate means the candidate remains feasible for now; a nil Estimate
	// comes with a typed error naming why the candidate is dead
	// (TimeoutError, BatteryDepletedError, BelowThresholdError).
	EstimateFinish(ctx context.Context, state State, earliestArrival time.Time, constraints Constraints) (*Estimate, error)

	// InvariantDuration is the mandatory minimum time the step still
	// requires regardless of what else happens.
	InvariantDuration() time.Duration

	// InvariantFinishState is the finish state the Model committed to when
	// it was built.
	InvariantFinishState() State

	// Close releases any subscriptions the Model holds. Idempotent.
	Close() error
}

// Description is the static definition of a step: enough to build a live
// Model and to describe the step to an operator.
type Description interface {
	// MakeModel binds a fresh Model for one candidate, starting from
	// invariantInitialState and drawing on the capabilities in params.
	MakeModel(ctx context.Context, invariantInitialState State, params Parameters) (Model, error)

	// GenerateHeader summarizes the step for display.
	GenerateHeader(state State, params Parameters) Header
}
