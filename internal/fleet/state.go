// Package fleet holds the value types and estimation contracts shared by the
// scheduler-facing services and the step estimators they query. Nothing in
// here talks to the network; it is the vocabulary everything else speaks.
package fleet

import (
	"time"

	"github.com/universal-field-robots/rmf-task/internal/confirm"
	"github.com/universal-field-robots/rmf-task/internal/power"
)

// State is a robot's projected condition at one point in a candidate plan:
// where it is in time and how much battery it has left. Estimators take a
// State in and hand a later State out; a plan is the chain of those
// hand-offs.
type State struct {
	// Time is the instant the projection refers to.
	Time time.Time `json:"time"`
	// BatterySOC is the fractional state of charge, nominally in [0, 1].
	BatterySOC float64 `json:"battery_soc"`
}

// Constraints are the fleet-wide feasibility rules an estimate must respect.
type Constraints struct {
	// DrainBattery applies the step's power cost to the projected state of
	// charge. Disabled for robots that estimate time but not energy.
	DrainBattery bool `json:"drain_battery"`
	// ThresholdSOC is the fractional state of charge at or below which a
	// candidate plan is rejected.
	ThresholdSOC float64 `json:"threshold_soc"`
}

// Parameters carries the capabilities a Description may draw on when it
// builds a Model. Individual fields are optional unless a step says
// otherwise; a nil capability means "this deployment doesn't model that".
type Parameters struct {
	// PowerSink translates elapsed time into battery cost.
	PowerSink power.Sink
	// Confirmations is the channel to the outside party whose answer
	// confirmation-wait steps block on.
	Confirmations confirm.Source
}
