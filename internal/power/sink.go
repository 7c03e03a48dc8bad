// Package power models battery cost as a capability: something that can turn
// an elapsed duration into a fractional state-of-charge delta. Estimators
// consume the capability and stay ignorant of the physics behind it.
package power

import (
	"fmt"
	"time"
)

// Sink converts an elapsed duration into a state-of-charge cost.
// Implementations return the fraction of battery consumed, not the remainder.
type Sink interface {
	ChargeDelta(d time.Duration) float64
}

// LinearSink is a constant ambient draw against a fixed battery capacity:
// a robot idling at drawWatts with a capacityWh pack loses
// drawWatts*hours/capacityWh of its charge.
type LinearSink struct {
	drawWatts  float64
	capacityWh float64
}

// NewLinearSink builds a LinearSink. capacityWh must be positive.
func NewLinearSink(drawWatts, capacityWh float64) (*LinearSink, error) {
	if capacityWh <= 0 {
		return nil, fmt.Errorf("linear sink: battery capacity must be positive, got %.2f Wh", capacityWh)
	}
	return &LinearSink{drawWatts: drawWatts, capacityWh: capacityWh}, nil
}

func (s *LinearSink) ChargeDelta(d time.Duration) float64 {
	return s.drawWatts * d.Hours() / s.capacityWh
}

// FixedSink reports the same charge delta regardless of duration.
// Useful in tests and dry runs where per-cycle cost is dictated, not derived.
type FixedSink float64

func (s FixedSink) ChargeDelta(time.Duration) float64 { return float64(s) }
