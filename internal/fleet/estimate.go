package fleet

import "time"

// Estimate is a successful feasibility verdict: the step can finish, landing
// the robot in FinishState, provided it does not begin before EarliestStart.
// Infeasibility is never encoded in an Estimate: a failed query returns a
// typed error and no Estimate at all.
type Estimate struct {
	FinishState   State     `json:"finish_state"`
	EarliestStart time.Time `json:"earliest_start"`
}

// Header is the operator-facing summary of a step: what to call it, what it
// does, and how long it is nominally expected to take.
type Header struct {
	Title            string        `json:"title"`
	Detail           string        `json:"detail"`
	ExpectedDuration time.Duration `json:"expected_duration"`
}
