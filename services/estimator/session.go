package estimator

import (
	"time"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

// Session is one feasibility-tracking attempt: a live confirmation-wait
// model plus the trajectory the evaluator has projected for it so far.
//
// After creation, all mutable fields belong to the evaluation loop's
// goroutine; everything else reads only the immutable ones.
type Session struct {
	ID          string
	Booking     fleet.Booking
	InitialWait time.Duration
	Timeout     time.Duration
	Constraints fleet.Constraints

	CorrelationID string
	Model         fleet.Model

	// Start is the state the model was built from; Current is the frontier
	// of the projection, fed back into each evaluation.
	Start   fleet.State
	Current fleet.State

	Status      fleet.Status
	Reason      string
	Evaluations int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Record flattens the session into its durable form.
func (sess *Session) Record() *fleet.SessionRecord {
	return &fleet.SessionRecord{
		ID:            sess.ID,
		Robot:         sess.Booking.Requester,
		CorrelationID: sess.CorrelationID,
		InitialWait:   sess.InitialWait,
		Timeout:       sess.Timeout,
		DrainBattery:  sess.Constraints.DrainBattery,
		ThresholdSOC:  sess.Constraints.ThresholdSOC,
		StartSOC:      sess.Start.BatterySOC,
		StartTime:     sess.Start.Time,
		EarliestStart: sess.Booking.EarliestStart,
		Status:        sess.Status,
		Reason:        sess.Reason,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt,
	}
}
