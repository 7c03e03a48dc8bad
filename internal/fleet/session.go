package fleet

import "time"

// Status represents the states a feasibility session can be in.
type Status string

const (
	StatusAwaiting   Status = "AWAITING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInfeasible Status = "INFEASIBLE"
)

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusInfeasible
}

// Verdict is the latest answer a session's periodic evaluation produced.
// It is what the fast read path serves: schedulers poll verdicts, they never
// call into a live Model.
type Verdict struct {
	SessionID     string    `json:"session_id"`
	Status        Status    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	BatterySOC    float64   `json:"battery_soc"`
	FinishTime    time.Time `json:"finish_time"`
	EarliestStart time.Time `json:"earliest_start"`
	Evaluations   int       `json:"evaluations"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionRecord is the durable description of a feasibility session, written
// once at creation and updated on terminal transitions.
type SessionRecord struct {
	ID            string        `json:"id"`
	Robot         string        `json:"robot"`
	CorrelationID string        `json:"correlation_id"`
	InitialWait   time.Duration `json:"initial_wait"`
	Timeout       time.Duration `json:"timeout"`
	DrainBattery  bool          `json:"drain_battery"`
	ThresholdSOC  float64       `json:"threshold_soc"`
	StartSOC      float64       `json:"start_soc"`
	StartTime     time.Time     `json:"start_time"`
	EarliestStart time.Time     `json:"earliest_start"`
	Status        Status        `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// EvaluationRecord is the audit row for a single feasibility query.
type EvaluationRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Seq         int       `json:"seq"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	BatterySOC  float64   `json:"battery_soc"`
	FinishTime  time.Time `json:"finish_time"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
