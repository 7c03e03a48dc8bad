package fleet

import (
	"errors"
	"fmt"
	"time"
)

// Failure reason labels, shared by verdicts, audit rows, and metrics.
const (
	ReasonTimeout         = "timeout"
	ReasonBatteryDepleted = "battery_depleted"
	ReasonBelowThreshold  = "below_threshold"
	ReasonUnknown         = "unknown"
)

// TimeoutError is returned when the time since the last confirmation request
// exceeds the step's timeout ceiling.
type TimeoutError struct {
	Elapsed time.Duration
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("confirmation timed out: %s since last request exceeds the %s ceiling", e.Elapsed, e.Timeout)
}

// BatteryDepletedError is returned when a projected state of charge goes
// negative, meaning the robot would die before the step completes.
type BatteryDepletedError struct {
	SOC float64
}

func (e *BatteryDepletedError) Error() string {
	return fmt.Sprintf("battery depleted: projected state of charge %.4f is negative", e.SOC)
}

// BelowThresholdError is returned when a projected state of charge lands at
// or below the fleet's failure threshold.
type BelowThresholdError struct {
	SOC       float64
	Threshold float64
}

func (e *BelowThresholdError) Error() string {
	return fmt.Sprintf("battery too low: projected state of charge %.4f is at or below the %.4f threshold", e.SOC, e.Threshold)
}

// SessionNotFoundError is returned when a session ID does not exist.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// FailureReason maps an estimation error to its stable reason label.
func FailureReason(err error) string {
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return ReasonTimeout
	}
	var depleted *BatteryDepletedError
	if errors.As(err, &depleted) {
		return ReasonBatteryDepleted
	}
	var below *BelowThresholdError
	if errors.As(err, &below) {
		return ReasonBelowThreshold
	}
	return ReasonUnknown
}
