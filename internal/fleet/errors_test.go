package fleet_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

func TestTimeoutError(t *testing.T) {
	err := &fleet.TimeoutError{Elapsed: 25 * time.Second, Timeout: 20 * time.Second}
	msg := err.Error()
	if !strings.Contains(msg, "25s") {
		t.Errorf("error message should contain elapsed time, got: %q", msg)
	}
	if !strings.Contains(msg, "20s") {
		t.Errorf("error message should contain timeout ceiling, got: %q", msg)
	}
}

func TestBatteryDepletedError(t *testing.T) {
	err := &fleet.BatteryDepletedError{SOC: -0.02}
	if !strings.Contains(err.Error(), "-0.0200") {
		t.Errorf("error message should contain projected SOC, got: %q", err.Error())
	}
}

func TestBelowThresholdError(t *testing.T) {
	err := &fleet.BelowThresholdError{SOC: 0.09, Threshold: 0.1}
	msg := err.Error()
	if !strings.Contains(msg, "0.0900") {
		t.Errorf("error message should contain projected SOC, got: %q", msg)
	}
	if !strings.Contains(msg, "0.1000") {
		t.Errorf("error message should contain threshold, got: %q", msg)
	}
}

func TestSessionNotFoundError(t *testing.T) {
	err := &fleet.SessionNotFoundError{SessionID: "abc-123"}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("error message should contain session ID, got: %q", err.Error())
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &fleet.TimeoutError{}, fleet.ReasonTimeout},
		{"battery depleted", &fleet.BatteryDepletedError{}, fleet.ReasonBatteryDepleted},
		{"below threshold", &fleet.BelowThresholdError{}, fleet.ReasonBelowThreshold},
		{"wrapped timeout", fmt.Errorf("evaluate: %w", &fleet.TimeoutError{}), fleet.ReasonTimeout},
		{"unrelated", errors.New("boom"), fleet.ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fleet.FailureReason(tt.err); got != tt.want {
				t.Errorf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	// Compile-time interface checks via assignment to error variables.
	var _ error = &fleet.TimeoutError{}
	var _ error = &fleet.BatteryDepletedError{}
	var _ error = &fleet.BelowThresholdError{}
	var _ error = &fleet.SessionNotFoundError{}
}
