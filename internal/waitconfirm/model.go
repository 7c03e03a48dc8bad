package waitconfirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/universal-field-robots/rmf-task/internal/confirm"
	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

// Model is one live confirmation-wait estimation. It owns a correlation
// token for its lifetime; the first request and every re-request carry the
// same token, and only a confirmation echoing that token counts.
//
// Confirmations arrive on the Source's delivery goroutine while the
// evaluator calls EstimateFinish from its own; the mutex is the
// happens-before edge between them.
type Model struct {
	invariantFinishState fleet.State
	invariantDrain       float64
	waitQuantum          time.Duration
	timeout              time.Duration

	token  string
	source confirm.Source
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	confirmed   bool
	confirmedAt time.Time
	lastRequest time.Time
	closed      bool
	unwatch     func()
}

func newModel(ctx context.Context, d *Description, invariantInitialState fleet.State, params fleet.Parameters) (*Model, error) {
	if params.Confirmations == nil {
		return nil, errors.New("waitconfirm: Parameters.Confirmations is required")
	}

	m := &Model{
		invariantFinishState: invariantInitialState,
		waitQuantum:          d.initialWait,
		timeout:              d.timeout,
		token:                uuid.New().String(),
		source:               params.Confirmations,
		now:                  d.now,
		logger:               d.logger,
	}

	if params.PowerSink != nil {
		// Handle cases where the duration is invalid.
		wait := d.initialWait
		if wait < 0 {
			wait = 0
		}
		m.invariantDrain = params.PowerSink.ChargeDelta(wait)
	}

	// Watch before the first request so a same-instant answer cannot slip by.
	unwatch, err := params.Confirmations.Watch(m.token, m.confirm)
	if err != nil {
		return nil, fmt.Errorf("watch confirmation token %s: %w", m.token, err)
	}
	m.unwatch = unwatch

	m.requestConfirmation(ctx)

	m.logger.Info("confirmation requested",
		slog.String("correlation_id", m.token),
		slog.Duration("wait_quantum", m.waitQuantum),
		slog.Duration("timeout", m.timeout),
	)
	return m, nil
}

// CorrelationID returns the token confirmations must echo.
func (m *Model) CorrelationID() string { return m.token }

// confirm is invoked by the Source when our token's confirmation arrives.
// First answer wins; repeats change nothing.
func (m *Model) confirm(arrivedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmed {
		return
	}
	m.confirmed = true
	m.confirmedAt = arrivedAt
	m.logger.Info("confirmation received", slog.String("correlation_id", m.token))
}

// requestConfirmation (re-)publishes the token and refreshes the request
// time. A publish failure is not fatal: the next evaluation retries, and the
// timeout ceiling keeps an unreachable channel from waiting forever.
func (m *Model) requestConfirmation(ctx context.Context) {
	if err := m.source.Request(ctx, m.token); err != nil {
		m.logger.Warn("confirmation request failed",
			slog.String("correlation_id", m.token),
			slog.String("error", err.Error()),
		)
	}
	m.mu.Lock()
	m.lastRequest = m.now()
	m.mu.Unlock()
}

// EstimateFinish projects one more evaluation cycle.
//
// While unconfirmed, each call models the robot waiting one more quantum:
// the projected time advances, the confirmation is re-requested under the
// same token, and the quantum's battery cost is applied. Once the wait has
// outlived the timeout ceiling the candidate is dead. Once confirmed, the
// step finishes where it stands with no further waiting.
func (m *Model) EstimateFinish(ctx context.Context, state fleet.State, earliestArrival time.Time, constraints fleet.Constraints) (*fleet.Estimate, error) {
	m.mu.Lock()
	confirmed := m.confirmed
	lastRequest := m.lastRequest
	m.mu.Unlock()

	if !confirmed {
		elapsed := m.now().Sub(lastRequest)
		if elapsed > m.timeout {
			m.logger.Warn("confirmation timed out",
				slog.String("correlation_id", m.token),
				slog.Duration("elapsed", elapsed),
				slog.Duration("timeout", m.timeout),
			)
			return nil, &fleet.TimeoutError{Elapsed: elapsed, Timeout: m.timeout}
		}

		// Still waiting: the candidate spends one more quantum in place.
		state.Time = state.Time.Add(m.waitQuantum)

		m.requestConfirmation(ctx)

		if constraints.DrainBattery {
			soc := state.BatterySOC - m.invariantDrain
			if soc < 0 {
				m.logger.Warn("battery depleted while waiting for confirmation",
					slog.String("correlation_id", m.token),
					slog.Float64("projected_soc", soc),
				)
				return nil, &fleet.BatteryDepletedError{SOC: soc}
			}
			state.BatterySOC = soc
		}

		if state.BatterySOC <= constraints.ThresholdSOC {
			m.logger.Warn("battery below threshold while waiting for confirmation",
				slog.String("correlation_id", m.token),
				slog.Float64("projected_soc", state.BatterySOC),
				slog.Float64("threshold_soc", constraints.ThresholdSOC),
			)
			return nil, &fleet.BelowThresholdError{SOC: state.BatterySOC, Threshold: constraints.ThresholdSOC}
		}

		return &fleet.Estimate{FinishState: state, EarliestStart: earliestArrival}, nil
	}

	// Confirmed: the step ends where it stands, no further waiting. The
	// final cycle's cost still applies.
	if constraints.DrainBattery {
		soc := state.BatterySOC - m.invariantDrain
		if soc < 0 {
			m.logger.Warn("battery depleted upon confirmation",
				slog.String("correlation_id", m.token),
				slog.Float64("projected_soc", soc),
			)
			return nil, &fleet.BatteryDepletedError{SOC: soc}
		}
		state.BatterySOC = soc
	}

	if state.BatterySOC <= constraints.ThresholdSOC {
		m.logger.Warn("battery below threshold upon confirmation",
			slog.String("correlation_id", m.token),
			slog.Float64("projected_soc", state.BatterySOC),
			slog.Float64("threshold_soc", constraints.ThresholdSOC),
		)
		return nil, &fleet.BelowThresholdError{SOC: state.BatterySOC, Threshold: constraints.ThresholdSOC}
	}

	return &fleet.Estimate{FinishState: state, EarliestStart: state.Time}, nil
}

// InvariantDuration is one wait quantum until confirmation arrives, then
// zero: a confirmed step has no mandatory time left.
func (m *Model) InvariantDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmed {
		return 0
	}
	return m.waitQuantum
}

// InvariantFinishState returns the state the Model was built from.
func (m *Model) InvariantFinishState() fleet.State {
	return m.invariantFinishState
}

// ConfirmedAt reports when the confirmation arrived, if it has.
func (m *Model) ConfirmedAt() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmedAt, m.confirmed
}

// Close drops the confirmation watcher. Safe to call repeatedly. The
// watcher cancel runs outside the model lock so a concurrent delivery can
// never deadlock against it.
func (m *Model) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	unwatch := m.unwatch
	m.unwatch = nil
	m.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	return nil
}

var _ fleet.Model = (*Model)(nil)
