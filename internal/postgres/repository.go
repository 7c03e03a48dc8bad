package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

// SessionRepository abstracts the durable audit trail: sessions are written
// once at creation and stamped on terminal transitions, evaluations are
// appended per feasibility query. Nothing on the hot path reads from here.
type SessionRepository interface {
	CreateSession(ctx context.Context, record *fleet.SessionRecord) error
	UpdateSessionStatus(ctx context.Context, id string, status fleet.Status, reason string) error
	RecordEvaluation(ctx context.Context, eval *fleet.EvaluationRecord) error
	GetSession(ctx context.Context, id string) (*fleet.SessionRecord, error)
	ListSessionsByStatus(ctx context.Context, status fleet.Status, limit int) ([]*fleet.SessionRecord, error)
	ListEvaluations(ctx context.Context, sessionID string, limit int) ([]*fleet.EvaluationRecord, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pgxpool with the SessionRepository interface.
func NewRepository(pool *pgxpool.Pool) SessionRepository {
	return &repository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func (r *repository) CreateSession(ctx context.Context, record *fleet.SessionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions
			(id, robot, correlation_id, initial_wait_ms, timeout_ms, drain_battery,
			 threshold_soc, start_soc, start_time, earliest_start, status, reason,
			 created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		record.ID, record.Robot, record.CorrelationID,
		record.InitialWait.Milliseconds(), record.Timeout.Milliseconds(),
		record.DrainBattery, record.ThresholdSOC, record.StartSOC,
		record.StartTime, record.EarliestStart,
		string(record.Status), record.Reason,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", record.ID, err)
	}
	return nil
}

func (r *repository) UpdateSessionStatus(ctx context.Context, id string, status fleet.Status, reason string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET status = $1, reason = $2, updated_at = $3
		WHERE id = $4
	`, string(status), reason, now, id)
	if err != nil {
		return fmt.Errorf("update status for session %s: %w", id, err)
	}
	return nil
}

func (r *repository) RecordEvaluation(ctx context.Context, eval *fleet.EvaluationRecord) error {
	if eval.ID == "" {
		eval.ID = uuid.New().String()
	}
	if eval.EvaluatedAt.IsZero() {
		eval.EvaluatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO evaluations
			(id, session_id, seq, status, reason, battery_soc, finish_time, evaluated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		eval.ID, eval.SessionID, eval.Seq,
		string(eval.Status), eval.Reason, eval.BatterySOC,
		eval.FinishTime, eval.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("record evaluation for session %s: %w", eval.SessionID, err)
	}
	return nil
}

func (r *repository) GetSession(ctx context.Context, id string) (*fleet.SessionRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, robot, correlation_id, initial_wait_ms, timeout_ms, drain_battery,
		       threshold_soc, start_soc, start_time, earliest_start, status, reason,
		       created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id)

	record, err := scanSession(row)
	if err != nil {
		var notFound *fleet.SessionNotFoundError
		if errors.As(err, &notFound) {
			return nil, &fleet.SessionNotFoundError{SessionID: id}
		}
		return nil, err
	}
	return record, nil
}

func (r *repository) ListSessionsByStatus(ctx context.Context, status fleet.Status, limit int) ([]*fleet.SessionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, robot, correlation_id, initial_wait_ms, timeout_ms, drain_battery,
		       threshold_soc, start_soc, start_time, earliest_start, status, reason,
		       created_at, updated_at
		FROM sessions
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions by status %s: %w", status, err)
	}
	defer rows.Close()

	var records []*fleet.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *repository) ListEvaluations(ctx context.Context, sessionID string, limit int) ([]*fleet.EvaluationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, seq, status, reason, battery_soc, finish_time, evaluated_at
		FROM evaluations
		WHERE session_id = $1
		ORDER BY seq ASC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluations for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var evals []*fleet.EvaluationRecord
	for rows.Next() {
		var eval fleet.EvaluationRecord
		var statusStr string
		if err := rows.Scan(
			&eval.ID, &eval.SessionID, &eval.Seq, &statusStr,
			&eval.Reason, &eval.BatterySOC, &eval.FinishTime, &eval.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		eval.Status = fleet.Status(statusStr)
		evals = append(evals, &eval)
	}
	return evals, rows.Err()
}

// scanSession reads a session row from any pgx row type.
func scanSession(row interface {
	Scan(...any) error
}) (*fleet.SessionRecord, error) {
	var record fleet.SessionRecord
	var statusStr string
	var initialWaitMs, timeoutMs int64
	err := row.Scan(
		&record.ID, &record.Robot, &record.CorrelationID,
		&initialWaitMs, &timeoutMs, &record.DrainBattery,
		&record.ThresholdSOC, &record.StartSOC,
		&record.StartTime, &record.EarliestStart,
		&statusStr, &record.Reason,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &fleet.SessionNotFoundError{SessionID: "unknown"}
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	record.Status = fleet.Status(statusStr)
	record.InitialWait = time.Duration(initialWaitMs) * time.Millisecond
	record.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return &record, nil
}
