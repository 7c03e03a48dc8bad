// Package estimator runs wait-for-confirmation sessions: it opens a model
// per booking, re-evaluates every live model on a fixed cadence, and
// publishes the resulting verdicts to Redis (hot reads) and Postgres
// (durable audit trail).
package estimator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/universal-field-robots/rmf-task/internal/confirm"
	"github.com/universal-field-robots/rmf-task/internal/fleet"
	"github.com/universal-field-robots/rmf-task/internal/postgres"
	"github.com/universal-field-robots/rmf-task/internal/power"
	redisstore "github.com/universal-field-robots/rmf-task/internal/redis"
	"github.com/universal-field-robots/rmf-task/internal/waitconfirm"
	"github.com/universal-field-robots/rmf-task/pkg/telemetry"
)

// ErrConfirmNotSupported is returned by Confirm when the service has no
// confirmation path to inject into (auto mode confirms everything
// already).
var ErrConfirmNotSupported = errors.New("manual confirmation is not supported in this mode")

// CreateParams is everything a caller may choose when opening a session.
// Zero values fall back to the service-wide defaults.
type CreateParams struct {
	Robot         string
	State         fleet.State
	EarliestStart time.Time
	Wait          time.Duration
	Timeout       time.Duration
	Constraints   *fleet.Constraints
	Priority      int
	Automatic     bool
}

// Service owns the live session set and the evaluation loop.
type Service struct {
	store  redisstore.VerdictStore
	repo   postgres.SessionRepository
	source confirm.Source

	sink      power.Sink
	confirmFn func(ctx context.Context, token string) error

	evalInterval   time.Duration
	defaultWait    time.Duration
	defaultTimeout time.Duration
	defaults       fleet.Constraints
	retention      time.Duration
	reapSchedule   string

	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	reapCh   chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithEvalInterval sets the cadence of the evaluation loop.
func WithEvalInterval(d time.Duration) Option {
	return func(s *Service) { s.evalInterval = d }
}

// WithDefaultDurations sets the wait quantum and timeout used when a
// create request leaves them unset.
func WithDefaultDurations(wait, timeout time.Duration) Option {
	return func(s *Service) {
		s.defaultWait = wait
		s.defaultTimeout = timeout
	}
}

// WithConstraints sets the default battery constraints.
func WithConstraints(c fleet.Constraints) Option {
	return func(s *Service) { s.defaults = c }
}

// WithPowerSink sets the fleet-wide power model charged for waiting.
func WithPowerSink(sink power.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithConfirmFn installs a local confirmation path used by Confirm.
func WithConfirmFn(fn func(ctx context.Context, token string) error) Option {
	return func(s *Service) { s.confirmFn = fn }
}

// WithRetention sets how long terminal sessions stay resident before the
// reaper drops them.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// WithReapSchedule sets the cron expression driving the reaper. An empty
// expression disables reaping.
func WithReapSchedule(expr string) Option {
	return func(s *Service) { s.reapSchedule = expr }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service with sane defaults applied.
func NewService(store redisstore.VerdictStore, repo postgres.SessionRepository, source confirm.Source, opts ...Option) *Service {
	s := &Service{
		store:          store,
		repo:           repo,
		source:         source,
		evalInterval:   time.Second,
		defaultWait:    5 * time.Second,
		defaultTimeout: 30 * time.Second,
		defaults:       fleet.Constraints{DrainBattery: true, ThresholdSOC: 0.1},
		retention:      time.Hour,
		reapSchedule:   "*/5 * * * *",
		logger:         slog.Default(),
		now:            time.Now,
		sessions:       make(map[string]*Session),
		reapCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a confirmation-wait session for one booking: builds
// the model, requests confirmation, and registers the session with the
// evaluation loop. The Redis write is load-bearing (status reads depend on
// it); the Postgres write is best-effort audit.
func (s *Service) CreateSession(ctx context.Context, p CreateParams) (*Session, error) {
	now := s.now()

	wait := p.Wait
	if wait == 0 {
		wait = s.defaultWait
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = s.defaultTimeout
	}
	constraints := s.defaults
	if p.Constraints != nil {
		constraints = *p.Constraints
	}
	state := p.State
	if state.Time.IsZero() {
		state.Time = now
	}
	earliest := p.EarliestStart
	if earliest.IsZero() {
		earliest = state.Time
	}

	booking := fleet.Booking{
		ID:            uuid.New().String(),
		Requester:     p.Robot,
		RequestTime:   now,
		EarliestStart: earliest,
		Priority:      p.Priority,
		Automatic:     p.Automatic,
	}

	desc := waitconfirm.Make(wait, timeout,
		waitconfirm.WithClock(s.now),
		waitconfirm.WithLogger(s.logger),
	)
	model, err := desc.MakeModel(ctx, state, fleet.Parameters{
		PowerSink:     s.sink,
		Confirmations: s.source,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build confirmation model: %w", err)
	}

	sess := &Session{
		ID:          uuid.New().String(),
		Booking:     booking,
		InitialWait: wait,
		Timeout:     timeout,
		Constraints: constraints,
		Model:       model,
		Start:       state,
		Current:     state,
		Status:      fleet.StatusAwaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if wc, ok := model.(*waitconfirm.Model); ok {
		sess.CorrelationID = wc.CorrelationID()
	}

	if err := s.store.SetSessionMeta(ctx, sess.Record()); err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("failed to store session meta: %w", err)
	}
	if err := s.store.SetVerdict(ctx, s.verdict(sess)); err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("failed to store initial verdict: %w", err)
	}

	// Non-fatal: Redis is the primary read path, Postgres is audit.
	if err := s.repo.CreateSession(ctx, sess.Record()); err != nil {
		s.logger.Error("failed to persist session",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session opened",
		slog.String("session_id", sess.ID),
		slog.String("robot", p.Robot),
		slog.String("correlation_id", sess.CorrelationID),
		slog.Duration("wait", wait),
		slog.Duration("timeout", timeout))
	return sess, nil
}

// Lookup returns the durable description of a session and its latest
// verdict. Redis answers first; Postgres backfills anything Redis has
// already expired.
func (s *Service) Lookup(ctx context.Context, id string) (*fleet.SessionRecord, *fleet.Verdict, error) {
	var notFound *fleet.SessionNotFoundError

	record, err := s.store.GetSessionMeta(ctx, id)
	if err != nil {
		if !errors.As(err, &notFound) {
			return nil, nil, err
		}
		record, err = s.repo.GetSession(ctx, id)
		if err != nil {
			return nil, nil, err
		}
	}

	verdict, err := s.store.GetVerdict(ctx, id)
	if err != nil {
		if !errors.As(err, &notFound) {
			return nil, nil, err
		}
		// Synthesize from the durable record; evaluation counters are
		// gone once the hot copy expires.
		verdict = &fleet.Verdict{
			SessionID: record.ID,
			Status:    record.Status,
			Reason:    record.Reason,
			UpdatedAt: record.UpdatedAt,
		}
	}
	return record, verdict, nil
}

// Confirm injects a confirmation for the given session through the
// configured path: published on the response topic in kafka mode,
// dispatched in-process in manual mode. Returns ErrConfirmNotSupported
// when no path is wired.
func (s *Service) Confirm(ctx context.Context, id string) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return &fleet.SessionNotFoundError{SessionID: id}
	}
	if s.confirmFn == nil {
		return ErrConfirmNotSupported
	}
	return s.confirmFn(ctx, sess.CorrelationID)
}

// Remove drops a session from the live set and releases its model. The
// durable audit trail is left in place.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return &fleet.SessionNotFoundError{SessionID: id}
	}

	_ = sess.Model.Close()
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete session state",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
	s.logger.Info("session removed", slog.String("session_id", id))
	return nil
}

// Run drives the evaluation loop until ctx is cancelled. Every session is
// evaluated once per interval; the reaper fires on its cron schedule but
// executes here, so session state is only ever mutated from this
// goroutine.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("estimator started",
		slog.Duration("eval_interval", s.evalInterval),
		slog.String("reap_schedule", s.reapSchedule))

	if s.reapSchedule != "" {
		reaper := cron.New()
		_, err := reaper.AddFunc(s.reapSchedule, func() {
			select {
			case s.reapCh <- struct{}{}:
			default:
			}
		})
		if err != nil {
			s.logger.Error("invalid reap schedule, reaping disabled",
				slog.String("schedule", s.reapSchedule),
				slog.String("error", err.Error()))
		} else {
			reaper.Start()
			defer reaper.Stop()
		}
	}

	ticker := time.NewTicker(s.evalInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("estimator stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.reapCh:
			s.reap(ctx)
		}
	}
}

// tick evaluates every non-terminal session once.
func (s *Service) tick(ctx context.Context) {
	s.mu.RLock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !sess.Status.IsTerminal() {
			live = append(live, sess)
		}
	}
	s.mu.RUnlock()

	telemetry.EstimatorSessionsLive.Set(float64(len(live)))

	for _, sess := range live {
		s.evaluate(ctx, sess)
	}
}

// evaluate runs one estimation step for a session and records the outcome.
func (s *Service) evaluate(ctx context.Context, sess *Session) {
	tracer := otel.Tracer("estimator")
	ctx, span := tracer.Start(ctx, "estimator.evaluate_session",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("session.id", sess.ID),
			attribute.String("session.robot", sess.Booking.Requester),
			attribute.Int("session.evaluations", sess.Evaluations),
		))
	defer span.End()

	log := s.logger.With(
		slog.String("session_id", sess.ID),
		slog.String("robot", sess.Booking.Requester))

	est, evalErr := sess.Model.EstimateFinish(ctx, sess.Current, sess.Booking.EarliestStart, sess.Constraints)

	now := s.now()
	sess.Evaluations++
	sess.UpdatedAt = now

	verdict := &fleet.Verdict{
		SessionID:   sess.ID,
		Evaluations: sess.Evaluations,
		UpdatedAt:   now,
	}

	if evalErr != nil {
		reason := fleet.FailureReason(evalErr)
		sess.Status = fleet.StatusInfeasible
		sess.Reason = reason
		_ = sess.Model.Close()

		span.RecordError(evalErr)
		span.SetStatus(codes.Error, "session infeasible")
		telemetry.EstimatorEvaluationsTotal.WithLabelValues(reason).Inc()
		log.Warn("session infeasible",
			slog.String("reason", reason),
			slog.Int("evaluations", sess.Evaluations),
			slog.String("error", evalErr.Error()))

		verdict.Status = fleet.StatusInfeasible
		verdict.Reason = reason
		verdict.BatterySOC = sess.Current.BatterySOC
		verdict.FinishTime = sess.Current.Time
	} else {
		sess.Current = est.FinishState
		if sess.Model.InvariantDuration() == 0 {
			sess.Status = fleet.StatusConfirmed
			_ = sess.Model.Close()

			telemetry.EstimatorEvaluationsTotal.WithLabelValues("confirmed").Inc()
			telemetry.EstimatorConfirmationLatency.Observe(now.Sub(sess.CreatedAt).Seconds())
			log.Info("session confirmed",
				slog.Int("evaluations", sess.Evaluations),
				slog.Time("finish", est.FinishState.Time))
		} else {
			telemetry.EstimatorEvaluationsTotal.WithLabelValues("awaiting").Inc()
		}

		verdict.Status = sess.Status
		verdict.BatterySOC = est.FinishState.BatterySOC
		verdict.FinishTime = est.FinishState.Time
		verdict.EarliestStart = est.EarliestStart
	}

	if err := s.store.SetVerdict(ctx, verdict); err != nil {
		log.Error("failed to write verdict", slog.String("error", err.Error()))
	}
	if err := s.repo.RecordEvaluation(ctx, &fleet.EvaluationRecord{
		SessionID:   sess.ID,
		Seq:         sess.Evaluations,
		Status:      verdict.Status,
		Reason:      verdict.Reason,
		BatterySOC:  verdict.BatterySOC,
		FinishTime:  verdict.FinishTime,
		EvaluatedAt: now,
	}); err != nil {
		log.Error("failed to record evaluation", slog.String("error", err.Error()))
	}

	if sess.Status.IsTerminal() {
		if err := s.repo.UpdateSessionStatus(ctx, sess.ID, sess.Status, sess.Reason); err != nil {
			log.Error("failed to update session status", slog.String("error", err.Error()))
		}
		if err := s.store.SetSessionMeta(ctx, sess.Record()); err != nil {
			log.Error("failed to refresh session meta", slog.String("error", err.Error()))
		}
	}
}

// verdict snapshots a session into its externally visible form.
func (s *Service) verdict(sess *Session) *fleet.Verdict {
	return &fleet.Verdict{
		SessionID:   sess.ID,
		Status:      sess.Status,
		Reason:      sess.Reason,
		BatterySOC:  sess.Current.BatterySOC,
		FinishTime:  sess.Current.Time,
		Evaluations: sess.Evaluations,
		UpdatedAt:   sess.UpdatedAt,
	}
}

// reap drops terminal sessions whose last update is older than the
// retention window. Redis copies are left to their TTLs; Postgres keeps
// the audit trail forever.
func (s *Service) reap(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	var victims []*Session
	for id, sess := range s.sessions {
		if sess.Status.IsTerminal() && sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			victims = append(victims, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range victims {
		_ = sess.Model.Close()
		telemetry.EstimatorSessionsReaped.Inc()
	}
	if len(victims) > 0 {
		s.logger.Info("reaped terminal sessions", slog.Int("count", len(victims)))
	}
}
