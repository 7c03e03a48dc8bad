// Package handler exposes the estimator over HTTP: opening sessions,
// polling verdicts, delivering local confirmations, and disposing of
// sessions the fleet no longer cares about.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
	redisstore "github.com/universal-field-robots/rmf-task/internal/redis"
	"github.com/universal-field-robots/rmf-task/pkg/telemetry"
	"github.com/universal-field-robots/rmf-task/services/estimator"
)

// SessionService is the slice of the estimator the API needs.
type SessionService interface {
	CreateSession(ctx context.Context, p estimator.CreateParams) (*estimator.Session, error)
	Lookup(ctx context.Context, id string) (*fleet.SessionRecord, *fleet.Verdict, error)
	Confirm(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// REST handles the session lifecycle endpoints.
type REST struct {
	svc     SessionService
	store   redisstore.VerdictStore
	limiter redisstore.RateLimiter
	logger  *slog.Logger
}

// NewREST creates a REST handler.
func NewREST(svc SessionService, store redisstore.VerdictStore, limiter redisstore.RateLimiter, logger *slog.Logger) *REST {
	return &REST{svc: svc, store: store, limiter: limiter, logger: logger}
}

type createSessionRequest struct {
	Robot      string  `json:"robot"`
	BatterySOC float64 `json:"battery_soc"`

	// Durations travel as Go duration strings ("5s", "1m30s"). Empty
	// means the fleet default.
	InitialWait string `json:"initial_wait,omitempty"`
	Timeout     string `json:"timeout,omitempty"`

	StateTime     *time.Time `json:"state_time,omitempty"`
	EarliestStart *time.Time `json:"earliest_start,omitempty"`

	// drain_battery and threshold_soc travel together; omitting both
	// applies the fleet defaults.
	DrainBattery *bool    `json:"drain_battery,omitempty"`
	ThresholdSOC *float64 `json:"threshold_soc,omitempty"`

	Priority  int  `json:"priority,omitempty"`
	Automatic bool `json:"automatic,omitempty"`
}

type createSessionResponse struct {
	SessionID     string    `json:"session_id"`
	CorrelationID string    `json:"correlation_id"`
	Status        string    `json:"status"`
	InitialWait   string    `json:"initial_wait"`
	Timeout       string    `json:"timeout"`
	CreatedAt     time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID     string    `json:"session_id"`
	Robot         string    `json:"robot"`
	CorrelationID string    `json:"correlation_id"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	BatterySOC    float64   `json:"battery_soc"`
	FinishTime    time.Time `json:"finish_time"`
	EarliestStart time.Time `json:"earliest_start"`
	Evaluations   int       `json:"evaluations"`
	InitialWait   string    `json:"initial_wait"`
	Timeout       string    `json:"timeout"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateSession handles POST /api/v1/sessions.
func (h *REST) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Robot == "" {
		writeError(w, http.StatusBadRequest, "robot is required")
		return
	}
	if req.BatterySOC <= 0 || req.BatterySOC > 1 {
		writeError(w, http.StatusBadRequest, "battery_soc must be in (0, 1]")
		return
	}

	params := estimator.CreateParams{
		Robot:     req.Robot,
		State:     fleet.State{BatterySOC: req.BatterySOC},
		Priority:  req.Priority,
		Automatic: req.Automatic,
	}
	if req.StateTime != nil {
		params.State.Time = *req.StateTime
	}
	if req.EarliestStart != nil {
		params.EarliestStart = *req.EarliestStart
	}
	if req.InitialWait != "" {
		d, err := time.ParseDuration(req.InitialWait)
		if err != nil {
			writeError(w, http.StatusBadRequest, "initial_wait is not a valid duration")
			return
		}
		params.Wait = d
	}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timeout is not a valid duration")
			return
		}
		params.Timeout = d
	}
	if req.DrainBattery != nil || req.ThresholdSOC != nil {
		c := fleet.Constraints{}
		if req.DrainBattery != nil {
			c.DrainBattery = *req.DrainBattery
		}
		if req.ThresholdSOC != nil {
			if *req.ThresholdSOC < 0 || *req.ThresholdSOC >= 1 {
				writeError(w, http.StatusBadRequest, "threshold_soc must be in [0, 1)")
				return
			}
			c.ThresholdSOC = *req.ThresholdSOC
		}
		params.Constraints = &c
	}

	allowed, err := h.limiter.Allow(r.Context(), req.Robot)
	if err != nil {
		// Fail open: a Redis hiccup should not ground the fleet.
		h.logger.Error("rate limiter check failed",
			slog.String("robot", req.Robot),
			slog.String("error", err.Error()))
	} else if !allowed {
		telemetry.APIRateLimitedTotal.Inc()
		h.logger.Warn("session creation rate limited", slog.String("robot", req.Robot))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.limiter.Limit()))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), params)
	if err != nil {
		h.logger.Error("failed to create session",
			slog.String("robot", req.Robot),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	telemetry.APISessionsCreated.WithLabelValues(strconv.FormatBool(req.Automatic)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createSessionResponse{
		SessionID:     sess.ID,
		CorrelationID: sess.CorrelationID,
		Status:        string(sess.Status),
		InitialWait:   sess.InitialWait.String(),
		Timeout:       sess.Timeout.String(),
		CreatedAt:     sess.CreatedAt,
	})
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *REST) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, verdict, err := h.svc.Lookup(r.Context(), id)
	if err != nil {
		var notFound *fleet.SessionNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to look up session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to look up session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sessionResponse{
		SessionID:     record.ID,
		Robot:         record.Robot,
		CorrelationID: record.CorrelationID,
		Status:        string(verdict.Status),
		Reason:        verdict.Reason,
		BatterySOC:    verdict.BatterySOC,
		FinishTime:    verdict.FinishTime,
		EarliestStart: verdict.EarliestStart,
		Evaluations:   verdict.Evaluations,
		InitialWait:   record.InitialWait.String(),
		Timeout:       record.Timeout.String(),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     verdict.UpdatedAt,
	})
}

// ConfirmSession handles POST /api/v1/sessions/{id}/confirm. The
// confirmation is routed to the model; the next evaluation cycle
// finalizes the verdict.
func (h *REST) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.svc.Confirm(r.Context(), id)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"session_id": id,
			"status":     "confirmation delivered",
		})
	case errors.Is(err, estimator.ErrConfirmNotSupported):
		writeError(w, http.StatusConflict, "confirmations are not accepted over this API")
	default:
		var notFound *fleet.SessionNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to confirm session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to confirm session")
	}
}

// RemoveSession handles DELETE /api/v1/sessions/{id}.
func (h *REST) RemoveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Remove(r.Context(), id); err != nil {
		var notFound *fleet.SessionNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to remove session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to remove session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Healthz is a liveness probe.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readyz is a readiness probe: it verifies the Redis round trip works.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	_, err := h.store.GetVerdict(r.Context(), "__readyz__")
	if err != nil {
		var notFound *fleet.SessionNotFoundError
		if !errors.As(err, &notFound) {
			writeError(w, http.StatusServiceUnavailable, "redis not reachable")
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
