package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

const (
	// Session configuration stays queryable for a day.
	metaTTL = 24 * time.Hour
	// Verdicts are rewritten every evaluation cycle; a stale one is
	// worthless once the fleet has moved on.
	verdictTTL = 6 * time.Hour
)

func verdictKey(sessionID string) string { return "session:verdict:" + sessionID }
func metaKey(sessionID string) string    { return "session:meta:" + sessionID }

// VerdictStore is the fast read path for feasibility sessions: the evaluator
// writes every cycle's verdict here, and scheduler polls are served straight
// from Redis without ever touching a live model.
type VerdictStore interface {
	SetVerdict(ctx context.Context, verdict *fleet.Verdict) error
	GetVerdict(ctx context.Context, sessionID string) (*fleet.Verdict, error)
	SetSessionMeta(ctx context.Context, record *fleet.SessionRecord) error
	GetSessionMeta(ctx context.Context, sessionID string) (*fleet.SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
}

type verdictStore struct {
	client *redis.Client
}

// NewVerdictStore creates a Redis-backed VerdictStore.
func NewVerdictStore(client *redis.Client) VerdictStore {
	return &verdictStore{client: client}
}

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func (s *verdictStore) SetVerdict(ctx context.Context, verdict *fleet.Verdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	err = s.client.Set(ctx, verdictKey(verdict.SessionID), data, verdictTTL).Err()
	if err != nil {
		return fmt.Errorf("redis set verdict for %s: %w", verdict.SessionID, err)
	}
	return nil
}

func (s *verdictStore) GetVerdict(ctx context.Context, sessionID string) (*fleet.Verdict, error) {
	data, err := s.client.Get(ctx, verdictKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &fleet.SessionNotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("redis get verdict for %s: %w", sessionID, err)
	}
	var verdict fleet.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return &verdict, nil
}

func (s *verdictStore) SetSessionMeta(ctx context.Context, record *fleet.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}
	err = s.client.Set(ctx, metaKey(record.ID), data, metaTTL).Err()
	if err != nil {
		return fmt.Errorf("redis set meta for %s: %w", record.ID, err)
	}
	return nil
}

func (s *verdictStore) GetSessionMeta(ctx context.Context, sessionID string) (*fleet.SessionRecord, error) {
	data, err := s.client.Get(ctx, metaKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &fleet.SessionNotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("redis get meta for %s: %w", sessionID, err)
	}
	var record fleet.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session meta: %w", err)
	}
	return &record, nil
}

// Delete clears both the verdict and the meta for a disposed session.
func (s *verdictStore) Delete(ctx context.Context, sessionID string) error {
	err := s.client.Del(ctx, verdictKey(sessionID), metaKey(sessionID)).Err()
	if err != nil {
		return fmt.Errorf("redis delete session %s: %w", sessionID, err)
	}
	return nil
}
