package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

func newTestStore(t *testing.T) (VerdictStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })
	return NewVerdictStore(client), mr
}

func TestVerdictStore_SetGetVerdict(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	verdict := &fleet.Verdict{
		SessionID:     "sess-1",
		Status:        fleet.StatusAwaiting,
		BatterySOC:    0.85,
		FinishTime:    time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC),
		EarliestStart: time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
		Evaluations:   3,
		UpdatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SetVerdict(ctx, verdict))

	got, err := store.GetVerdict(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, verdict, got)
}

func TestVerdictStore_GetVerdict_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetVerdict(context.Background(), "missing")
	var notFound *fleet.SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.SessionID)
}

func TestVerdictStore_SetGetSessionMeta(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	record := &fleet.SessionRecord{
		ID:            "sess-2",
		Robot:         "amr-04",
		CorrelationID: "3c83afed-02a1-44d5-a8bb-15a5c9e32a01",
		InitialWait:   5 * time.Second,
		Timeout:       20 * time.Second,
		DrainBattery:  true,
		ThresholdSOC:  0.1,
		StartSOC:      0.9,
		Status:        fleet.StatusAwaiting,
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SetSessionMeta(ctx, record))

	got, err := store.GetSessionMeta(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestVerdictStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetVerdict(ctx, &fleet.Verdict{SessionID: "sess-3", Status: fleet.StatusConfirmed}))
	require.NoError(t, store.SetSessionMeta(ctx, &fleet.SessionRecord{ID: "sess-3"}))

	require.NoError(t, store.Delete(ctx, "sess-3"))

	var notFound *fleet.SessionNotFoundError
	_, err := store.GetVerdict(ctx, "sess-3")
	require.ErrorAs(t, err, &notFound)
	_, err = store.GetSessionMeta(ctx, "sess-3")
	require.ErrorAs(t, err, &notFound)
}

func TestVerdictStore_VerdictsExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetVerdict(ctx, &fleet.Verdict{SessionID: "sess-4", Status: fleet.StatusAwaiting}))

	mr.FastForward(verdictTTL + time.Minute)

	_, err := store.GetVerdict(ctx, "sess-4")
	var notFound *fleet.SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
}
