//go:build integration

// Package integration contains end-to-end integration tests that require
// real infrastructure (Kafka, Redis, PostgreSQL) provided by testcontainers-go.
//
// Run with: go test -tags=integration -v ./tests/integration/
package integration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-field-robots/rmf-task/internal/confirm"
	"github.com/universal-field-robots/rmf-task/internal/fleet"
	"github.com/universal-field-robots/rmf-task/internal/kafka"
	"github.com/universal-field-robots/rmf-task/internal/postgres"
	"github.com/universal-field-robots/rmf-task/internal/power"
	redisstore "github.com/universal-field-robots/rmf-task/internal/redis"
	"github.com/universal-field-robots/rmf-task/services/estimator"
)

// TestE2E_ConfirmedSessionLifecycle exercises the full estimation pipeline
// against real infrastructure, with the supervisor role simulated inline.
//
// Flow: open session → token on request topic → evaluations drain the
// projection in Redis → supervisor echoes the token on the response topic →
// verdict CONFIRMED in Redis + session row CONFIRMED in Postgres.
func TestE2E_ConfirmedSessionLifecycle(t *testing.T) {
	ctx := context.Background()

	// ── Infrastructure setup ─────────────────────────────────────────────────
	redisClient := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	t.Cleanup(func() {
		redisClient.FlushDB(ctx) //nolint:errcheck
		redisClient.Close()      //nolint:errcheck
	})

	pool, err := pgxpool.New(ctx, testPostgresDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(ctx, "TRUNCATE evaluations, sessions CASCADE") //nolint:errcheck
		pool.Close()
	})

	store := redisstore.NewVerdictStore(redisClient)
	repo := postgres.NewRepository(pool)

	producer := kafka.NewProducer(testKafkaBrokers)
	t.Cleanup(func() { producer.Close() }) //nolint:errcheck

	// Use unique topics to avoid interference with kafka_test.go tests.
	requestTopic := uniqueTopic("e2e-confirm-requests")
	responseTopic := uniqueTopic("e2e-confirm-responses")
	createTopic(t, requestTopic)
	createTopic(t, responseTopic)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	// ── Step 1: confirmation plumbing — request out, responses tailed ────────
	source := confirm.NewKafkaSource(producer, confirm.NewRouter(), requestTopic, slog.Default())

	groupID := "estimator-" + uuid.New().String()[:8]
	consumer := kafka.NewConsumer(testKafkaBrokers, responseTopic, groupID, slog.Default())
	t.Cleanup(func() { consumer.Close() }) //nolint:errcheck
	go source.Run(runCtx, consumer) //nolint:errcheck

	// ── Step 2: estimator — evaluation loop on a tight cadence ───────────────
	svc := estimator.NewService(store, repo, source,
		estimator.WithLogger(slog.Default()),
		estimator.WithEvalInterval(150*time.Millisecond),
		estimator.WithDefaultDurations(time.Second, 2*time.Minute),
		estimator.WithConstraints(fleet.Constraints{DrainBattery: true, ThresholdSOC: 0.1}),
		estimator.WithPowerSink(power.FixedSink(0.001)),
	)
	go svc.Run(runCtx)

	// ── Step 3: open a session ───────────────────────────────────────────────
	sess, err := svc.CreateSession(ctx, estimator.CreateParams{
		Robot: "amr-e2e",
		State: fleet.State{BatterySOC: 0.9},
	})
	require.NoError(t, err)

	_, err = uuid.Parse(sess.CorrelationID)
	require.NoError(t, err, "correlation token should be a UUID")
	assertTokenOnTopic(t, requestTopic, sess.CorrelationID)

	// ── Step 4: evaluations drain the projection while unconfirmed ───────────
	require.Eventually(t, func() bool {
		v, err := store.GetVerdict(ctx, sess.ID)
		return err == nil && v.Status == fleet.StatusAwaiting && v.Evaluations >= 1
	}, 30*time.Second, 200*time.Millisecond, "an AWAITING verdict should appear in Redis")

	v, err := store.GetVerdict(ctx, sess.ID)
	require.NoError(t, err)
	assert.Less(t, v.BatterySOC, 0.9, "waiting should cost battery")

	// ── Step 5: supervisor — echo the token on the response topic ────────────
	// Republish until the verdict flips: the estimator's consumer tails from
	// the latest offset and may still be joining its group.
	require.Eventually(t, func() bool {
		producer.Publish(ctx, responseTopic, sess.CorrelationID, []byte(sess.CorrelationID)) //nolint:errcheck
		v, err := store.GetVerdict(ctx, sess.ID)
		return err == nil && v.Status == fleet.StatusConfirmed
	}, 90*time.Second, 300*time.Millisecond, "the verdict should reach CONFIRMED")

	// ── Assertions ───────────────────────────────────────────────────────────
	v, err = store.GetVerdict(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, v.FinishTime.Equal(v.EarliestStart), "a confirmed session can start the moment it finishes waiting")
	assert.Greater(t, v.BatterySOC, 0.1)
	assert.GreaterOrEqual(t, v.Evaluations, 2)

	record, err := repo.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.StatusConfirmed, record.Status, "Postgres should show CONFIRMED")
	assert.Empty(t, record.Reason)

	evals, err := repo.ListEvaluations(ctx, sess.ID, 100)
	require.NoError(t, err)
	require.NotEmpty(t, evals, "every evaluation should be written to the audit trail")
	last := evals[len(evals)-1]
	assert.Equal(t, fleet.StatusConfirmed, last.Status)
	assert.Equal(t, v.Evaluations, last.Seq)
}

// TestE2E_ManualConfirmLifecycle drives a session through the in-process
// confirmation path and then through removal, verifying the Postgres
// fallback once the Redis copies are gone.
func TestE2E_ManualConfirmLifecycle(t *testing.T) {
	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	t.Cleanup(func() {
		redisClient.FlushDB(ctx) //nolint:errcheck
		redisClient.Close()      //nolint:errcheck
	})

	pool, err := pgxpool.New(ctx, testPostgresDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(ctx, "TRUNCATE evaluations, sessions CASCADE") //nolint:errcheck
		pool.Close()
	})

	store := redisstore.NewVerdictStore(redisClient)
	repo := postgres.NewRepository(pool)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	ms := confirm.NewManualSource()
	svc := estimator.NewService(store, repo, ms,
		estimator.WithLogger(slog.Default()),
		estimator.WithEvalInterval(100*time.Millisecond),
		estimator.WithDefaultDurations(500*time.Millisecond, time.Minute),
		estimator.WithPowerSink(power.FixedSink(0.001)),
		estimator.WithConfirmFn(func(_ context.Context, token string) error {
			ms.Dispatch(token, time.Now())
			return nil
		}),
	)
	go svc.Run(runCtx)

	sess, err := svc.CreateSession(ctx, estimator.CreateParams{
		Robot: "amr-12",
		State: fleet.State{BatterySOC: 0.85},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := store.GetVerdict(ctx, sess.ID)
		return err == nil && v.Status == fleet.StatusAwaiting && v.Evaluations >= 1
	}, 30*time.Second, 100*time.Millisecond)

	// Operator confirms through the service.
	require.NoError(t, svc.Confirm(ctx, sess.ID))
	require.Eventually(t, func() bool {
		v, err := store.GetVerdict(ctx, sess.ID)
		return err == nil && v.Status == fleet.StatusConfirmed
	}, 30*time.Second, 100*time.Millisecond)

	// Removal drops the hot copies; the audit trail answers from then on.
	require.NoError(t, svc.Remove(ctx, sess.ID))

	_, err = store.GetVerdict(ctx, sess.ID)
	var notFound *fleet.SessionNotFoundError
	require.ErrorAs(t, err, &notFound, "Redis copies should be gone after removal")

	record, verdict, err := svc.Lookup(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.StatusConfirmed, record.Status, "the Postgres record should survive removal")
	assert.Equal(t, fleet.StatusConfirmed, verdict.Status)
	assert.Zero(t, verdict.Evaluations, "evaluation counters do not survive the hot copy")
}
