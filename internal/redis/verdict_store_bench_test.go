package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/universal-field-robots/rmf-task/internal/fleet"
)

// newBenchClient returns a Redis client connected to localhost:6379.
// Benchmarks are skipped if Redis is not reachable.
func newBenchClient(b *testing.B) *redis.Client {
	b.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:         "localhost:6379",
		DialTimeout:  1 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := c.Ping(context.Background()).Err(); err != nil {
		b.Skipf("Redis not available at localhost:6379: %v", err)
	}
	b.Cleanup(func() { _ = c.Close() })
	return c
}

// BenchmarkVerdictStore_SetVerdict measures the per-cycle verdict write.
func BenchmarkVerdictStore_SetVerdict(b *testing.B) {
	store := NewVerdictStore(newBenchClient(b))
	ctx := context.Background()

	verdict := &fleet.Verdict{
		SessionID:  "bench-session-set",
		Status:     fleet.StatusAwaiting,
		BatterySOC: 0.8,
		UpdatedAt:  time.Now(),
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.SetVerdict(ctx, verdict); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkVerdictStore_GetVerdict measures the scheduler poll path.
func BenchmarkVerdictStore_GetVerdict(b *testing.B) {
	store := NewVerdictStore(newBenchClient(b))
	ctx := context.Background()

	// Pre-seed so every GET hits a real value.
	if err := store.SetVerdict(ctx, &fleet.Verdict{SessionID: "bench-session-get", Status: fleet.StatusAwaiting}); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.GetVerdict(ctx, "bench-session-get"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkVerdictStore_SetVerdict_Parallel stresses concurrent evaluators.
func BenchmarkVerdictStore_SetVerdict_Parallel(b *testing.B) {
	store := NewVerdictStore(newBenchClient(b))
	ctx := context.Background()

	verdict := &fleet.Verdict{
		SessionID:  "bench-session-parallel",
		Status:     fleet.StatusConfirmed,
		BatterySOC: 0.7,
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := store.SetVerdict(ctx, verdict); err != nil {
				b.Fatal(err)
			}
		}
	})
}
