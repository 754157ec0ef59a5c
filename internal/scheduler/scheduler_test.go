package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/events"
	"github.com/spec-kit/triage-bot/internal/observability"
)

func testScheduler(t *testing.T) (*Scheduler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.QueueConfig{
		WorkerCount:        2,
		MaxRetries:         3,
		RetryBaseDelaySec:  60,
		DedupWindowSeconds: 300,
		ResultTTLSeconds:   3600,
		RunTimeoutSeconds:  30,
		PollIntervalMillis: 100,
		InFlightTTLSeconds: 120,
	}
	sched := New(cfg, Dependencies{
		Redis:      client,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Metrics:    observability.NewMetrics(),
		Logger:     zap.NewNop(),
	})
	return sched, mr
}

func TestSubmitQueuesTask(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	taskID, deduped, err := sched.Submit(ctx, "SUP-1", "issue_created", domain.PriorityHigh, domain.ProcessingOptions{})

	require.NoError(t, err)
	assert.False(t, deduped)
	require.NotEmpty(t, taskID)

	record, err := sched.Status(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "SUP-1", record.Task.TicketKey)
	assert.Equal(t, domain.TaskStateQueued, record.State)

	stats, err := sched.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[string(domain.PriorityHigh)])
}

func TestSubmitSameTicketWithinWindowIsDeduplicated(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	first, deduped, err := sched.Submit(ctx, "SUP-1", "issue_created", domain.PriorityNormal, domain.ProcessingOptions{})
	require.NoError(t, err)
	require.False(t, deduped)
	require.NotEmpty(t, first)

	second, deduped, err := sched.Submit(ctx, "SUP-1", "issue_updated", domain.PriorityNormal, domain.ProcessingOptions{})
	require.NoError(t, err)
	assert.True(t, deduped)
	assert.Empty(t, second)

	// Only the first submission produced a queued task.
	stats, err := sched.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[string(domain.PriorityNormal)])
}

func TestSubmitAfterWindowElapsesQueuesAgain(t *testing.T) {
	sched, mr := testScheduler(t)
	ctx := context.Background()

	_, deduped, err := sched.Submit(ctx, "SUP-1", "issue_created", domain.PriorityNormal, domain.ProcessingOptions{})
	require.NoError(t, err)
	require.False(t, deduped)

	mr.FastForward(301 * time.Second)

	taskID, deduped, err := sched.Submit(ctx, "SUP-1", "issue_updated", domain.PriorityNormal, domain.ProcessingOptions{})
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEmpty(t, taskID)
}

func TestSubmitForceReprocessBypassesDedup(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	first, _, err := sched.Submit(ctx, "SUP-1", "issue_created", domain.PriorityNormal, domain.ProcessingOptions{})
	require.NoError(t, err)

	second, deduped, err := sched.Submit(ctx, "SUP-1", "manual", domain.PriorityNormal, domain.ProcessingOptions{ForceReprocess: true})
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	stats, err := sched.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[string(domain.PriorityNormal)])
}

func TestSubmitInvalidPriorityFallsBackToNormal(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	taskID, _, err := sched.Submit(ctx, "SUP-1", "manual", domain.PriorityClass("urgent"), domain.ProcessingOptions{})
	require.NoError(t, err)

	record, err := sched.Status(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityNormal, record.Task.Priority)
}

func TestFailedSubmitReleasesDedupMarker(t *testing.T) {
	sched, mr := testScheduler(t)
	ctx := context.Background()

	// Occupy the lane key with the wrong type so the enqueue fails
	// after the dedup marker is set.
	mr.Set(laneKey(domain.PriorityHigh), "not-a-list")

	_, _, err := sched.Submit(ctx, "SUP-1", "issue_created", domain.PriorityHigh, domain.ProcessingOptions{})
	require.Error(t, err)

	// The marker must not linger, or the next submission would be
	// silently dropped for the whole dedup window.
	mr.Del(laneKey(domain.PriorityHigh))

	taskID, deduped, err := sched.Submit(ctx, "SUP-1", "issue_created", domain.PriorityHigh, domain.ProcessingOptions{})
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEmpty(t, taskID)
}

func TestPromoteMovesDelayedTaskBackToLane(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	record := &domain.TaskRecord{
		Task: domain.ProcessingTask{
			ID:         "retry-1",
			TicketKey:  "SUP-1",
			Priority:   domain.PriorityNormal,
			RetryCount: 1,
		},
		State:     domain.TaskStateRetrying,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, sched.queue.SaveRecord(ctx, record))
	require.NoError(t, sched.queue.PushDelayed(ctx, "retry-1", time.Now().Add(-time.Second)))

	due, err := sched.queue.PopDue(ctx, time.Now(), 50)
	require.NoError(t, err)
	require.Equal(t, []string{"retry-1"}, due)

	sched.promote(ctx, "retry-1")

	id, err := sched.queue.Pop(ctx, []domain.PriorityClass{domain.PriorityNormal})
	require.NoError(t, err)
	assert.Equal(t, "retry-1", id)
}

func TestPromoteToleratesExpiredRecord(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	// No record saved for this ID; promotion must drop it quietly.
	sched.promote(ctx, "ghost")

	stats, err := sched.Stats(ctx)
	require.NoError(t, err)
	for _, n := range stats {
		assert.Zero(t, n)
	}
}

func TestPurgePendingDropsQueuedWork(t *testing.T) {
	sched, _ := testScheduler(t)
	ctx := context.Background()

	_, _, err := sched.Submit(ctx, "SUP-1", "manual", domain.PriorityHigh, domain.ProcessingOptions{})
	require.NoError(t, err)
	_, _, err = sched.Submit(ctx, "SUP-2", "manual", domain.PriorityLow, domain.ProcessingOptions{})
	require.NoError(t, err)

	dropped, err := sched.PurgePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dropped)
}
