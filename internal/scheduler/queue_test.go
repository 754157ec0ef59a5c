package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-bot/internal/domain"
)

func testQueue(t *testing.T) (*queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newQueue(client, time.Hour), mr
}

func queuedTask(id string, priority domain.PriorityClass) *domain.ProcessingTask {
	return &domain.ProcessingTask{
		ID:        id,
		TicketKey: "SUP-" + id,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
}

func TestPopFollowsLaneOrder(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, queuedTask("low-1", domain.PriorityLow)))
	require.NoError(t, q.Push(ctx, queuedTask("high-1", domain.PriorityHigh)))
	require.NoError(t, q.Push(ctx, queuedTask("normal-1", domain.PriorityNormal)))

	order := []domain.PriorityClass{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow}

	first, err := q.Pop(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, "high-1", first)

	second, err := q.Pop(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, "normal-1", second)

	third, err := q.Pop(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, "low-1", third)

	empty, err := q.Pop(ctx, order)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPopDueClaimsOnlyElapsedDelays(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.PushDelayed(ctx, "due-1", now.Add(-time.Minute)))
	require.NoError(t, q.PushDelayed(ctx, "due-2", now.Add(-time.Second)))
	require.NoError(t, q.PushDelayed(ctx, "later", now.Add(time.Hour)))

	due, err := q.PopDue(ctx, now, 50)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"due-1", "due-2"}, due)

	// Claimed members are gone; the future one stays parked.
	again, err := q.PopDue(ctx, now, 50)
	require.NoError(t, err)
	assert.Empty(t, again)

	depths, err := q.LaneDepths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depths["delayed"])
}

func TestRecordRoundTrip(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	record := &domain.TaskRecord{
		Task:      *queuedTask("abc", domain.PriorityNormal),
		State:     domain.TaskStateQueued,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, q.SaveRecord(ctx, record))

	loaded, err := q.LoadRecord(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, record.Task.TicketKey, loaded.Task.TicketKey)
	assert.Equal(t, domain.TaskStateQueued, loaded.State)

	_, err = q.LoadRecord(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDedupMarkerLifecycle(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	fresh, err := q.MarkDedup(ctx, "SUP-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = q.MarkDedup(ctx, "SUP-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, q.ClearDedup(ctx, "SUP-1"))

	fresh, err = q.MarkDedup(ctx, "SUP-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestDedupMarkerExpires(t *testing.T) {
	q, mr := testQueue(t)
	ctx := context.Background()

	fresh, err := q.MarkDedup(ctx, "SUP-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, fresh)

	mr.FastForward(31 * time.Second)

	fresh, err = q.MarkDedup(ctx, "SUP-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestInFlightGuard(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	acquired, err := q.AcquireInFlight(ctx, "SUP-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = q.AcquireInFlight(ctx, "SUP-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, q.ReleaseInFlight(ctx, "SUP-1"))

	acquired, err = q.AcquireInFlight(ctx, "SUP-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestPurgeDropsPendingAndDelayed(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, queuedTask("1", domain.PriorityHigh)))
	require.NoError(t, q.Push(ctx, queuedTask("2", domain.PriorityNormal)))
	require.NoError(t, q.PushDelayed(ctx, "3", time.Now().Add(time.Hour)))

	dropped, err := q.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dropped)

	depths, err := q.LaneDepths(ctx)
	require.NoError(t, err)
	for _, n := range depths {
		assert.Zero(t, n)
	}
}
