package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/triage-bot/internal/domain"
)

const (
	laneKeyPrefix  = "triage:queue:"
	delayedKey     = "triage:queue:delayed"
	taskKeyPrefix  = "triage:task:"
	dedupKeyPrefix = "triage:dedup:"
	inFlightPrefix = "triage:inflight:"
)

// ErrTaskNotFound is returned when a task record has expired or never existed.
var ErrTaskNotFound = errors.New("task not found")

// queue wraps the redis structures backing the scheduler: one list per
// priority lane, a sorted set for delayed redelivery, and per-task JSON
// records with a bounded lifetime.
type queue struct {
	client    *redis.Client
	resultTTL time.Duration
}

func newQueue(client *redis.Client, resultTTL time.Duration) *queue {
	return &queue{client: client, resultTTL: resultTTL}
}

func laneKey(class domain.PriorityClass) string {
	return laneKeyPrefix + string(class)
}

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

// Push appends the task ID to its priority lane.
func (q *queue) Push(ctx context.Context, task *domain.ProcessingTask) error {
	return q.client.RPush(ctx, laneKey(task.Priority), task.ID).Err()
}

// Pop tries each lane in the given order and returns the first task ID
// found, or "" when every lane is empty.
func (q *queue) Pop(ctx context.Context, order []domain.PriorityClass) (string, error) {
	for _, class := range order {
		id, err := q.client.LPop(ctx, laneKey(class)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", nil
}

// PushDelayed parks the task ID until readyAt, after which the promoter
// moves it back onto its lane.
func (q *queue) PushDelayed(ctx context.Context, taskID string, readyAt time.Time) error {
	return q.client.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(readyAt.Unix()),
		Member: taskID,
	}).Err()
}

// PopDue removes and returns task IDs whose delay has elapsed. The ZRem
// acts as the claim: a member another promoter already removed is skipped.
func (q *queue) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	var claimed []string
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return claimed, err
		}
		if removed > 0 {
			claimed = append(claimed, member)
		}
	}
	return claimed, nil
}

// SaveRecord persists the task record with the configured retention.
func (q *queue) SaveRecord(ctx context.Context, record *domain.TaskRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	return q.client.Set(ctx, taskKey(record.Task.ID), payload, q.resultTTL).Err()
}

// LoadRecord fetches a task record by ID.
func (q *queue) LoadRecord(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	payload, err := q.client.Get(ctx, taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	var record domain.TaskRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal task record: %w", err)
	}
	return &record, nil
}

// MarkDedup sets the dedup marker for the ticket. It returns false when
// a marker is already present, meaning a recent submission covers this
// ticket and the new one should be dropped.
func (q *queue) MarkDedup(ctx context.Context, ticketKey string, window time.Duration) (bool, error) {
	return q.client.SetNX(ctx, dedupKeyPrefix+ticketKey, "1", window).Result()
}

// ClearDedup drops the marker so a forced resubmission goes through.
func (q *queue) ClearDedup(ctx context.Context, ticketKey string) error {
	return q.client.Del(ctx, dedupKeyPrefix+ticketKey).Err()
}

// AcquireInFlight marks the ticket as being processed right now. The TTL
// bounds the hold in case a worker dies mid-run.
func (q *queue) AcquireInFlight(ctx context.Context, ticketKey string, ttl time.Duration) (bool, error) {
	return q.client.SetNX(ctx, inFlightPrefix+ticketKey, "1", ttl).Result()
}

func (q *queue) ReleaseInFlight(ctx context.Context, ticketKey string) error {
	return q.client.Del(ctx, inFlightPrefix+ticketKey).Err()
}

// LaneDepths reports the current length of each priority lane plus the
// delayed set.
func (q *queue) LaneDepths(ctx context.Context) (map[string]int64, error) {
	depths := make(map[string]int64, 4)
	for _, class := range []domain.PriorityClass{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow} {
		n, err := q.client.LLen(ctx, laneKey(class)).Result()
		if err != nil {
			return nil, err
		}
		depths[string(class)] = n
	}
	delayed, err := q.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		return nil, err
	}
	depths["delayed"] = delayed
	return depths, nil
}

// Purge empties every lane and the delayed set, returning how many
// pending task IDs were dropped. Records and in-flight markers are left
// alone; running tasks finish normally.
func (q *queue) Purge(ctx context.Context) (int64, error) {
	var dropped int64
	for _, class := range []domain.PriorityClass{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow} {
		n, err := q.client.LLen(ctx, laneKey(class)).Result()
		if err != nil {
			return dropped, err
		}
		if err := q.client.Del(ctx, laneKey(class)).Err(); err != nil {
			return dropped, err
		}
		dropped += n
	}
	delayed, err := q.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		return dropped, err
	}
	if err := q.client.Del(ctx, delayedKey).Err(); err != nil {
		return dropped, err
	}
	return dropped + delayed, nil
}
