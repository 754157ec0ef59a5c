package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/events"
	"github.com/spec-kit/triage-bot/internal/observability"
)

// Runner executes one processing task end to end.
type Runner interface {
	Run(ctx context.Context, task *domain.ProcessingTask) (*domain.ProcessingResult, error)
}

// RunArchiver persists finished runs for later inspection.
type RunArchiver interface {
	Insert(ctx context.Context, task *domain.ProcessingTask, result *domain.ProcessingResult) error
}

// Dependencies bundles everything the scheduler needs.
type Dependencies struct {
	Redis      *redis.Client
	Runner     Runner
	Archiver   RunArchiver
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Scheduler accepts processing tasks, spreads them over priority lanes
// in redis, and drives a pool of workers that execute them with
// transient-failure retry.
type Scheduler struct {
	cfg        config.QueueConfig
	queue      *queue
	runner     Runner
	archiver   RunArchiver
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	pollCounter uint64
	counterMu   sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a scheduler. Start must be called before tasks execute;
// Submit works either way.
func New(cfg config.QueueConfig, deps Dependencies) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		queue:      newQueue(deps.Redis, cfg.ResultTTL()),
		runner:     deps.Runner,
		archiver:   deps.Archiver,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Submit enqueues a processing task for the ticket. When a submission
// for the same ticket landed within the dedup window and ForceReprocess
// is off, the task is dropped and the existing coverage reported via
// deduped=true.
func (s *Scheduler) Submit(ctx context.Context, ticketKey, triggerEvent string, priority domain.PriorityClass, opts domain.ProcessingOptions) (taskID string, deduped bool, err error) {
	if !priority.Valid() {
		priority = domain.PriorityNormal
	}

	if opts.ForceReprocess {
		if err := s.queue.ClearDedup(ctx, ticketKey); err != nil {
			return "", false, err
		}
	}
	fresh, err := s.queue.MarkDedup(ctx, ticketKey, s.cfg.DedupWindow())
	if err != nil {
		return "", false, err
	}
	if !fresh {
		s.logger.Debug("submission deduplicated",
			zap.String("ticket_key", ticketKey),
			zap.String("trigger_event", triggerEvent))
		return "", true, nil
	}

	task := &domain.ProcessingTask{
		ID:           uuid.New().String(),
		TicketKey:    ticketKey,
		TriggerEvent: triggerEvent,
		Priority:     priority,
		Options:      opts,
		CreatedAt:    time.Now().UTC(),
	}
	record := &domain.TaskRecord{
		Task:      *task,
		State:     domain.TaskStateQueued,
		UpdatedAt: task.CreatedAt,
	}
	if err := s.queue.SaveRecord(ctx, record); err != nil {
		s.releaseDedup(ctx, ticketKey)
		return "", false, err
	}
	if err := s.queue.Push(ctx, task); err != nil {
		s.releaseDedup(ctx, ticketKey)
		return "", false, err
	}

	s.logger.Info("task submitted",
		zap.String("task_id", task.ID),
		zap.String("ticket_key", ticketKey),
		zap.String("priority", string(priority)),
		zap.String("trigger_event", triggerEvent))
	return task.ID, false, nil
}

// releaseDedup undoes the dedup marker when a submission fails after
// marking. Leaving the marker would suppress a legitimate retry for the
// whole dedup window.
func (s *Scheduler) releaseDedup(ctx context.Context, ticketKey string) {
	if err := s.queue.ClearDedup(ctx, ticketKey); err != nil {
		s.logger.Warn("failed to release dedup marker",
			zap.String("ticket_key", ticketKey),
			zap.Error(err))
	}
}

// Status returns the current record for a task, or ErrTaskNotFound once
// the record has aged out.
func (s *Scheduler) Status(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	return s.queue.LoadRecord(ctx, taskID)
}

// Stats reports lane depths for the queue endpoints.
func (s *Scheduler) Stats(ctx context.Context) (map[string]int64, error) {
	return s.queue.LaneDepths(ctx)
}

// Workers reports the configured pool size.
func (s *Scheduler) Workers() int {
	return s.cfg.WorkerCount
}

// PurgePending drops every queued and delayed task. In-flight tasks run
// to completion.
func (s *Scheduler) PurgePending(ctx context.Context) (int64, error) {
	return s.queue.Purge(ctx)
}

// Start launches the worker pool and the delayed-task promoter.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(runCtx, id)
		}(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.promoterLoop(runCtx)
	}()

	s.logger.Info("scheduler started", zap.Int("workers", s.cfg.WorkerCount))
}

// Stop signals every loop to exit and waits for in-progress runs to end.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// nextLaneOrder advances the shared poll counter and returns the lane
// preference for this poll.
func (s *Scheduler) nextLaneOrder() []domain.PriorityClass {
	s.counterMu.Lock()
	counter := s.pollCounter
	s.pollCounter++
	s.counterMu.Unlock()
	return laneOrder(counter)
}

// promoterLoop moves delayed tasks back onto their lanes once their
// backoff elapses.
func (s *Scheduler) promoterLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := s.queue.PopDue(ctx, now, 50)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("promoting delayed tasks failed", zap.Error(err))
				continue
			}
			for _, taskID := range due {
				s.promote(ctx, taskID)
			}
		}
	}
}

func (s *Scheduler) promote(ctx context.Context, taskID string) {
	record, err := s.queue.LoadRecord(ctx, taskID)
	if err != nil {
		// Record aged out while delayed; nothing left to run.
		if err != ErrTaskNotFound {
			s.logger.Error("loading delayed task failed",
				zap.String("task_id", taskID), zap.Error(err))
		}
		return
	}
	if err := s.queue.Push(ctx, &record.Task); err != nil {
		s.logger.Error("requeueing delayed task failed",
			zap.String("task_id", taskID), zap.Error(err))
		return
	}
	s.logger.Info("retry promoted",
		zap.String("task_id", taskID),
		zap.String("ticket_key", record.Task.TicketKey),
		zap.Int("retry_count", record.Task.RetryCount))
}
