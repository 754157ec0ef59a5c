package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/events"
	"github.com/spec-kit/triage-bot/internal/jira"
)

// workerLoop polls the lanes and executes tasks until the context ends.
func (s *Scheduler) workerLoop(ctx context.Context, workerID int) {
	logger := s.logger.With(zap.Int("worker", workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		taskID, err := s.queue.Pop(ctx, s.nextLaneOrder())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("polling lanes failed", zap.Error(err))
			s.sleep(ctx, s.cfg.PollInterval())
			continue
		}
		if taskID == "" {
			s.sleep(ctx, s.cfg.PollInterval())
			continue
		}

		s.execute(ctx, taskID, logger)
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *Scheduler) execute(ctx context.Context, taskID string, logger *zap.Logger) {
	record, err := s.queue.LoadRecord(ctx, taskID)
	if err != nil {
		if err != ErrTaskNotFound {
			logger.Error("loading task record failed",
				zap.String("task_id", taskID), zap.Error(err))
		}
		return
	}
	task := &record.Task
	logger = logger.With(
		zap.String("task_id", task.ID),
		zap.String("ticket_key", task.TicketKey))

	// One run per ticket at a time. A held marker means another worker
	// is on the same ticket; push this task back a poll interval.
	acquired, err := s.queue.AcquireInFlight(ctx, task.TicketKey, s.cfg.InFlightTTL())
	if err != nil {
		logger.Error("acquiring in-flight marker failed", zap.Error(err))
		return
	}
	if !acquired {
		if err := s.queue.PushDelayed(ctx, task.ID, time.Now().Add(s.cfg.PollInterval())); err != nil {
			logger.Error("deferring colliding task failed", zap.Error(err))
		}
		return
	}
	defer func() {
		if err := s.queue.ReleaseInFlight(context.WithoutCancel(ctx), task.TicketKey); err != nil {
			logger.Error("releasing in-flight marker failed", zap.Error(err))
		}
	}()

	record.State = domain.TaskStateRunning
	record.UpdatedAt = time.Now().UTC()
	if err := s.queue.SaveRecord(ctx, record); err != nil {
		logger.Error("marking task running failed", zap.Error(err))
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout())
	result, runErr := s.runner.Run(runCtx, task)
	cancel()

	// State writes and archiving survive shutdown of the worker context.
	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer finishCancel()

	if runErr == nil {
		s.finishSuccess(finishCtx, record, result, logger)
		return
	}
	s.finishFailure(finishCtx, record, result, runErr, logger)
}

func (s *Scheduler) finishSuccess(ctx context.Context, record *domain.TaskRecord, result *domain.ProcessingResult, logger *zap.Logger) {
	record.State = domain.TaskStateSucceeded
	record.Result = result
	record.LastError = ""
	record.UpdatedAt = time.Now().UTC()
	if err := s.queue.SaveRecord(ctx, record); err != nil {
		logger.Error("saving task result failed", zap.Error(err))
	}
	s.archive(ctx, record, result, logger)
	s.metrics.RecordRun("success")

	payload := events.RunCompletedPayload{NewStatus: result.NewStatus, Duration: result.Duration}
	if result.Assessment != nil {
		payload.Quality = result.Assessment.OverallQuality
		payload.Score = result.Assessment.Score
		payload.IssueCount = result.Assessment.IssueCount()
	}
	s.publish(ctx, events.EventRunCompleted, record, payload)
	if result.StatusTransitioned {
		s.publish(ctx, events.EventTicketTransitioned, record, events.TicketTransitionedPayload{
			NewStatus: result.NewStatus,
		})
	}

	logger.Info("run completed",
		zap.String("new_status", result.NewStatus),
		zap.Duration("duration", result.Duration))
}

func (s *Scheduler) finishFailure(ctx context.Context, record *domain.TaskRecord, result *domain.ProcessingResult, runErr error, logger *zap.Logger) {
	task := &record.Task
	errorStep := ""
	if result != nil {
		errorStep = result.ErrorStep
		s.metrics.RecordStageFailure(errorStep)
	}

	retry := jira.IsTransient(runErr) && task.RetryCount < s.cfg.MaxRetries
	if retry {
		task.RetryCount++
		delay := Backoff(s.cfg.RetryBaseDelay(), task.RetryCount-1)
		record.State = domain.TaskStateRetrying
		record.LastError = runErr.Error()
		record.UpdatedAt = time.Now().UTC()
		if err := s.queue.SaveRecord(ctx, record); err != nil {
			logger.Error("saving retry state failed", zap.Error(err))
		}
		if err := s.queue.PushDelayed(ctx, task.ID, time.Now().Add(delay)); err != nil {
			logger.Error("scheduling retry failed", zap.Error(err))
		}
		s.publish(ctx, events.EventRunFailed, record, events.RunFailedPayload{
			ErrorStep:    errorStep,
			ErrorMessage: runErr.Error(),
			RetryCount:   task.RetryCount,
			WillRetry:    true,
		})
		logger.Warn("run failed, retry scheduled",
			zap.String("error_step", errorStep),
			zap.Int("retry_count", task.RetryCount),
			zap.Duration("delay", delay),
			zap.Error(runErr))
		return
	}

	record.State = domain.TaskStateFailed
	record.Result = result
	record.LastError = runErr.Error()
	record.UpdatedAt = time.Now().UTC()
	if err := s.queue.SaveRecord(ctx, record); err != nil {
		logger.Error("saving failed state failed", zap.Error(err))
	}
	if result != nil {
		s.archive(ctx, record, result, logger)
	}
	s.metrics.RecordRun("failure")
	s.publish(ctx, events.EventRunFailed, record, events.RunFailedPayload{
		ErrorStep:    errorStep,
		ErrorMessage: runErr.Error(),
		RetryCount:   task.RetryCount,
		WillRetry:    false,
	})
	logger.Error("run failed permanently",
		zap.String("error_step", errorStep),
		zap.Int("retry_count", task.RetryCount),
		zap.Error(runErr))
}

func (s *Scheduler) archive(ctx context.Context, record *domain.TaskRecord, result *domain.ProcessingResult, logger *zap.Logger) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Insert(ctx, &record.Task, result); err != nil {
		logger.Error("archiving run failed", zap.Error(err))
	}
}

func (s *Scheduler) publish(ctx context.Context, eventType events.EventType, record *domain.TaskRecord, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		TicketKey: record.Task.TicketKey,
		TaskID:    record.Task.ID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Error("publishing event failed",
			zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
