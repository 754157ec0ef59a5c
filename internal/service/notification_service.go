package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/events"
)

// NotificationService forwards processing lifecycle events to operators.
// Every event is logged; when a webhook URL is configured, terminal
// failures and transitions are also POSTed there.
type NotificationService struct {
	cfg        config.NotificationConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewNotificationService(cfg config.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Register subscribes the service to the dispatcher.
func (s *NotificationService) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventRunCompleted, s.onRunCompleted)
	dispatcher.Subscribe(events.EventRunFailed, s.onRunFailed)
	dispatcher.Subscribe(events.EventTicketTransitioned, s.onTicketTransitioned)
}

func (s *NotificationService) onRunCompleted(ctx context.Context, event events.Event) error {
	s.logger.Info("notification: run completed",
		zap.String("ticket_key", event.TicketKey),
		zap.String("task_id", event.TaskID))
	return nil
}

func (s *NotificationService) onRunFailed(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.RunFailedPayload)
	s.logger.Warn("notification: run failed",
		zap.String("ticket_key", event.TicketKey),
		zap.String("task_id", event.TaskID),
		zap.String("error_step", payload.ErrorStep),
		zap.Bool("will_retry", payload.WillRetry))

	// Retries resolve themselves; only terminal failures page anyone.
	if payload.WillRetry {
		return nil
	}
	return s.deliver(ctx, event)
}

func (s *NotificationService) onTicketTransitioned(ctx context.Context, event events.Event) error {
	s.logger.Info("notification: ticket transitioned",
		zap.String("ticket_key", event.TicketKey),
		zap.String("task_id", event.TaskID))
	return s.deliver(ctx, event)
}

func (s *NotificationService) deliver(ctx context.Context, event events.Event) error {
	if s.cfg.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("delivering notification failed",
			zap.String("event_type", string(event.Type)), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Error("notification endpoint rejected event",
			zap.String("event_type", string(event.Type)),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
