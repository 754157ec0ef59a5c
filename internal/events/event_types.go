package events

import (
	"time"

	"github.com/spec-kit/triage-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRunCompleted       EventType = "run_completed"
	EventRunFailed          EventType = "run_failed"
	EventTicketTransitioned EventType = "ticket_transitioned"
)

// Event represents a processing lifecycle event emitted by the scheduler.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketKey string      `json:"ticket_key"`
	TaskID    string      `json:"task_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RunCompletedPayload payload.
type RunCompletedPayload struct {
	Quality    domain.QualityLevel `json:"quality,omitempty"`
	Score      int                 `json:"score"`
	IssueCount int                 `json:"issue_count"`
	NewStatus  string              `json:"new_status,omitempty"`
	Duration   time.Duration       `json:"duration"`
}

// RunFailedPayload payload.
type RunFailedPayload struct {
	ErrorStep    string `json:"error_step"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
	WillRetry    bool   `json:"will_retry"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	FromStatus string `json:"from_status,omitempty"`
	NewStatus  string `json:"new_status"`
}
