package dto

import (
	"time"

	"github.com/spec-kit/triage-bot/internal/domain"
)

// SubmitTaskRequest payload for manual task submission.
type SubmitTaskRequest struct {
	TicketKey        string `json:"ticket_key"`
	TriggerEvent     string `json:"trigger_event"`
	Priority         string `json:"priority"`
	ForceReprocess   bool   `json:"force_reprocess"`
	SkipQualityCheck bool   `json:"skip_quality_check"`
	SkipAIComment    bool   `json:"skip_ai_comment"`
	SkipTransition   bool   `json:"skip_transition"`
}

// Options converts the request flags to processing options.
func (r SubmitTaskRequest) Options() domain.ProcessingOptions {
	return domain.ProcessingOptions{
		ForceReprocess:   r.ForceReprocess,
		SkipQualityCheck: r.SkipQualityCheck,
		SkipAIComment:    r.SkipAIComment,
		SkipTransition:   r.SkipTransition,
	}
}

// SubmitTaskResponse reports the outcome of a submission.
type SubmitTaskResponse struct {
	TaskID  string `json:"task_id,omitempty"`
	Deduped bool   `json:"deduped"`
}

// TaskStatusResponse mirrors the stored task record.
type TaskStatusResponse struct {
	TaskID       string                   `json:"task_id"`
	TicketKey    string                   `json:"ticket_key"`
	TriggerEvent string                   `json:"trigger_event"`
	Priority     string                   `json:"priority"`
	State        string                   `json:"state"`
	RetryCount   int                      `json:"retry_count"`
	LastError    string                   `json:"last_error,omitempty"`
	Result       *domain.ProcessingResult `json:"result,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// NewTaskStatusResponse maps a task record into the response shape.
func NewTaskStatusResponse(record *domain.TaskRecord) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:       record.Task.ID,
		TicketKey:    record.Task.TicketKey,
		TriggerEvent: record.Task.TriggerEvent,
		Priority:     string(record.Task.Priority),
		State:        string(record.State),
		RetryCount:   record.Task.RetryCount,
		LastError:    record.LastError,
		Result:       record.Result,
		CreatedAt:    record.Task.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}
