package domain

import "time"

// PriorityClass names a scheduling lane.
type PriorityClass string

const (
	PriorityHigh   PriorityClass = "high"
	PriorityNormal PriorityClass = "normal"
	PriorityLow    PriorityClass = "low"
)

// Weight maps a priority class to its numeric queue weight.
func (p PriorityClass) Weight() int {
	switch p {
	case PriorityHigh:
		return 9
	case PriorityLow:
		return 1
	default:
		return 5
	}
}

// Valid reports whether the class is a known lane.
func (p PriorityClass) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// TaskState enumerates scheduler task lifecycle states.
type TaskState string

const (
	TaskStateQueued    TaskState = "queued"
	TaskStateRunning   TaskState = "running"
	TaskStateRetrying  TaskState = "retrying"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
	TaskStateCancelled TaskState = "cancelled"
)

// Terminal reports whether no further state change can occur.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateSucceeded, TaskStateFailed, TaskStateCancelled:
		return true
	}
	return false
}

// ProcessingOptions are per-run flags recognized by the orchestrator.
type ProcessingOptions struct {
	ForceReprocess   bool `json:"force_reprocess"`
	SkipQualityCheck bool `json:"skip_quality_check"`
	SkipAIComment    bool `json:"skip_ai_comment"`
	SkipTransition   bool `json:"skip_transition"`
}

// ProcessingTask is the scheduler-owned unit of work for one ticket run.
type ProcessingTask struct {
	ID           string            `json:"id"`
	TicketKey    string            `json:"ticket_key"`
	TriggerEvent string            `json:"trigger_event"`
	Priority     PriorityClass     `json:"priority"`
	Options      ProcessingOptions `json:"options"`
	RetryCount   int               `json:"retry_count"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ProcessingResult captures one orchestrator run. Immutable once returned.
type ProcessingResult struct {
	TicketKey          string               `json:"ticket_key"`
	Success            bool                 `json:"success"`
	Ingested           bool                 `json:"ingested"`
	FieldsChecked      bool                 `json:"fields_checked"`
	DuplicatesChecked  bool                 `json:"duplicates_checked"`
	QualityAssessed    bool                 `json:"quality_assessed"`
	CommentGenerated   bool                 `json:"comment_generated"`
	CommentPosted      bool                 `json:"comment_posted"`
	StatusTransitioned bool                 `json:"status_transitioned"`
	Assessment         *QualityAssessment   `json:"assessment,omitempty"`
	GeneratedComment   string               `json:"generated_comment,omitempty"`
	CommentSource      string               `json:"comment_source,omitempty"`
	NewStatus          string               `json:"new_status,omitempty"`
	Duplicates         []DuplicateCandidate `json:"duplicates,omitempty"`
	FieldWarnings      []string             `json:"field_warnings,omitempty"`
	Warnings           []string             `json:"warnings,omitempty"`
	Message            string               `json:"message,omitempty"`
	ErrorMessage       string               `json:"error_message,omitempty"`
	ErrorStep          string               `json:"error_step,omitempty"`
	Duration           time.Duration        `json:"duration"`
}

// TaskRecord is the scheduler's observable view of a task, retained for a
// bounded window after completion.
type TaskRecord struct {
	Task      ProcessingTask    `json:"task"`
	State     TaskState         `json:"state"`
	Result    *ProcessingResult `json:"result,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
