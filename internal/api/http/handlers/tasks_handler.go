package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-bot/internal/api/dto"
	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/observability"
	"github.com/spec-kit/triage-bot/internal/scheduler"
	apperrors "github.com/spec-kit/triage-bot/pkg/util/errorutil"
)

// TasksHandler exposes manual task submission and queue operations.
type TasksHandler struct {
	scheduler *scheduler.Scheduler
	metrics   *observability.Metrics
}

// NewTasksHandler constructs handler.
func NewTasksHandler(sched *scheduler.Scheduler, metrics *observability.Metrics) *TasksHandler {
	return &TasksHandler{scheduler: sched, metrics: metrics}
}

// Submit handles POST /api/tasks.
func (h *TasksHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketKey == "" {
		return apperrors.NewValidationError("ticket_key required", nil)
	}

	priority := domain.PriorityClass(req.Priority)
	if req.Priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return apperrors.NewValidationError("priority must be high, normal or low", nil)
	}
	trigger := req.TriggerEvent
	if trigger == "" {
		trigger = "manual"
	}

	taskID, deduped, err := h.scheduler.Submit(c.UserContext(), req.TicketKey, trigger, priority, req.Options())
	if err != nil {
		return apperrors.MapError(err)
	}

	status := http.StatusAccepted
	if deduped {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"data": dto.SubmitTaskResponse{TaskID: taskID, Deduped: deduped},
	})
}

// Status handles GET /api/tasks/:id.
func (h *TasksHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		return apperrors.NewValidationError("task id required", nil)
	}

	record, err := h.scheduler.Status(c.UserContext(), taskID)
	if err != nil {
		if err == scheduler.ErrTaskNotFound {
			return apperrors.NewNotFound("task", nil)
		}
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{"data": dto.NewTaskStatusResponse(record)})
}

// QueueStats handles GET /api/queue/stats.
func (h *TasksHandler) QueueStats(c *fiber.Ctx) error {
	depths, err := h.scheduler.Stats(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"lanes":    depths,
			"workers":  h.scheduler.Workers(),
			"counters": h.metrics.Snapshot(),
		},
	})
}

// PurgePending handles DELETE /api/queue/pending.
func (h *TasksHandler) PurgePending(c *fiber.Ctx) error {
	dropped, err := h.scheduler.PurgePending(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"dropped": dropped},
	})
}
