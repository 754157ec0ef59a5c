package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-bot/internal/repository"
	apperrors "github.com/spec-kit/triage-bot/pkg/util/errorutil"
)

// RunsHandler exposes the archived processing runs.
type RunsHandler struct {
	runs repository.RunRepository
}

// NewRunsHandler constructs handler.
func NewRunsHandler(runs repository.RunRepository) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// ListByTicket handles GET /api/runs/:key.
func (h *RunsHandler) ListByTicket(c *fiber.Ctx) error {
	ticketKey := c.Params("key")
	if ticketKey == "" {
		return apperrors.NewValidationError("ticket key required", nil)
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	records, err := h.runs.ListByTicketKey(c.UserContext(), ticketKey, limit)
	if err != nil {
		return apperrors.MapError(err)
	}

	items := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		items = append(items, fiber.Map{
			"id":            rec.ID,
			"task_id":       rec.TaskID,
			"ticket_key":    rec.TicketKey,
			"trigger_event": rec.TriggerEvent,
			"priority":      rec.Priority,
			"success":       rec.Success,
			"quality_level": rec.QualityLevel,
			"quality_score": rec.QualityScore,
			"issue_count":   rec.IssueCount,
			"new_status":    rec.NewStatus,
			"error_step":    rec.ErrorStep,
			"error_message": rec.ErrorMessage,
			"duration_ms":   rec.DurationMS,
			"retry_count":   rec.RetryCount,
			"created_at":    rec.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
