package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-bot/internal/api/dto"
	"github.com/spec-kit/triage-bot/internal/quality"
	apperrors "github.com/spec-kit/triage-bot/pkg/util/errorutil"
)

// QualityHandler exposes dry-run assessments against the rule engine.
type QualityHandler struct {
	engine *quality.Engine
}

// NewQualityHandler constructs handler.
func NewQualityHandler(engine *quality.Engine) *QualityHandler {
	return &QualityHandler{engine: engine}
}

// Assess handles POST /api/quality/assess. The ticket snapshot comes
// from the request body; nothing is fetched or written upstream.
func (h *QualityHandler) Assess(c *fiber.Ctx) error {
	var req dto.AssessRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Summary == "" && req.Description == "" {
		return apperrors.NewValidationError("summary or description required", nil)
	}

	ticket := req.Ticket()
	assessment := h.engine.Assess(ticket)

	return c.JSON(fiber.Map{
		"data": dto.AssessResponse{
			TicketKey:    req.TicketKey,
			Quality:      string(assessment.OverallQuality),
			Score:        assessment.Score,
			IssuesFound:  assessment.IssuesFound,
			RuleResults:  assessment.RuleResults,
			Suggestions:  h.engine.Suggestions(assessment, ticket),
			RulesVersion: assessment.RulesVersion,
			AssessedAt:   assessment.AssessedAt,
		},
	})
}

// Rules handles GET /api/quality/rules.
func (h *QualityHandler) Rules(c *fiber.Ctx) error {
	rules := h.engine.Rules()
	infos := make([]dto.RuleInfo, 0, len(rules))
	for _, rule := range rules {
		infos = append(infos, dto.RuleInfo{
			Name:     string(rule.Name),
			Weight:   rule.Weight,
			Optional: !rule.Required,
		})
	}
	return c.JSON(fiber.Map{"data": infos})
}
