package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/api/dto"
	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
	"github.com/spec-kit/triage-bot/internal/scheduler"
	apperrors "github.com/spec-kit/triage-bot/pkg/util/errorutil"
)

const signatureHeader = "X-Hub-Signature"

// handledEvents maps webhook event names to the trigger recorded on the task.
var handledEvents = map[string]string{
	"jira:issue_created": "issue_created",
	"jira:issue_updated": "issue_updated",
	"comment_created":    "comment_created",
}

// WebhookHandler receives issue events and turns them into tasks.
type WebhookHandler struct {
	cfg       config.Config
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(cfg config.Config, sched *scheduler.Scheduler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, scheduler: sched, logger: logger}
}

// Receive handles POST /webhooks/jira.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()
	if h.cfg.Webhook.VerifySignature {
		if err := h.verifySignature(c.Get(signatureHeader), body); err != nil {
			return err
		}
	}

	var payload dto.JiraWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if payload.Issue == nil || payload.Issue.Key == "" {
		return apperrors.NewValidationError("issue key required", nil)
	}

	trigger, handled := handledEvents[payload.WebhookEvent]
	if !handled {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"data": fiber.Map{"accepted": false, "reason": "event not handled"},
		})
	}
	if !h.cfg.Jira.ShouldProcessProject(payload.Issue.Fields.Project.Key) {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"data": fiber.Map{"accepted": false, "reason": "project not configured"},
		})
	}
	if !h.cfg.Jira.ShouldProcessIssueType(payload.Issue.Fields.IssueType.Name) {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"data": fiber.Map{"accepted": false, "reason": "issue type not handled"},
		})
	}

	priority := domain.PriorityNormal
	if h.cfg.Quality.IsHighPriority(payload.Issue.Fields.Priority.Name) {
		priority = domain.PriorityHigh
	}

	taskID, deduped, err := h.scheduler.Submit(c.UserContext(), payload.Issue.Key, trigger, priority, domain.ProcessingOptions{})
	if err != nil {
		return apperrors.MapError(err)
	}

	h.logger.Info("webhook accepted",
		zap.String("ticket_key", payload.Issue.Key),
		zap.String("event", payload.WebhookEvent),
		zap.Bool("deduped", deduped))

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.SubmitTaskResponse{TaskID: taskID, Deduped: deduped},
	})
}

// verifySignature checks the HMAC-SHA256 digest Jira attaches to the body.
func (h *WebhookHandler) verifySignature(header string, body []byte) error {
	if h.cfg.Webhook.Secret == "" {
		return apperrors.NewUnauthorized("webhook secret not configured")
	}
	if header == "" {
		return apperrors.NewUnauthorized("missing signature header")
	}
	provided := strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.cfg.Webhook.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return apperrors.NewUnauthorized("invalid signature")
	}
	return nil
}
