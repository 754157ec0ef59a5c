package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-bot/internal/api/dto"
	"github.com/spec-kit/triage-bot/internal/auth"
	"github.com/spec-kit/triage-bot/internal/config"
	apperrors "github.com/spec-kit/triage-bot/pkg/util/errorutil"
)

// AdminHandler exposes operator login.
type AdminHandler struct {
	cfg    config.AuthConfig
	tokens *auth.TokenManager
}

// NewAdminHandler constructs handler.
func NewAdminHandler(cfg config.AuthConfig, tokens *auth.TokenManager) *AdminHandler {
	return &AdminHandler{cfg: cfg, tokens: tokens}
}

// Login handles POST /auth/admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	if req.Username != h.cfg.AdminUsername {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(h.cfg.AdminPasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := h.tokens.GenerateToken(req.Username)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}
