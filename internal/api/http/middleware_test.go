package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/api/http/handlers"
	"github.com/spec-kit/triage-bot/internal/auth"
	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/observability"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newLoginApp(t *testing.T) *fiber.App {
	t.Helper()

	hash, err := auth.HashPassword("s3cret", 4)
	require.NoError(t, err)

	cfg := config.AuthConfig{
		AdminUsername:     "ops",
		AdminPasswordHash: hash,
	}
	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 5*time.Second)

	admin := handlers.NewAdminHandler(cfg, tokens)
	app.Post("/auth/admin/login", admin.Login)
	return app
}

func TestValidationErrorsReturnBadRequest(t *testing.T) {
	app := newLoginApp(t)

	req := httptest.NewRequest("POST", "/auth/admin/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "invalid payload", body.Error.Message)
}

func TestMissingFieldsReturnBadRequest(t *testing.T) {
	app := newLoginApp(t)

	req := httptest.NewRequest("POST", "/auth/admin/login", strings.NewReader(`{"username":"ops"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
}

func TestBadCredentialsReturnUnauthorized(t *testing.T) {
	app := newLoginApp(t)

	req := httptest.NewRequest("POST", "/auth/admin/login", strings.NewReader(`{"username":"ops","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "UNAUTHORIZED", body.Error.Code)
}
