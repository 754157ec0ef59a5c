package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-bot/internal/api/http/handlers"
	"github.com/spec-kit/triage-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Webhook        *handlers.WebhookHandler
	Tasks          *handlers.TasksHandler
	Quality        *handlers.QualityHandler
	Runs           *handlers.RunsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/webhooks/jira", cfg.Webhook.Receive)

	authGroup := app.Group("/auth")
	authGroup.Post("/admin/login", cfg.Admin.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Post("/tasks", cfg.Tasks.Submit)
	api.Get("/tasks/:id", cfg.Tasks.Status)
	api.Get("/queue/stats", cfg.Tasks.QueueStats)
	api.Delete("/queue/pending", cfg.Tasks.PurgePending)
	api.Post("/quality/assess", cfg.Quality.Assess)
	api.Get("/quality/rules", cfg.Quality.Rules)
	api.Get("/runs/:key", cfg.Runs.ListByTicket)
}
