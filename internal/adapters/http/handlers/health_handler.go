package handlers

import (
	"context"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const healthTimeout = 2 * time.Second

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store repositories.Store
	mode  string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store repositories.Store, mode string) *HealthHandler {
	return &HealthHandler{store: store, mode: mode}
}

// Root handles root endpoint
// @Summary Root endpoint
// @Description Returns API status
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "⚡ ENERGIA API is running",
		"mode":    h.mode,
		"docs":    "/swagger/index.html",
	})
}

// Ping is a liveness check that never touches the store
// @Summary Ping
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ping [get]
func (h *HealthHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "pong"})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check API and database health
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	dbStatus := "healthy"
	if err := h.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Database health check failed")
		dbStatus = "unhealthy"
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"checks": fiber.Map{
			"api":      "healthy",
			"database": dbStatus,
		},
	})
}
