package handlers

import (
	"net/url"

	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/pagination"
	"energia-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles principal administration endpoints
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// ListCoordinators lists coordinators
// @Summary List coordinators
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} map[string]interface{}
// @Router /users/coordinators [get]
func (h *UserHandler) ListCoordinators(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	coordinators, total, err := h.users.ListCoordinators(c.UserContext(), params)
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"coordinators": coordinators,
		"total":        total,
		"meta":         pagination.GetMeta(params, total),
	})
}

// ListClassRepresentatives lists class representatives
// @Summary List class representatives
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} map[string]interface{}
// @Router /users/class-representatives [get]
func (h *UserHandler) ListClassRepresentatives(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	reps, total, err := h.users.ListClassRepresentatives(c.UserContext(), params)
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"class_representatives": reps,
		"total":                 total,
		"meta":                  pagination.GetMeta(params, total),
	})
}

// Counts returns per-role totals
// @Summary User counts
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /users/counts [get]
func (h *UserHandler) Counts(c *fiber.Ctx) error {
	counts, err := h.users.Counts(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"total_users":           counts.Total(),
		"coordinators":          counts.Coordinators,
		"class_representatives": counts.ClassRepresentatives,
		"admins":                counts.Admins,
	})
}

// DeleteUser deletes a coordinator or class representative
// @Summary Delete user
// @Description Admin accounts are never deleted
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username or KTU id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.Response
// @Router /users/{username} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	username, err := url.PathUnescape(c.Params("username"))
	if err != nil {
		return response.BadRequest(c, response.CodeValidation, "Invalid username")
	}

	deleted, err := h.users.DeleteUser(c.UserContext(), username)
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"status":        "success",
		"message":       "User '" + username + "' deleted successfully",
		"deleted_count": deleted,
	})
}
