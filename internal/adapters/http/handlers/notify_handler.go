package handlers

import (
	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// NotifyHandler handles alert and update broadcasts
type NotifyHandler struct {
	notifications *services.NotificationService
}

// NewNotifyHandler creates a new notify handler
func NewNotifyHandler(notifications *services.NotificationService) *NotifyHandler {
	return &NotifyHandler{notifications: notifications}
}

// BroadcastRequest represents an alert or update email
type BroadcastRequest struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Alert sends an alert email
// @Summary Send alert
// @Tags Notify
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BroadcastRequest true "Alert"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /notify/alert [post]
func (h *NotifyHandler) Alert(c *fiber.Ctx) error {
	return h.broadcast(c, services.BroadcastAlert)
}

// Update sends an update email
// @Summary Send update
// @Tags Notify
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BroadcastRequest true "Update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /notify/update [post]
func (h *NotifyHandler) Update(c *fiber.Ctx) error {
	return h.broadcast(c, services.BroadcastUpdate)
}

func (h *NotifyHandler) broadcast(c *fiber.Ctx, kind string) error {
	var req BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	recipients, err := h.notifications.Broadcast(c.UserContext(), kind, &services.BroadcastInput{
		Subject:    req.Subject,
		Body:       req.Body,
		Recipients: req.Recipients,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"status":     "sent",
		"type":       kind,
		"recipients": recipients,
	})
}
