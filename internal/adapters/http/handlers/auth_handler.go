package handlers

import (
	"strings"

	"energia-backend/internal/adapters/http/middleware"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles identity endpoints
type AuthHandler struct {
	identity *services.IdentityService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	KtuID      string `json:"ktu_id"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Email      string `json:"email"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents change password request body
type ChangePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ResetRequest represents a password reset request body
type ResetRequest struct {
	Username string `json:"username"`
}

// ConfirmResetRequest represents a password reset confirmation body
type ConfirmResetRequest struct {
	Username    string `json:"username"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest represents student profile fields
type UpdateProfileRequest struct {
	KtuID      string `json:"ktu_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

// InviteRequest represents an admin invitation body
type InviteRequest struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	KtuID      string `json:"ktu_id"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Email      string `json:"email"`
}

// ResendInviteRequest represents a resend invitation body
type ResendInviteRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Register handles principal registration
// @Summary Register
// @Description Register a coordinator, admin or allow-listed class representative
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Registration data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	err := h.identity.Register(c.UserContext(), &services.RegisterInput{
		Username:   req.Username,
		Password:   req.Password,
		Role:       req.Role,
		KtuID:      req.KtuID,
		Department: req.Department,
		Year:       req.Year,
		Email:      req.Email,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{"status": "ok"})
}

// Login handles login
// @Summary Login
// @Description Authenticate by KTU id or username and return a bearer token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	result, err := h.identity.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"access_token": result.AccessToken,
		"token_type":   result.TokenType,
	})
}

// ChangePassword handles password change
// @Summary Change password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ChangePasswordRequest true "Current and new password"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} response.Response
// @Router /change-password [post]
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	if err := h.identity.ChangePassword(c.UserContext(), req.Username, req.CurrentPassword, req.NewPassword); err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{"status": "Password updated successfully"})
}

// RequestPasswordReset emails a one-time code
// @Summary Request password reset
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ResetRequest true "KTU id or username"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /request-password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	result, err := h.identity.RequestPasswordReset(c.UserContext(), req.Username)
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"status":             "otp_sent",
		"expires_in_minutes": result.ExpiresInMinutes,
	})
}

// ConfirmPasswordReset sets a new password after verifying the code
// @Summary Confirm password reset
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ConfirmResetRequest true "Identifier, code and new password"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /confirm-password-reset [post]
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req ConfirmResetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	if err := h.identity.ConfirmPasswordReset(c.UserContext(), req.Username, req.OTP, req.NewPassword); err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"status":  "password_reset",
		"message": "Password updated successfully",
	})
}

// UpdateProfile updates a class representative profile and re-issues the token
// @Summary Update profile
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /update-profile [post]
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	// Only the owner of the KTU id, or an admin, may update it
	claims := middleware.GetClaims(c)
	if claims == nil {
		return response.Unauthorized(c, response.CodeUnauthorized, "Unauthorized")
	}
	if domain.Role(claims.Role) != domain.RoleAdmin {
		if claims.KtuID == nil || !strings.EqualFold(*claims.KtuID, strings.TrimSpace(req.KtuID)) {
			return response.Forbidden(c, response.CodeForbidden, "You can only update your own profile")
		}
	}

	result, err := h.identity.UpdateProfile(c.UserContext(), &services.UpdateProfileInput{
		KtuID:      req.KtuID,
		Name:       req.Name,
		Department: req.Department,
		Year:       req.Year,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"status":       "Profile updated successfully",
		"access_token": result.AccessToken,
		"token_type":   result.TokenType,
	})
}

// InviteUser provisions a principal with a temporary password
// @Summary Invite user
// @Description Create or refresh a principal and email a temporary password
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body InviteRequest true "Invitation"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/invite-user [post]
func (h *AuthHandler) InviteUser(c *fiber.Ctx) error {
	var req InviteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	result, err := h.identity.InviteUser(c.UserContext(), &services.InviteInput{
		Username:   req.Username,
		Role:       req.Role,
		Name:       req.Name,
		KtuID:      req.KtuID,
		Department: req.Department,
		Year:       req.Year,
		Email:      req.Email,
	})
	if err != nil {
		return handleError(c, err)
	}

	message := "Invitation sent"
	if result.DeliveryErr != nil {
		message = "Invitation created but email sending failed"
	}

	return response.JSON(c, fiber.Map{
		"status":       "User " + result.Action + " successfully",
		"username":     result.Username,
		"role":         result.Role,
		"email_status": result.EmailStatus,
		"message":      message,
	})
}

// ResendInvite re-sends an invitation with a fresh temporary password
// @Summary Resend invitation
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ResendInviteRequest true "Principal to re-invite"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /admin/resend-invite [post]
func (h *AuthHandler) ResendInvite(c *fiber.Ctx) error {
	var req ResendInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, response.CodeValidation, invalidBody)
	}

	result, err := h.identity.ResendInvite(c.UserContext(), req.Username, req.Role)
	if err != nil {
		return handleError(c, err)
	}

	return response.JSON(c, fiber.Map{
		"status":       "Invitation resent",
		"username":     result.Username,
		"role":         result.Role,
		"email_status": result.EmailStatus,
	})
}
