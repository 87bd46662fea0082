package response

import "github.com/gofiber/fiber/v2"

// Machine-readable error codes
const (
	CodeValidation         = "validation_error"
	CodeNotAuthorized      = "not_authorized"
	CodeConflict           = "conflict"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeNoActiveRequest    = "no_active_request"
	CodeOTPExpired         = "otp_expired"
	CodeDeliveryFailed     = "delivery_failed"
	CodeUnavailable        = "service_unavailable"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// Response represents a standard API error response
type Response struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// JSON sends a flat success payload
func JSON(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

// Error sends an error response. detail mirrors message for clients reading "detail".
func Error(c *fiber.Ctx, statusCode int, code, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: false,
		Code:    code,
		Error:   message,
		Detail:  message,
	})
}

// BadRequest sends a 400 bad request response
func BadRequest(c *fiber.Ctx, code, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(c *fiber.Ctx, code, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

// Forbidden sends a 403 forbidden response
func Forbidden(c *fiber.Ctx, code, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

// NotFound sends a 404 not found response
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message)
}

// Conflict sends a 409 conflict response
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message)
}

// BadGateway sends a 502 response for failed upstream deliveries
func BadGateway(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeDeliveryFailed, message)
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeUnavailable, message)
}

// InternalServerError sends a 500 internal server error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeInternal, message)
}
