package middleware

import (
	"time"

	"energia-backend/internal/config"
	"energia-backend/internal/pkg/metrics"
	"energia-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Setup configures all middlewares for the application.
// storage backs the rate limiters; nil keeps counters in memory.
func Setup(app *fiber.App, cfg *config.Config, m *metrics.Metrics, storage fiber.Storage) {
	// Recover middleware - catches panics
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDev()}))

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	app.Use(RequestLogger(m))

	// Gzip Compression middleware
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Security Headers middleware (Helmet)
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "SAMEORIGIN",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))

	// General API limiter, 100 requests per minute per IP
	app.Use(newLimiter(100, "general", storage, "Too many requests"))

	// CORS middleware
	if cfg.IsDev() {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     "*",
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
			AllowCredentials: false, // Cannot be true with AllowOrigins: "*"
		}))
	} else {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.GetAllowedOrigins(),
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
			AllowCredentials: true,
		}))
	}
}

// AuthRateLimiter is the stricter limiter for login and registration.
// 10 requests per minute per IP.
func AuthRateLimiter(storage fiber.Storage) fiber.Handler {
	return newLimiter(10, "auth", storage, "Too many login attempts, please wait a minute")
}

// StrictRateLimiter guards password reset endpoints, 5 requests per minute per IP
func StrictRateLimiter(storage fiber.Storage) fiber.Handler {
	return newLimiter(5, "strict", storage, "Rate limit exceeded, please try again later")
}

func newLimiter(limit int, bucket string, storage fiber.Storage, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: 1 * time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "-" + bucket
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Warn().Str("ip", c.IP()).Str("bucket", bucket).Str("path", c.Path()).Msg("🚦 Rate limit reached")
			return response.Error(c, fiber.StatusTooManyRequests, response.CodeRateLimited, message)
		},
	})
}

// CustomErrorHandler handles errors globally
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ Unhandled error")
	}

	return response.Error(c, code, errorCode(code), message)
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return response.CodeValidation
	case fiber.StatusUnauthorized:
		return response.CodeUnauthorized
	case fiber.StatusForbidden:
		return response.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return response.CodeNotFound
	case fiber.StatusTooManyRequests:
		return response.CodeRateLimited
	case fiber.StatusServiceUnavailable:
		return response.CodeUnavailable
	default:
		return response.CodeInternal
	}
}
