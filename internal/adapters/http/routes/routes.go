package routes

import (
	"energia-backend/internal/adapters/http/handlers"
	"energia-backend/internal/adapters/http/middleware"
	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/config"
	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/jwt"
	"energia-backend/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
)

// Deps are the collaborators the HTTP surface is built from
type Deps struct {
	Config  *config.Config
	Store   repositories.Store
	Mailer  services.Mailer
	Metrics *metrics.Metrics
	// LimiterStorage backs the rate limiters; nil keeps counters in memory
	LimiterStorage fiber.Storage
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps *Deps) {
	cfg := deps.Config

	// Initialize services
	issuer := jwt.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	otpService := services.NewOTPService(cfg.Reset.OTPLength, cfg.Reset.OTPTTL, cfg.Reset.MaxAttempts, nil)
	notifyService := services.NewNotificationService(deps.Mailer, cfg.Mail.Timeout, deps.Metrics)
	identityService := services.NewIdentityService(deps.Store, issuer, otpService, notifyService, deps.Metrics)
	userService := services.NewUserService(deps.Store)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.Store, cfg.AppMode)
	authHandler := handlers.NewAuthHandler(identityService)
	userHandler := handlers.NewUserHandler(userService)
	notifyHandler := handlers.NewNotifyHandler(notifyService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/ping", healthHandler.Ping)
	app.Get("/health", healthHandler.HealthCheck)

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Identity routes are served at the root and under /auth, sharing one set of limiters
	limits := authLimits{
		auth:   middleware.AuthRateLimiter(deps.LimiterStorage),
		strict: middleware.StrictRateLimiter(deps.LimiterStorage),
	}
	for _, router := range []fiber.Router{app, app.Group("/auth")} {
		setupAuthRoutes(router, authHandler, issuer, limits)
	}

	// Admin routes
	adminRoutes := app.Group("/admin", middleware.AuthMiddleware(issuer), middleware.AdminOnly())
	adminRoutes.Post("/invite-user", authHandler.InviteUser)
	adminRoutes.Post("/resend-invite", authHandler.ResendInvite)

	// User management routes (Admin only)
	userRoutes := app.Group("/users", middleware.AuthMiddleware(issuer), middleware.AdminOnly())
	setupUserRoutes(userRoutes, userHandler)

	// Notification routes (Coordinator/Admin)
	notifyRoutes := app.Group("/notify", middleware.AuthMiddleware(issuer), middleware.StaffOnly())
	notifyRoutes.Post("/alert", notifyHandler.Alert)
	notifyRoutes.Post("/update", notifyHandler.Update)
}

// authLimits holds the limiters guarding public identity routes
type authLimits struct {
	auth   fiber.Handler
	strict fiber.Handler
}

// setupAuthRoutes configures identity routes on router
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, issuer *jwt.Issuer, limits authLimits) {
	noCache := middleware.NoCacheHeaders()

	// Public routes
	router.Post("/register", limits.auth, handler.Register)
	router.Post("/login", limits.auth, noCache, handler.Login)
	router.Post("/change-password", limits.auth, handler.ChangePassword)
	router.Post("/request-password-reset", limits.strict, handler.RequestPasswordReset)
	router.Post("/confirm-password-reset", limits.strict, handler.ConfirmPasswordReset)

	// Protected routes
	router.Post("/update-profile", middleware.AuthMiddleware(issuer), noCache, handler.UpdateProfile)
}

// setupUserRoutes configures user administration routes
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/coordinators", handler.ListCoordinators)
	router.Get("/class-representatives", handler.ListClassRepresentatives)
	router.Get("/counts", handler.Counts)
	router.Delete("/:username", handler.DeleteUser)
}
