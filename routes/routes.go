package routes

import (
	controller "mailwarm/controllers"
	"mailwarm/middleware"
	"mailwarm/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options carries the pieces of the route tree that depend on deployment.
type Options struct {
	// LimiterStorage backs the account test rate limiter. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
	TestRateLimit  int
	ActivityLimit  int
	// DisableRequestLog turns off the per-request access log.
	DisableRequestLog bool
	// Metrics exposes the Prometheus registry on /metrics.
	Metrics bool
}

func requestLog(opts Options) fiber.Handler {
	if opts.DisableRequestLog {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB, opts Options) {
	authController := controller.NewAuthController(db, logrus.WithField("controller", "auth"))
	auth := app.Group("/auth", requestLog(opts))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected(db))
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Post("/change-password", authController.ChangePassword)
	protectedAuth.Get("/me", authController.Me)

	logrus.Info("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, opts Options) {
	settingsController := controller.NewSettingsController(db, logrus.WithField("controller", "settings"))
	accountController := controller.NewEmailAccountController(db, logrus.WithField("controller", "email_accounts"))
	warmupController := controller.NewWarmupController(db, logrus.WithField("controller", "warmup"))
	dashboardController := controller.NewDashboardController(db, logrus.WithField("controller", "dashboard"), opts.ActivityLimit)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(db), requestLog(opts))

	// Settings routes
	settings := api.Group("/settings")
	settings.Get("/account", settingsController.GetAccountSettings)
	settings.Put("/account", settingsController.UpdateAccountSettings)
	settings.Get("/notifications", settingsController.GetNotificationSettings)
	settings.Put("/notifications", settingsController.UpdateNotificationSettings)
	settings.Get("/timing", settingsController.GetTimingSettings)
	settings.Put("/timing", settingsController.UpdateTimingSettings)

	api.Get("/setup/status", settingsController.GetSetupStatus)

	// Email account routes
	accounts := api.Group("/email-accounts")
	accounts.Get("/", accountController.ListEmailAccounts)
	accounts.Post("/", accountController.CreateEmailAccount)
	accounts.Get("/:id", accountController.GetEmailAccount)
	accounts.Put("/:id", accountController.UpdateEmailAccount)
	accounts.Delete("/:id", accountController.DeleteEmailAccount)
	accounts.Post("/:id/toggle", accountController.ToggleEmailAccount)
	accounts.Post("/:id/test",
		middleware.AccountTestRateLimiter(opts.TestRateLimit, opts.LimiterStorage),
		accountController.TestEmailAccount)

	// Warmup preview routes
	warmup := api.Group("/warmup")
	warmup.Get("/plan", warmupController.GetPlan)
	warmup.Get("/schedule", warmupController.GetSchedule)

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetDashboardStats)
	dashboard.Get("/metrics", dashboardController.GetActivityOverTime)
	dashboard.Get("/activity", dashboardController.GetRecentActivity)

	logrus.Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, opts Options) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if opts.Metrics {
		app.Get("/metrics", utils.MetricsHandler())
	}

	SetupAuthRoutes(app, db, opts)
	SetupAPIRoutes(app, db, opts)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
