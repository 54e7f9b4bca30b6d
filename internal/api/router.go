package api

import (
	"context"
	"time"

	"expense-tracker/docs"
	"expense-tracker/internal/api/handlers"
	"expense-tracker/internal/metrics"
	"expense-tracker/pkg/auth"
	"expense-tracker/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Receipt    *handlers.ReceiptHandler
	Expense    *handlers.ExpenseHandler
	VoiceToken *handlers.VoiceTokenHandler
}

type RouterConfig struct {
	BodyLimit        int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	JWTManager       *auth.JWTManager
	ValidateLimiter  *middleware.RateLimiter
	AuthLimiter      *middleware.RateLimiter
	DisableAccessLog bool

	// HealthChecks are probed by /health; any failure turns it into a 503.
	HealthChecks map[string]func(ctx context.Context) error
}

func SetupRouter(h Handlers, cfg RouterConfig, appLogger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			} else {
				appLogger.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{
				"error": msg,
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	if !cfg.DisableAccessLog {
		app.Use(logger.New())
	}
	app.Use(metrics.Middleware())

	app.Get("/health", healthHandler(cfg.HealthChecks))
	app.Get("/metrics", metrics.Handler())

	// Importing docs registers the OpenAPI document with swag.
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := app.Group("/user/auth")
	if cfg.AuthLimiter != nil {
		authGroup.Post("/register", middleware.RateLimitByIP(cfg.AuthLimiter), h.Auth.Register)
		authGroup.Post("/login", middleware.RateLimitByIP(cfg.AuthLimiter), h.Auth.Login)
	} else {
		authGroup.Post("/register", h.Auth.Register)
		authGroup.Post("/login", h.Auth.Login)
	}
	authGroup.Post("/refresh", h.Auth.RefreshToken)

	// Called by the voice channel, which has no user session.
	app.Post("/voice/validate", middleware.RateLimitByIP(cfg.ValidateLimiter), h.VoiceToken.ValidateToken)

	protected := app.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTManager, appLogger))

	voice := protected.Group("/voice-token")
	voice.Post("", h.VoiceToken.IssueToken)
	voice.Get("", h.VoiceToken.GetStatus)
	voice.Delete("", h.VoiceToken.RevokeToken)

	receipts := protected.Group("/receipts")
	receipts.Post("/upload", h.Receipt.UploadReceipt)
	receipts.Get("", h.Receipt.ListReceipts)
	receipts.Post("/:id/process", h.Receipt.ProcessReceipt)

	protected.Get("/expenses/export", h.Expense.ExportCSV)

	return app
}

func healthHandler(checks map[string]func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.StatusOK
		results := make(fiber.Map, len(checks))
		for name, check := range checks {
			if err := check(c.Context()); err != nil {
				status = fiber.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != fiber.StatusOK {
			overall = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": overall,
			"checks": results,
		})
	}
}
