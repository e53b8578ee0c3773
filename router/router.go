package router

import (
	"context"

	"payverify/handler"
	"payverify/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.elastic.co/apm/module/apmfiber"
)

type Handlers struct {
	Payments      *handler.PaymentHandler
	Verifications *handler.VerificationHandler
	Health        func(ctx context.Context) error
	JWTSecret     string
}

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", logger.New())
	api.Use(apmfiber.Middleware())
	api.Use(middleware.TrackMetrics())
	api.Get("/", handler.Hello)
	api.Get("/health", handler.Health(h.Health))

	payments := api.Group("/payments")
	payments.Post("/", h.Payments.CreatePayment)
	payments.Get("/verify/:id", h.Payments.VerifyPayment)
	payments.Get("/:id", middleware.Protected(h.JWTSecret), middleware.AdminOnly(false), h.Payments.GetTransactionByID)

	api.Post("/callback/:method", h.Payments.ProviderCallback)

	verifications := api.Group("/verifications")
	verifications.Post("/", h.Verifications.StartVerification)
	verifications.Get("/:id", h.Verifications.GetVerification)
	verifications.Delete("/:id", h.Verifications.StopVerification)
	verifications.Get("/:id/logs", middleware.Protected(h.JWTSecret), middleware.AdminOnly(false), h.Verifications.GetVerificationLogs)
}
