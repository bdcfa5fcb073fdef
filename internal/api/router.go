package api

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/suiichiba/marketplace/internal/api/handler"
	"github.com/suiichiba/marketplace/internal/api/middleware"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const metricsSubsystem = "http"

// httpMetrics registers the HTTP collectors once per process, however many
// routers are built.
var httpMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware(metricsSubsystem)
})

// Dependencies are the services and adapters the HTTP layer is built on.
type Dependencies struct {
	Auth       ports.AuthService
	Sessions   ports.SessionService
	Products   ports.ProductService
	Messages   ports.MessageService
	Escrows    ports.EscrowService
	Payments   ports.PaymentService
	Balances   ports.BalanceService
	Converter  ports.Converter
	Profiles   ports.ProfileService
	Dashboard  ports.DashboardService
	Files      ports.ObjectStore
	Dispatcher handler.DepositDispatcher
	Webhooks   handler.SignatureVerifier
	Reconciler handler.Sweeper

	// SignInLimiter throttles the unauthenticated auth endpoints per client IP.
	SignInLimiter middleware.Limiter
	HealthChecks  []handler.HealthCheck
	// Swagger mounts the API docs under /swagger/.
	Swagger bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit("8M"))
	e.Use(httpMetrics())

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Sessions)
	productHandler := handler.NewProductHandler(deps.Products)
	messageHandler := handler.NewMessageHandler(deps.Messages)
	escrowHandler := handler.NewEscrowHandler(deps.Escrows)
	paymentHandler := handler.NewPaymentHandler(deps.Payments, deps.Balances, deps.Converter)
	profileHandler := handler.NewProfileHandler(deps.Profiles, deps.Dashboard)
	fileHandler := handler.NewFileHandler(deps.Files)
	webhookHandler := handler.NewWebhookHandler(deps.Dispatcher, deps.Webhooks, deps.Payments)
	adminHandler := handler.NewAdminHandler(deps.Balances, deps.Reconciler)
	healthHandler := handler.NewHealthHandler(deps.HealthChecks...)

	requireAuth := middleware.Auth(deps.Sessions)
	limit := middleware.RateLimit(deps.SignInLimiter)

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	if deps.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/sign-in", authHandler.SignIn, limit)
	auth.POST("/sign-up", authHandler.SignUp, limit)
	auth.GET("/email-link/complete", authHandler.CompleteEmailLink)
	auth.POST("/password-reset", authHandler.SendPasswordReset, limit)
	auth.POST("/password-reset/confirm", authHandler.ResetPassword)
	auth.GET("/verify-email", authHandler.VerifyEmail)
	auth.POST("/verify-email/send", authHandler.SendEmailVerification, requireAuth)
	auth.POST("/sign-out", authHandler.SignOut, requireAuth)
	auth.GET("/session", authHandler.Session, requireAuth)
	auth.GET("/session/stream", authHandler.SessionStream, requireAuth)

	// --- Payment gateway callbacks ---
	functions := e.Group("/functions/paystack")
	functions.POST("/webhook", webhookHandler.Paystack)
	functions.GET("/callback", webhookHandler.PaystackCallback)

	// --- Marketplace ---
	v1 := e.Group("/v1")
	v1.GET("/products", productHandler.Search)
	v1.GET("/products/categories", productHandler.Categories)
	v1.GET("/products/:id", productHandler.Get)
	v1.POST("/products", productHandler.Create, requireAuth)
	v1.PATCH("/products/:id", productHandler.Update, requireAuth)
	v1.DELETE("/products/:id", productHandler.Delete, requireAuth)
	v1.POST("/uploads/images", productHandler.UploadImage, requireAuth)
	v1.GET("/files/*", fileHandler.Get)

	v1.GET("/messages", messageHandler.List, requireAuth)
	v1.POST("/messages", messageHandler.Send, requireAuth)
	v1.GET("/messages/stream", messageHandler.Stream, requireAuth)

	v1.POST("/escrows", escrowHandler.Create, requireAuth)
	v1.GET("/escrows", escrowHandler.List, requireAuth)
	v1.POST("/escrows/:id/confirm", escrowHandler.Confirm, requireAuth)

	v1.GET("/conversions", paymentHandler.Convert)
	v1.GET("/deposits", paymentHandler.Deposits, requireAuth)
	v1.POST("/payments/initialize", paymentHandler.Initialize, requireAuth)
	v1.POST("/payments/verify", paymentHandler.Verify, requireAuth)
	v1.POST("/payments/wallet", paymentHandler.WalletDeposit, requireAuth)

	v1.GET("/profile", profileHandler.Get, requireAuth)
	v1.PATCH("/profile", profileHandler.Update, requireAuth)
	v1.POST("/profile/avatar", profileHandler.UploadAvatar, requireAuth)
	v1.PUT("/profile/wallet", profileHandler.SetWallet, requireAuth)
	v1.PUT("/settings/password", authHandler.ChangePassword, requireAuth)
	v1.GET("/dashboard", profileHandler.Dashboard, requireAuth)

	admin := v1.Group("/admin", requireAuth, middleware.RBAC(domain.RoleAdmin))
	admin.POST("/deposits/:reference/redrive", adminHandler.Redrive)
	admin.POST("/reconcile", adminHandler.Reconcile)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
