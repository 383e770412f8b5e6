package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/generations"
	"photoshoot-backend/internal/packages"
	"photoshoot-backend/internal/payments"
	"photoshoot-backend/internal/presets"
	"photoshoot-backend/internal/realtime"
	"photoshoot-backend/internal/services/health"
	"photoshoot-backend/internal/shared/config"
	"photoshoot-backend/internal/shared/metrics"
	"photoshoot-backend/internal/shared/server/middleware"
	"photoshoot-backend/internal/shared/server/respond"
	"photoshoot-backend/internal/telegramauth"
	"photoshoot-backend/internal/users"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config            config.Config
	Tokens            middleware.TokenValidator
	Health            *health.Service
	AuthHandler       *telegramauth.Handler
	UserHandler       *users.Handler
	GenerationHandler *generations.Handler
	PresetHandler     *presets.Handler
	PackageHandler    *packages.Handler
	PaymentHandler    *payments.Handler
	RealtimeHandler   *realtime.Handler
	Limiter           *middleware.RateLimiter
}

var (
	codeRateRule       = middleware.RateLimitRule{Rate: 1.0 / 20, Burst: 3}
	generationRateRule = middleware.RateLimitRule{Rate: 1.0 / 6, Burst: 5}
	paymentRateRule    = middleware.RateLimitRule{Rate: 1.0 / 6, Burst: 5}
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}

	healthHandler := func(c *gin.Context) {
		body, ok := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, body)
	}
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", healthHandler)

	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterRoutes(api.Group("/auth"), middleware.RateLimit(limiter, "auth_code", codeRateRule))
	}
	if deps.PackageHandler != nil {
		deps.PackageHandler.RegisterRoutes(api.Group("/packages"))
	}
	if deps.PaymentHandler != nil {
		deps.PaymentHandler.RegisterWebhook(api.Group("/payments"))
	}
	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.RegisterRoutes(api)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(deps.Tokens))

	usersGroup := authed.Group("/users")
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(usersGroup)
	}
	if deps.GenerationHandler != nil {
		deps.GenerationHandler.RegisterUserRoutes(usersGroup)
	}
	if deps.PresetHandler != nil {
		deps.PresetHandler.RegisterUserRoutes(usersGroup)
	}

	generationGroup := authed.Group("/generation")
	if deps.PresetHandler != nil {
		deps.PresetHandler.RegisterRoutes(generationGroup)
	}
	if deps.GenerationHandler != nil {
		generationGroup.Use(middleware.RateLimit(limiter, "generation", generationRateRule))
		deps.GenerationHandler.RegisterRoutes(generationGroup)
	}

	if deps.PaymentHandler != nil {
		paymentGroup := authed.Group("/payments")
		paymentGroup.Use(middleware.RateLimit(limiter, "payments", paymentRateRule))
		deps.PaymentHandler.RegisterRoutes(paymentGroup)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
