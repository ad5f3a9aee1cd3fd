package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnhub/learnhub-payments/internal/domain"
	"github.com/learnhub/learnhub-payments/internal/logging"
)

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, ginMode, serviceAPIKey string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logging.New("http")))

	// Health and metrics (public)
	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes (server-to-server, requires Bearer auth)
	v1 := router.Group("/api/v1")
	v1.Use(ServiceAuthMiddleware(serviceAPIKey))
	{
		v1.POST("/enrollments/:courseId", handler.Enroll)
		v1.POST("/payments/:orderId/init", handler.InitPayment)
	}

	// Gateway callback endpoints (public; the transaction identifier is the
	// correlation key, unknown identifiers are rejected by the reconciler).
	// The gateway redirects the browser here with POST, some flows use GET.
	callbacks := router.Group("/payments")
	{
		for _, route := range []struct {
			path    string
			outcome domain.Outcome
		}{
			{"/success", domain.OutcomeSuccess},
			{"/fail", domain.OutcomeFail},
			{"/cancel", domain.OutcomeCancel},
		} {
			callbacks.GET(route.path, handler.Callback(route.outcome))
			callbacks.POST(route.path, handler.Callback(route.outcome))
		}

		// IPN/operator-triggered validation (requires Bearer auth).
		callbacks.POST("/validate", ServiceAuthMiddleware(serviceAPIKey), handler.Validate)
	}

	return router
}
