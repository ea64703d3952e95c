package routes

import (
	"ridelink/internal/handlers"
	"ridelink/internal/middleware"
	"ridelink/pkg/logger"
	"ridelink/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Booking      *handlers.BookingHandler
	Ride         *handlers.RideHandler
	Notification *handlers.NotificationHandler
	Health       *handlers.HealthHandler
	WebSocket    *websocket.Handler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	WebSocketPath  string
}

// NewRouter builds the gin engine with the global middleware chain and every
// route group.
func NewRouter(h *Handlers, opts Options, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(opts.AllowedOrigins))

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthRequired(opts.JWTSecret, log)

	wsPath := opts.WebSocketPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	router.GET(wsPath, auth, h.WebSocket.HandleWebSocket)

	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		SetupRideRoutes(v1, h.Ride)
		SetupBookingRoutes(v1, h.Booking)
		SetupNotificationRoutes(v1, h.Notification)
	}

	return router
}
