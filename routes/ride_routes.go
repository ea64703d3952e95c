package routes

import (
	"ridelink/internal/handlers"
	"ridelink/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up ride lifecycle and relay routes
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler) {
	rides := r.Group("/rides")
	{
		rides.POST("", middleware.DriverRequired(), rideHandler.CreateRide)
		rides.GET("/:id", rideHandler.GetRide)
		rides.GET("/:id/bookings", rideHandler.ListBookings)

		// Lifecycle
		rides.POST("/:id/start", rideHandler.StartRide)
		rides.POST("/:id/end", rideHandler.EndRide)
		rides.POST("/:id/cancel", rideHandler.CancelRide)

		// Live location and chat
		rides.PUT("/:id/location", rideHandler.UpdateLocation)
		rides.POST("/:id/messages", rideHandler.SendMessage)
		rides.GET("/:id/messages", rideHandler.GetMessages)
	}
}
