package routes

import (
	"ridelink/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes sets up booking request and decision routes
func SetupBookingRoutes(r *gin.RouterGroup, bookingHandler *handlers.BookingHandler) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", bookingHandler.CreateBooking)
		bookings.GET("/:id", bookingHandler.GetBooking)
		bookings.PUT("/:id", bookingHandler.DecideBooking)
	}
}
