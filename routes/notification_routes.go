package routes

import (
	"ridelink/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupNotificationRoutes sets up notification listing and read tracking
func SetupNotificationRoutes(r *gin.RouterGroup, notificationHandler *handlers.NotificationHandler) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("/:userId", notificationHandler.GetNotifications)
		notifications.PUT("/:userId", notificationHandler.MarkRead)
		notifications.PUT("/:userId/read-all", notificationHandler.MarkAllRead)
	}
}
