package interfaces

import (
	"context"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error)
	GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)

	// MarkAsRead flips only the ids owned by userID; foreign ids are ignored.
	MarkAsRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
