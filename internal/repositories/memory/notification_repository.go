package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[primitive.ObjectID]*models.Notification
}

var _ interfaces.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[primitive.ObjectID]*models.Notification)}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *notification
	r.notifications[stored.ID] = &stored
	return nil
}

func (r *NotificationRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	all := make([]*models.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID == userID {
			cp := *n
			all = append(all, &cp)
		}
	}
	r.mu.RUnlock()

	// newest first; ObjectIDs break ties within the same instant
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.Hex() > all[j].ID.Hex()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := min(params.GetSkip(), total)
	end := min(start+params.GetLimit(), total)
	return all[start:end], int64(total), nil
}

func (r *NotificationRepository) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var modified int64
	for _, id := range ids {
		n, ok := r.notifications[id]
		if !ok || n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &now
		modified++
	}
	return modified, nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var modified int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			modified++
		}
	}
	return modified, nil
}
