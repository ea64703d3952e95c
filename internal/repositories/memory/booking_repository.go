package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[primitive.ObjectID]*models.Booking
}

var _ interfaces.BookingRepository = (*BookingRepository)(nil)

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{bookings: make(map[primitive.ObjectID]*models.Booking)}
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	booking.ID = primitive.NewObjectID()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bookings {
		if existing.RideID == booking.RideID && existing.PassengerID == booking.PassengerID && existing.Status != models.BookingStatusCancelled {
			return fmt.Errorf("active booking on ride %s: %w", booking.RideID.Hex(), utils.ErrConflict)
		}
	}
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), utils.ErrNotFound)
	}
	return cloneBooking(booking), nil
}

func (r *BookingRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.BookingStatus, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok || booking.Status != from {
		return false, nil
	}
	booking.Status = to
	booking.DecidedAt = &at
	booking.UpdatedAt = at
	return true, nil
}

func (r *BookingRepository) ListByRide(ctx context.Context, rideID primitive.ObjectID, statuses ...models.BookingStatus) ([]*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Booking, 0)
	for _, booking := range r.bookings {
		if booking.RideID != rideID || !hasStatus(booking.Status, statuses) {
			continue
		}
		out = append(out, cloneBooking(booking))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BookingRepository) HasActiveBooking(ctx context.Context, rideID, passengerID primitive.ObjectID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, booking := range r.bookings {
		if booking.RideID == rideID && booking.PassengerID == passengerID && booking.Status != models.BookingStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func hasStatus(status models.BookingStatus, statuses []models.BookingStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneBooking(in *models.Booking) *models.Booking {
	out := *in
	out.PickupLocation = cloneLocation(in.PickupLocation)
	out.DropoffLocation = cloneLocation(in.DropoffLocation)
	return &out
}
