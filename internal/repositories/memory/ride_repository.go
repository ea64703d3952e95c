package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideRepository keeps rides in a map guarded by a single mutex, so every
// conditional write is as atomic as its Mongo counterpart.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[primitive.ObjectID]*models.Ride
}

var _ interfaces.RideRepository = (*RideRepository)(nil)

func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (r *RideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.Bookings == nil {
		ride.Bookings = []primitive.ObjectID{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rides[ride.ID] = cloneRide(ride)
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}
	out := cloneRide(ride)
	out.Messages = nil
	return out, nil
}

func (r *RideRepository) ReserveSeats(ctx context.Context, id primitive.ObjectID, seats int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok || ride.Status != models.RideStatusScheduled || ride.AvailableSeats < seats {
		return false, nil
	}
	ride.AvailableSeats -= seats
	ride.UpdatedAt = time.Now()
	return true, nil
}

func (r *RideRepository) ReleaseSeats(ctx context.Context, id primitive.ObjectID, seats int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}
	if ride.AvailableSeats+seats > ride.TotalSeats {
		return fmt.Errorf("releasing %d seats would exceed total seats of ride %s", seats, id.Hex())
	}
	ride.AvailableSeats += seats
	ride.UpdatedAt = time.Now()
	return nil
}

func (r *RideRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, t interfaces.RideTransition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok || ride.Status != t.From {
		return false, nil
	}

	at := t.At
	ride.Status = t.To
	ride.UpdatedAt = at
	switch t.To {
	case models.RideStatusInProgress:
		ride.ActualDepartureTime = &at
	case models.RideStatusCompleted:
		ride.ActualArrivalTime = &at
	case models.RideStatusCancelled:
		ride.CancelledAt = &at
	}
	if t.TotalEarnings != nil {
		ride.TotalEarnings = *t.TotalEarnings
	}
	return true, nil
}

func (r *RideRepository) AddBooking(ctx context.Context, rideID, bookingID primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[rideID]
	if !ok {
		return fmt.Errorf("ride %s: %w", rideID.Hex(), utils.ErrNotFound)
	}
	for _, existing := range ride.Bookings {
		if existing == bookingID {
			return nil
		}
	}
	ride.Bookings = append(ride.Bookings, bookingID)
	ride.UpdatedAt = time.Now()
	return nil
}

func (r *RideRepository) UpdateCurrentLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}
	loc := cloneLocation(location)
	ride.CurrentLocation = &loc
	ride.UpdatedAt = time.Now()
	return nil
}

func (r *RideRepository) AppendMessage(ctx context.Context, id primitive.ObjectID, message models.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}
	ride.Messages = append(ride.Messages, message)
	return nil
}

func (r *RideRepository) GetMessages(ctx context.Context, id primitive.ObjectID, params *utils.PaginationParams) ([]models.ChatMessage, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, 0, fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}

	total := len(ride.Messages)
	start := min(params.GetSkip(), total)
	end := min(start+params.GetLimit(), total)
	page := make([]models.ChatMessage, end-start)
	copy(page, ride.Messages[start:end])
	return page, int64(total), nil
}

func cloneRide(in *models.Ride) *models.Ride {
	out := *in
	out.Bookings = append([]primitive.ObjectID(nil), in.Bookings...)
	out.Messages = append([]models.ChatMessage(nil), in.Messages...)
	out.StartLocation = cloneLocation(in.StartLocation)
	out.EndLocation = cloneLocation(in.EndLocation)
	if in.CurrentLocation != nil {
		loc := cloneLocation(*in.CurrentLocation)
		out.CurrentLocation = &loc
	}
	return &out
}

func cloneLocation(in models.Location) models.Location {
	out := in
	out.Coordinates = append([]float64(nil), in.Coordinates...)
	return out
}
