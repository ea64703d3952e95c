package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.Bookings == nil {
		ride.Bookings = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, ride); err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	// the message log is served by GetMessages
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, projectionWithoutMessages()).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	return &ride, nil
}

func (r *rideRepository) ReserveSeats(ctx context.Context, id primitive.ObjectID, seats int) (bool, error) {
	filter := bson.M{
		"_id":             id,
		"status":          models.RideStatusScheduled,
		"available_seats": bson.M{"$gte": seats},
	}
	update := bson.M{
		"$inc": bson.M{"available_seats": -seats},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to reserve seats: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

func (r *rideRepository) ReleaseSeats(ctx context.Context, id primitive.ObjectID, seats int) error {
	// never push availableSeats above totalSeats
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{
			"$lte": bson.A{bson.M{"$add": bson.A{"$available_seats", seats}}, "$total_seats"},
		},
	}
	update := bson.M{
		"$inc": bson.M{"available_seats": seats},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("ride %s missing or releasing %d seats would exceed total seats", id.Hex(), seats)
	}

	return nil
}

func (r *rideRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, t interfaces.RideTransition) (bool, error) {
	set := bson.M{
		"status":     t.To,
		"updated_at": t.At,
	}

	switch t.To {
	case models.RideStatusInProgress:
		set["actual_departure_time"] = t.At
	case models.RideStatusCompleted:
		set["actual_arrival_time"] = t.At
	case models.RideStatusCancelled:
		set["cancelled_at"] = t.At
	}

	if t.TotalEarnings != nil {
		set["total_earnings"] = *t.TotalEarnings
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": t.From}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update ride status: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

func (r *rideRepository) AddBooking(ctx context.Context, rideID, bookingID primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": rideID},
		bson.M{
			"$addToSet": bson.M{"bookings": bookingID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add booking to ride: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("ride %s: %w", rideID.Hex(), utils.ErrNotFound)
	}

	return nil
}

func (r *rideRepository) UpdateCurrentLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"current_location": location,
			"updated_at":       time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update ride location: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}

	return nil
}

func (r *rideRepository) AppendMessage(ctx context.Context, id primitive.ObjectID, message models.ChatMessage) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"messages": message}},
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}

	return nil
}

func (r *rideRepository) GetMessages(ctx context.Context, id primitive.ObjectID, params *utils.PaginationParams) ([]models.ChatMessage, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$project", Value: bson.M{
			"total": bson.M{"$size": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}},
			"messages": bson.M{"$slice": bson.A{
				bson.M{"$ifNull": bson.A{"$messages", bson.A{}}},
				params.GetSkip(),
				params.GetLimit(),
			}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get messages: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, 0, fmt.Errorf("failed to get messages: %w", err)
		}
		return nil, 0, fmt.Errorf("ride %s: %w", id.Hex(), utils.ErrNotFound)
	}

	var page struct {
		Total    int64                `bson:"total"`
		Messages []models.ChatMessage `bson:"messages"`
	}
	if err := cursor.Decode(&page); err != nil {
		return nil, 0, fmt.Errorf("failed to decode messages: %w", err)
	}

	return page.Messages, page.Total, nil
}
