package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is one entry of a ride's append-only message log.
type ChatMessage struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id"`
	SenderID    primitive.ObjectID  `json:"senderId" bson:"sender_id"`
	RecipientID *primitive.ObjectID `json:"recipientId,omitempty" bson:"recipient_id,omitempty"`
	Content     string              `json:"content" bson:"content"`
	CreatedAt   time.Time           `json:"createdAt" bson:"created_at"`
}
