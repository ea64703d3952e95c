package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// LifecycleEvent is one booking or ride state change, keyed by ride id
// so that a consumer sees the changes of one ride in order.
type LifecycleEvent struct {
	Type       string                 `json:"type"`
	EntityID   string                 `json:"entityId"`
	RideID     string                 `json:"rideId"`
	ActorID    string                 `json:"actorId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer       *kafka.Writer
	writeTimeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string, writeTimeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		writeTimeout: writeTimeout,
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	if k.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.writeTimeout)
		defer cancel()
	}

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RideID),
		Value: b,
		Time:  event.OccurredAt,
	})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// NoopPublisher is used when the event stream is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, LifecycleEvent) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
