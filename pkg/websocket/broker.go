package websocket

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Broker carries encoded envelopes between instances.
type Broker interface {
	Publish(ctx context.Context, data []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// PubSubClient is the part of pkg/cache the Redis broker needs.
type PubSubClient interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type RedisBroker struct {
	client  PubSubClient
	channel string
}

func NewRedisBroker(client PubSubClient, channel string) *RedisBroker {
	return &RedisBroker{client: client, channel: channel}
}

func (b *RedisBroker) Publish(ctx context.Context, data []byte) error {
	return b.client.Publish(ctx, b.channel, data)
}

// Subscribe returns a channel fed until ctx is done. The subscription is
// confirmed before returning so no publish issued afterwards is missed.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
