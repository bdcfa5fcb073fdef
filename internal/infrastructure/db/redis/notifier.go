package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const subscriberBuffer = 16

// Notifier fans change events out to every API instance over Redis pub/sub.
type Notifier struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewNotifier(client *redis.Client, log zerolog.Logger) *Notifier {
	return &Notifier{client: client, log: log}
}

func (n *Notifier) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := n.client.Publish(ctx, topic, payload).Err(); err != nil {
		return remoteErr("publish", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server, so no
// event published after it returns is missed.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ps := n.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, remoteErr("subscribe", err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					n.log.Debug().Str("topic", topic).Msg("subscription channel closed")
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
