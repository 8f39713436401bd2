package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransport broadcasts over a Redis pub/sub channel.
type RedisTransport struct {
	client  *redis.Client
	channel string
}

// NewRedisTransport wraps an existing client. The transport takes ownership
// of the client and closes it on Close.
func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisTransport{client: client, channel: channel}
}

// DialRedis connects to the Redis server at url (redis:// or rediss://)
// and verifies the connection.
func DialRedis(ctx context.Context, url, channel string) (*RedisTransport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisTransport(client, channel), nil
}

func (t *RedisTransport) Publish(ctx context.Context, data []byte) error {
	return t.client.Publish(ctx, t.channel, data).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so messages
// published afterwards on any connection are delivered.
func (t *RedisTransport) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	ps := t.client.Subscribe(ctx, t.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", t.channel, err)
	}

	out := make(chan []byte)
	done := make(chan struct{})
	in := ps.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			ps.Close()
		})
	}
	return out, cancel, nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}
