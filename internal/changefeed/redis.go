package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis shares signals between API instances through a pub/sub channel. Signals are
// delivered to local subscribers only once they come back from Redis, so every instance
// (this one included) sees the same stream.
type Redis struct {
	local   *Local
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedis(client *redis.Client, channel string, log *zap.Logger) *Redis {
	return &Redis{
		local:   NewLocal(),
		client:  client,
		channel: channel,
		log:     log.Named("changefeed"),
	}
}

func (r *Redis) Publish(ctx context.Context, sig Signal) error {
	payload, err := encodeSignal(sig)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change signal: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe() chan Signal {
	return r.local.Subscribe()
}

func (r *Redis) Unsubscribe(ch chan Signal) {
	r.local.Unsubscribe(ch)
}

// Run relays the Redis channel to local subscribers until ctx is cancelled
func (r *Redis) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.log.Info("Listening for request changes", zap.String("channel", r.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			sig, err := decodeSignal(msg.Payload)
			if err != nil {
				r.log.Warn("Dropping malformed change signal", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			_ = r.local.Publish(ctx, sig)
		}
	}
}

func encodeSignal(sig Signal) (string, error) {
	b, err := json.Marshal(sig)
	if err != nil {
		return "", fmt.Errorf("failed to encode change signal: %w", err)
	}
	return string(b), nil
}

func decodeSignal(payload string) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return Signal{}, err
	}
	if sig.RequestID == "" {
		return Signal{}, fmt.Errorf("missing request_id")
	}
	return sig, nil
}
