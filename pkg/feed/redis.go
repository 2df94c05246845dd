package feed

import (
	"context"
	"fmt"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the pub/sub channel used when none is configured
const DefaultChannel = "failwatch:events"

// RedisSource subscribes to a Redis pub/sub channel whose messages are JSON
// events or arrays of events
type RedisSource struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisSource creates a pub/sub source on channel
func NewRedisSource(client *redis.Client, channel string) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSource{
		client:  client,
		channel: channel,
		logger:  log.WithComponent("feed").With().Str("channel", channel).Logger(),
	}
}

// Name returns the source name
func (s *RedisSource) Name() string {
	return "redis:" + s.channel
}

// Run blocks until ctx is cancelled or the subscription closes
func (s *RedisSource) Run(ctx context.Context, sink Sink) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Block until the server confirms the subscription
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info().Msg("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			events, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Debug().Err(err).Msg("skipping malformed message")
				continue
			}
			sink.HandleBatch(ctx, events)
		}
	}
}
