// Package events carries job status transitions from worker processes to
// the API process over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
)

// StatusChannel is the pub/sub channel for job status events
const StatusChannel = "pickperfect:job-status"

// Publisher sends a status event to whoever is listening
type Publisher interface {
	Publish(ctx context.Context, event model.StatusEvent) error
}

// RedisPublisher publishes JSON encoded events on StatusChannel
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) Publish(ctx context.Context, event model.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	if err := p.redis.Publish(ctx, StatusChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// Subscriber relays events from StatusChannel to a handler
type Subscriber struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewSubscriber(redisClient *redis.Client, log *logger.Logger) *Subscriber {
	return &Subscriber{redis: redisClient, log: log}
}

// Run blocks, calling handle for every event, until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, handle func(model.StatusEvent)) error {
	sub := s.redis.Subscribe(ctx, StatusChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", StatusChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event model.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.log.WithError(err).Warn("Dropping malformed status event")
				continue
			}
			handle(event)
		}
	}
}
