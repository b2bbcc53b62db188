package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Skipf("Skipping events test: invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping events test: Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishSubscribe(t *testing.T) {
	client := getTestRedisClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan model.StatusEvent, 1)
	sub := NewSubscriber(client, logger.Discard())
	go func() {
		_ = sub.Run(ctx, func(e model.StatusEvent) {
			select {
			case received <- e:
			default:
			}
		})
	}()

	pub := NewRedisPublisher(client)
	want := model.StatusEvent{
		JobID:      "vid_1",
		StorageKey: "videos/vid_1.mp4",
		Status:     model.JobStatusProcessed,
		At:         time.Now().UTC(),
	}

	// the subscription is established asynchronously; publish until it lands
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := pub.Publish(ctx, want); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case got := <-received:
			if got.JobID != want.JobID || got.Status != want.Status || got.StorageKey != want.StorageKey {
				t.Errorf("expected %+v, got %+v", want, got)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("timed out waiting for status event")
		}
	}
}
