package middleware

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pickperfect/api/internal/logger"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   15,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func TestLimit_RejectsAfterMax(t *testing.T) {
	client := getTestRedisClient(t)
	limiter := NewRateLimiter(client, logger.Discard())

	prefix := "test-" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(context.Background(), "ratelimit:"+prefix+":0.0.0.0")
	})

	app := fiber.New()
	app.Get("/", limiter.Limit(prefix, 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	want := []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}
	for i, status := range want {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != status {
			t.Errorf("request %d: expected status %d, got %d", i, status, resp.StatusCode)
		}
		if status == fiber.StatusTooManyRequests && resp.Header.Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	}
}

func TestLimit_AllowsWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	limiter := NewRateLimiter(client, logger.Discard())

	app := fiber.New()
	app.Get("/", limiter.UploadLimit(1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i, resp.StatusCode)
		}
	}
}
