package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/handler"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/repository"
	"github.com/pickperfect/api/internal/service"
	ws "github.com/pickperfect/api/internal/websocket"
)

const testBucket = "pickperfect-test"

// fakeStorage presigns deterministic URLs
type fakeStorage struct {
	fail bool
}

func (f *fakeStorage) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if f.fail {
		return "", errors.New("storage unavailable")
	}
	return "https://storage.test/" + testBucket + "/" + key + "?sig=test", nil
}

// fakeQueue records enqueued tasks instead of talking to Redis
type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	fail  bool
}

func (q *fakeQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return nil, errors.New("redis unavailable")
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: "analysis"}, nil
}

func (q *fakeQueue) enqueued() []*asynq.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*asynq.Task(nil), q.tasks...)
}

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	jobs    *repository.MemoryJobRepository
	storage *fakeStorage
	queue   *fakeQueue
	checks  map[string]handler.Check
}

// setupApp creates a Fiber app with the same routes as the server, backed
// by in-memory collaborators.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	log := logger.Discard()
	jobs := repository.NewMemoryJobRepository()
	storage := &fakeStorage{}
	queue := &fakeQueue{}
	checks := map[string]handler.Check{
		"redis":   func(ctx context.Context) error { return nil },
		"mongodb": func(ctx context.Context) error { return nil },
		"storage": func(ctx context.Context) error { return nil },
	}

	uploadService := service.NewUploadService(storage, jobs, time.Hour, log)
	videoService := service.NewVideoService(jobs, queue, testBucket, config.WorkerConfig{
		Concurrency: 1,
		Queue:       "analysis",
	}, log)

	hub := ws.NewHub(log)
	done := make(chan struct{})
	go hub.Run(done)
	t.Cleanup(func() { close(done) })

	routes := &handler.Routes{
		Health: handler.NewHealthHandler(checks, log),
		Videos: handler.NewVideoHandler(uploadService, videoService, validator.New()),
		Hub:    hub,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
	})
	routes.Mount(app)

	return &testApp{
		app:     app,
		jobs:    jobs,
		storage: storage,
		queue:   queue,
		checks:  checks,
	}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", body)
	}
	code, _ := detail["code"].(string)
	return code
}
