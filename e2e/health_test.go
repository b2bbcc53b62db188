package e2e

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestBaseURL(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if _, ok := body["timestamp"]; !ok {
		t.Error("expected 'timestamp' field in response")
	}
}

func TestHealth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
	services, ok := body["services"].(map[string]interface{})
	if !ok {
		t.Fatal("expected 'services' field in response")
	}
	for _, name := range []string{"redis", "mongodb", "storage"} {
		if services[name] != true {
			t.Errorf("expected %s to be healthy, got %v", name, services[name])
		}
	}
}

func TestHealth_Degraded(t *testing.T) {
	ta := setupApp(t)
	ta.checks["mongodb"] = func(ctx context.Context) error { return errors.New("connection refused") }

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)

	body := parseJSON(t, resp)
	if body["status"] != "degraded" {
		t.Errorf("expected status 'degraded', got %v", body["status"])
	}
	services := body["services"].(map[string]interface{})
	if services["mongodb"] != false {
		t.Errorf("expected mongodb unhealthy, got %v", services["mongodb"])
	}
	if services["redis"] != true {
		t.Errorf("expected redis healthy, got %v", services["redis"])
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/ws/jobs/vid_1", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUpgradeRequired)
}
