package health

import (
	"context"
	"errors"
	"testing"
)

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil)

	response := checker.Liveness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_NoClient(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil)

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}

	apiCheck, ok := response.Checks["api"]
	if !ok {
		t.Fatal("Expected api check to be present")
	}
	if apiCheck.Status != StatusUnhealthy {
		t.Errorf("Expected api check to be unhealthy, got %s", apiCheck.Status)
	}
}

func TestChecker_Readiness_ProbeResults(t *testing.T) {
	t.Parallel()

	healthy := NewChecker(ProbeFunc(func(ctx context.Context) error { return nil }))
	if response := healthy.Readiness(context.Background()); !response.IsHealthy() {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}

	unhealthy := NewChecker(ProbeFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))
	response := unhealthy.Readiness(context.Background())
	if response.IsHealthy() {
		t.Error("Expected unhealthy status")
	}
	if response.Checks["api"].Message != "connection refused" {
		t.Errorf("Expected probe error in message, got %q", response.Checks["api"].Message)
	}
}

func TestChecker_Readiness_CachesResult(t *testing.T) {
	t.Parallel()
	calls := 0
	checker := NewChecker(ProbeFunc(func(ctx context.Context) error {
		calls++
		return nil
	}))

	checker.Readiness(context.Background())
	checker.Readiness(context.Background())

	if calls != 1 {
		t.Errorf("Expected probe to run once with a warm cache, ran %d times", calls)
	}
}

func TestChecker_SetShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker(ProbeFunc(func(ctx context.Context) error { return nil }))

	if response := checker.Readiness(context.Background()); !response.IsHealthy() {
		t.Fatalf("Expected healthy status before shutdown, got %s", response.Status)
	}

	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())
	if response.IsHealthy() {
		t.Error("Expected unhealthy status during shutdown")
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("Expected shutdown check to be present")
	}
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.expected)
			}
		})
	}
}
