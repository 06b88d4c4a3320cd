package telemetry

import (
	"context"
	"testing"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "ticksim", "")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("No-op shutdown returned %v", err)
	}
}

func TestSetupRequiresServiceName(t *testing.T) {
	if _, err := Setup(context.Background(), "", "http://localhost:4318"); err == nil {
		t.Error("Expected error for empty service name")
	}
}
