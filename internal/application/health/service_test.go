package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewService(t *testing.T) {
	meta := Metadata{Service: "test-service", Version: "1.0.0", Environment: "test"}

	service := NewService(meta)

	if service.meta != meta {
		t.Error("expected service to have the provided metadata")
	}
	if service.startedAt.IsZero() {
		t.Error("expected startedAt to be set")
	}
}

func TestService_StatusWithoutChecks(t *testing.T) {
	meta := Metadata{Service: "test-service", Version: "1.0.0", Environment: "test"}
	service := NewService(meta)
	time.Sleep(10 * time.Millisecond)

	status := service.Status(context.Background())

	if status.Service != meta.Service || status.Version != meta.Version || status.Environment != meta.Environment {
		t.Errorf("metadata not propagated: %+v", status)
	}
	if status.Status != StatusUp {
		t.Errorf("expected UP, got %q", status.Status)
	}
	if status.Uptime == "" || status.UptimeSecs < 0 {
		t.Errorf("unexpected uptime %q / %d", status.Uptime, status.UptimeSecs)
	}
	if status.Dependencies != nil {
		t.Errorf("expected no dependencies, got %v", status.Dependencies)
	}
}

func TestService_StatusAggregation(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("unreachable") }

	tests := []struct {
		name   string
		checks []Check
		want   string
	}{
		{"all up", []Check{{"store", true, ok}, {"redis", false, ok}}, StatusUp},
		{"optional down", []Check{{"store", true, ok}, {"redis", false, fail}}, StatusDegraded},
		{"critical down", []Check{{"store", true, fail}, {"redis", false, ok}}, StatusDown},
		{"both down", []Check{{"redis", false, fail}, {"store", true, fail}}, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewService(Metadata{}, tt.checks...).Status(context.Background())

			if status.Status != tt.want {
				t.Errorf("status = %q, want %q", status.Status, tt.want)
			}
			if len(status.Dependencies) != len(tt.checks) {
				t.Fatalf("dependencies = %d, want %d", len(status.Dependencies), len(tt.checks))
			}
			for i, dep := range status.Dependencies {
				if dep.Name != tt.checks[i].Name {
					t.Errorf("dependency %d = %q, want %q", i, dep.Name, tt.checks[i].Name)
				}
				if dep.Status == StatusDown && dep.Error != "unreachable" {
					t.Errorf("missing error for %s", dep.Name)
				}
			}
		})
	}
}

func TestService_StatusTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	service := NewService(Metadata{}, Check{Name: "sftp", Probe: slow})
	service.timeout = 20 * time.Millisecond

	status := service.Status(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("a hung optional probe should degrade, got %q", status.Status)
	}
}
