package health

import (
	"context"
	"sync"
	"time"

	corehealth "3tcapital/saftprocessor/internal/core/health"
)

const (
	StatusUp       = "UP"
	StatusDegraded = "DEGRADED"
	StatusDown     = "DOWN"
)

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Check probes one dependency. A failing critical check takes the service down;
// any other failure only degrades it.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta      Metadata
	checks    []Check
	timeout   time.Duration
	startedAt time.Time
}

func NewService(meta Metadata, checks ...Check) *Service {
	return &Service{
		meta:      meta,
		checks:    checks,
		timeout:   3 * time.Second,
		startedAt: time.Now().UTC(),
	}
}

// Status returns the current availability snapshot. Checks run concurrently under a shared timeout.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      StatusUp,
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}
	if len(s.checks) == 0 {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deps := make([]corehealth.Dependency, len(s.checks))
	var wg sync.WaitGroup
	for i, c := range s.checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			dep := corehealth.Dependency{Name: c.Name, Status: StatusUp}
			if err := c.Probe(ctx); err != nil {
				dep.Status = StatusDown
				dep.Error = err.Error()
			}
			deps[i] = dep
		}(i, c)
	}
	wg.Wait()

	for i, dep := range deps {
		if dep.Status == StatusUp {
			continue
		}
		if s.checks[i].Critical {
			status.Status = StatusDown
		} else if status.Status == StatusUp {
			status.Status = StatusDegraded
		}
	}
	status.Dependencies = deps
	return status
}
