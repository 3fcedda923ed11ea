package services

import (
	"context"
	"fmt"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	deps map[string]Pinger
}

// NewHealthService checks the named dependencies. Nil entries are skipped so
// optional ones such as the sync queue can be passed unconditionally.
func NewHealthService(deps map[string]Pinger) *HealthService {
	checked := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			checked[name] = p
		}
	}
	return &HealthService{deps: checked}
}

// Check pings every dependency and returns one entry per dependency: "ok" or
// the error text. err is non-nil when any of them failed.
func (s *HealthService) Check(ctx context.Context) (map[string]string, error) {
	status := make(map[string]string, len(s.deps))
	var failed error
	for name, p := range s.deps {
		if err := p.Ping(ctx); err != nil {
			status[name] = err.Error()
			if failed == nil {
				failed = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		status[name] = "ok"
	}
	return status, failed
}
