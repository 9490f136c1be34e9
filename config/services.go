package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeApply runs the apply orchestrator (tasks, runs, sessions).
	ServiceModeApply ServiceMode = "apply"
	// ServiceModeScorer runs the scoring worker over unscored postings.
	ServiceModeScorer ServiceMode = "scorer"
	// ServiceModeReaper runs the reaper for stale-task and retention cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeApply, ServiceModeScorer, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeApply, ServiceModeScorer, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: apply, scorer, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// TaskMaxAge is the maximum age of an in_progress task before the reaper
	// fails it back into the retry path.
	TaskMaxAge time.Duration `env:"REAPER_TASK_MAX_AGE" envDefault:"1h"`

	// RunMaxAge is the maximum age of an in_progress run before the reaper
	// marks it abandoned.
	RunMaxAge time.Duration `env:"REAPER_RUN_MAX_AGE" envDefault:"2h"`

	// RetentionAge is how long terminal tasks, runs, and their events are
	// kept before deletion.
	RetentionAge time.Duration `env:"REAPER_RETENTION_AGE" envDefault:"720h"` // 30 days

	// BatchSize bounds how many stale rows each tick touches.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.TaskMaxAge < 5*time.Minute {
		r.TaskMaxAge = 5 * time.Minute
	}
	if r.RunMaxAge < 5*time.Minute {
		r.RunMaxAge = 5 * time.Minute
	}
	if r.RetentionAge < 24*time.Hour {
		r.RetentionAge = 24 * time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
}
