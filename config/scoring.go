package config

import (
	"strings"
	"time"
)

// ScoringConfig contains rule table and scoring configuration.
type ScoringConfig struct {
	// RuleTablePath points at the JSON rule table on disk. When empty, the
	// table embedded in the binary is used.
	RuleTablePath string `env:"RULE_TABLE_PATH" envDefault:""`

	// RescoreBatchSize is the number of postings scored per scorer tick.
	RescoreBatchSize int `env:"SCORING_BATCH_SIZE" envDefault:"50"`

	// Interval is the scorer worker tick interval.
	Interval time.Duration `env:"SCORING_INTERVAL" envDefault:"1m"`
}

// Sanitize applies guardrails to scoring configuration values.
func (s *ScoringConfig) Sanitize() {
	s.RuleTablePath = strings.TrimSpace(s.RuleTablePath)
	if s.RescoreBatchSize < 1 {
		s.RescoreBatchSize = 1
	}
	if s.Interval < 10*time.Second {
		s.Interval = 10 * time.Second
	}
}
