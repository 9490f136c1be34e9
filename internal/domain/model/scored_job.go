package model

import "time"

// AuthenticityLevel is the categorical bucket of an authenticity score.
type AuthenticityLevel string

const (
	// LevelLikelyReal indicates a score of 80 or above.
	LevelLikelyReal AuthenticityLevel = "likely_real"
	// LevelUncertain indicates a score in [55, 80).
	LevelUncertain AuthenticityLevel = "uncertain"
	// LevelLikelyFake indicates a score below 55.
	LevelLikelyFake AuthenticityLevel = "likely_fake"
)

// Valid returns true if the AuthenticityLevel is a known bucket.
func (l AuthenticityLevel) Valid() bool {
	return l == LevelLikelyReal || l == LevelUncertain || l == LevelLikelyFake
}

// Confidence qualifies how much input data and strong-rule signal backed a score.
type Confidence string

const (
	// ConfidenceLow indicates thin data or weak rule signal.
	ConfidenceLow Confidence = "Low"
	// ConfidenceMedium indicates moderate data coverage or signal.
	ConfidenceMedium Confidence = "Medium"
	// ConfidenceHigh indicates solid data coverage and rule signal.
	ConfidenceHigh Confidence = "High"
)

// Valid returns true if the Confidence is a known value.
func (c Confidence) Valid() bool {
	return c == ConfidenceLow || c == ConfidenceMedium || c == ConfidenceHigh
}

// ActivatedRule records one rule that fired during scoring, with the weight
// that was actually applied after platform adjustment.
type ActivatedRule struct {
	ID         string  `json:"id"`
	Weight     float64 `json:"weight"`
	Confidence string  `json:"confidence"`
}

// ScoredJob is the result of one authenticity evaluation of a job record.
type ScoredJob struct {
	AuthenticityScore float64           `json:"authenticity_score"`
	Level             AuthenticityLevel `json:"level"`
	Confidence        Confidence        `json:"confidence"`
	Summary           string            `json:"summary"`
	RedFlags          []string          `json:"red_flags"`
	PositiveSignals   []string          `json:"positive_signals"`
	ActivatedRules    []ActivatedRule   `json:"activated_rules"`
	ComputedAt        time.Time         `json:"computed_at"`
}
