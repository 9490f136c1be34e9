// Package rules implements the data-driven authenticity rule table: loading,
// per-record evaluation, platform-aware weighting, score fusion, and
// explanation extraction.
package rules

import "regexp"

// Signal marks which direction a rule moves the authenticity score.
type Signal string

const (
	// SignalNegative lowers the score when the rule activates.
	SignalNegative Signal = "negative"
	// SignalPositive raises the score when the rule activates.
	SignalPositive Signal = "positive"
)

// Valid returns true if the Signal is known.
func (s Signal) Valid() bool {
	return s == SignalNegative || s == SignalPositive
}

// RuleConfidence grades how reliable a rule's signal is considered.
type RuleConfidence string

const (
	// RuleConfidenceLow marks a weak heuristic.
	RuleConfidenceLow RuleConfidence = "low"
	// RuleConfidenceMedium marks a moderately reliable signal.
	RuleConfidenceMedium RuleConfidence = "medium"
	// RuleConfidenceHigh marks a strong, well-validated signal.
	RuleConfidenceHigh RuleConfidence = "high"
)

// Valid returns true if the RuleConfidence is known.
func (c RuleConfidence) Valid() bool {
	return c == RuleConfidenceLow || c == RuleConfidenceMedium || c == RuleConfidenceHigh
}

// PatternType selects the matching semantics of a rule.
type PatternType string

const (
	PatternFieldExists        PatternType = "field_exists"
	PatternRegex              PatternType = "regex"
	PatternStringContains     PatternType = "string_contains"
	PatternStringContainsAny  PatternType = "string_contains_any"
	PatternStringEqualsAny    PatternType = "string_equals_any"
	PatternNumericThreshold   PatternType = "numeric_threshold"
	PatternNumericLessThan    PatternType = "numeric_less_than"
	PatternBoolean            PatternType = "boolean"
	PatternJDLengthCheck      PatternType = "jd_length_check"
	PatternJDLengthCheckMin   PatternType = "jd_length_check_min"
	PatternActionVerbCheck    PatternType = "action_verb_check"
	PatternExtremeFormatting  PatternType = "extreme_formatting_check"
	PatternBodyShopCheck      PatternType = "body_shop_pattern_check"
)

// Known returns true for pattern types this engine can evaluate. Unknown
// types are accepted at load time for forward compatibility but never
// activate at evaluate time.
func (p PatternType) Known() bool {
	switch p {
	case PatternFieldExists, PatternRegex, PatternStringContains,
		PatternStringContainsAny, PatternStringEqualsAny,
		PatternNumericThreshold, PatternNumericLessThan, PatternBoolean,
		PatternJDLengthCheck, PatternJDLengthCheckMin, PatternActionVerbCheck,
		PatternExtremeFormatting, PatternBodyShopCheck:
		return true
	default:
		return false
	}
}

// Rule is one declarative authenticity check. Rules are immutable after load.
type Rule struct {
	ID          string         `json:"id"`
	Weight      float64        `json:"weight"`
	Confidence  RuleConfidence `json:"confidence"`
	Signal      Signal         `json:"signal"`
	Description string         `json:"description"`
	DataSource  string         `json:"data_source"`
	PatternType PatternType    `json:"pattern_type"`
	PatternValue any           `json:"pattern_value,omitempty"`

	// compiled regex patterns, populated at load for PatternRegex rules
	regexps []*regexp.Regexp
}

// RecruiterClusterPrefix marks the rule cluster whose weight depends on
// whether the collection platform exposes poster information.
const RecruiterClusterPrefix = "A"

// InRecruiterCluster reports whether platform-aware weighting applies.
func (r *Rule) InRecruiterCluster() bool {
	return len(r.ID) > 0 && r.ID[0:1] == RecruiterClusterPrefix
}

// ActivatedRule is a rule whose pattern matched a record. EffectiveWeight is
// the weight actually applied after platform adjustment; Weight is the rule's
// table weight, kept so confidence grading can see how serious the rule was
// before any adjustment.
type ActivatedRule struct {
	ID              string
	Weight          float64
	EffectiveWeight float64
	Confidence      RuleConfidence
	Signal          Signal
	Description     string
}
