package rules

import (
	"math"

	"github.com/jobshield/jobshield/internal/domain/model"
)

const (
	// negativeDecay controls how fast accumulated negative weight drives the
	// exponential base score toward zero.
	negativeDecay = 1.8

	// positiveGainCap bounds the multiplicative lift from positive rules so
	// positives cannot whitewash strong negatives.
	positiveGainCap = 1.15

	positiveGainExponent = 0.25

	// strongRuleWeight is the effective weight at which an activated rule
	// counts as a strong signal for confidence purposes.
	strongRuleWeight = 0.18

	levelRealThreshold = 80.0
	levelFakeThreshold = 55.0
)

// coverageFields are the record fields whose presence feeds the data-coverage
// half of the confidence calculation.
var coverageFields = []string{
	"jd_text", "poster_info", "platform_metadata.posted_days_ago", "company_name",
}

// FusionResult is the combined outcome of score fusion.
type FusionResult struct {
	Score      float64
	Level      model.AuthenticityLevel
	Confidence model.Confidence
}

// Fuse combines activated rules into a score, level, and confidence.
// The record is only consulted for data coverage; passing nil yields zero
// coverage.
func Fuse(activated []ActivatedRule, record *model.JobRecord) FusionResult {
	var negative, positive float64
	for _, a := range activated {
		switch a.Signal {
		case SignalNegative:
			negative += a.EffectiveWeight
		case SignalPositive:
			positive += a.EffectiveWeight
		}
	}

	base := 100 * math.Exp(-negative*negativeDecay)
	gain := math.Min(positiveGainCap, math.Pow(1+positive, positiveGainExponent))

	score := base * gain
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	score = math.Round(score*10) / 10

	return FusionResult{
		Score:      score,
		Level:      LevelForScore(score),
		Confidence: confidenceFor(activated, record),
	}
}

// LevelForScore maps a score onto its categorical bucket.
func LevelForScore(score float64) model.AuthenticityLevel {
	switch {
	case score >= levelRealThreshold:
		return model.LevelLikelyReal
	case score >= levelFakeThreshold:
		return model.LevelUncertain
	default:
		return model.LevelLikelyFake
	}
}

// confidenceFor blends strong-rule count with data coverage. An absent or
// thin record caps confidence regardless of how many rules fired.
func confidenceFor(activated []ActivatedRule, record *model.JobRecord) model.Confidence {
	strong := 0
	largestRaw := 0.0
	for _, a := range activated {
		if a.EffectiveWeight >= strongRuleWeight {
			strong++
		}
		if a.Weight > largestRaw {
			largestRaw = a.Weight
		}
	}

	coverage := coverageRatio(record)
	c := 0.5*math.Min(1, float64(strong)/3) + 0.5*coverage

	// A clean record with good coverage deserves High even without strong
	// rules. The exception is a serious rule whose weight was knocked below
	// the strong threshold by platform adjustment with little corroboration:
	// that is degraded data, not a clean record.
	if strong == 0 && coverage >= 0.75 {
		if !(largestRaw >= 0.2 && len(activated) < 5) {
			return model.ConfidenceHigh
		}
	}

	switch {
	case c >= 0.66:
		return model.ConfidenceHigh
	case c >= 0.33:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func coverageRatio(record *model.JobRecord) float64 {
	if record == nil {
		return 0
	}
	got := 0
	if record.JDText != "" {
		got++
	}
	if record.PosterInfo != nil {
		got++
	}
	if record.PlatformMetadata != nil && record.PlatformMetadata.PostedDaysAgo != nil {
		got++
	}
	if record.CompanyName != "" {
		got++
	}
	return float64(got) / float64(len(coverageFields))
}
