package rules

import (
	"fmt"
	"sort"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// maxRedFlags bounds the user-facing red flag list.
const maxRedFlags = 5

// Explanation is the reader-facing portion of a scoring result. Descriptions
// only; rule IDs and weights never leak into user-facing output.
type Explanation struct {
	Summary         string
	RedFlags        []string
	PositiveSignals []string
}

// Explain renders the summary and signal lists for a fused result.
func Explain(score float64, level model.AuthenticityLevel, activated []ActivatedRule) Explanation {
	return Explanation{
		Summary:         summaryFor(score, level),
		RedFlags:        redFlags(activated),
		PositiveSignals: positiveSignals(activated),
	}
}

func summaryFor(score float64, level model.AuthenticityLevel) string {
	switch level {
	case model.LevelLikelyReal:
		return fmt.Sprintf("High authenticity (%.0f). No major red flags detected.", score)
	case model.LevelUncertain:
		return fmt.Sprintf("Mixed signals (%.0f). Review the flagged items before applying.", score)
	case model.LevelLikelyFake:
		return fmt.Sprintf("Low authenticity (%.0f). Multiple red flags suggest this posting may not be legitimate.", score)
	default:
		return fmt.Sprintf("Authenticity score: %.0f", score)
	}
}

// redFlags returns the descriptions of the heaviest negative rules, at most
// maxRedFlags of them. Ties keep table order via stable sort.
func redFlags(activated []ActivatedRule) []string {
	negatives := make([]ActivatedRule, 0, len(activated))
	for _, a := range activated {
		if a.Signal == SignalNegative {
			negatives = append(negatives, a)
		}
	}
	sort.SliceStable(negatives, func(i, j int) bool {
		return negatives[i].EffectiveWeight > negatives[j].EffectiveWeight
	})
	if len(negatives) > maxRedFlags {
		negatives = negatives[:maxRedFlags]
	}

	flags := make([]string, 0, len(negatives))
	for _, a := range negatives {
		flags = append(flags, a.Description)
	}
	return flags
}

// positiveSignals returns positive rule descriptions in table order.
func positiveSignals(activated []ActivatedRule) []string {
	signals := make([]string, 0)
	for _, a := range activated {
		if a.Signal == SignalPositive {
			signals = append(signals, a.Description)
		}
	}
	return signals
}
