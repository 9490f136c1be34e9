package apply

import (
	"math"
	"time"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// Decision base priorities for the decision_then_newest strategy.
const (
	baseRecommend = 1000
	baseCaution   = 500
	baseAvoid     = 100
)

// recencyBonusMax caps the freshness bonus so decision tiers never overlap.
const recencyBonusMax = 99

// Priority computes the queue priority for a posting under a strategy.
// Deterministic and pure; the result is always in [0, 1099].
func Priority(posting *model.JobPosting, strategy model.PriorityStrategy, now time.Time) int {
	switch strategy {
	case model.StrategyNewest:
		return newestPriority(posting, now)
	case model.StrategyHighestScore:
		return highestScorePriority(posting)
	default:
		return decisionThenNewestPriority(posting, now)
	}
}

func decisionThenNewestPriority(posting *model.JobPosting, now time.Time) int {
	base := baseCaution
	switch decisionFor(posting) {
	case model.DecisionRecommend:
		base = baseRecommend
	case model.DecisionAvoid:
		base = baseAvoid
	}

	bonus := 0
	if days, ok := daysSincePosted(posting, now); ok {
		capped := days
		if capped > recencyBonusMax {
			capped = recencyBonusMax
		}
		bonus = recencyBonusMax - capped
		if bonus < 0 {
			bonus = 0
		}
	}
	return base + bonus
}

func newestPriority(posting *model.JobPosting, now time.Time) int {
	days, ok := daysSincePosted(posting, now)
	if !ok {
		return 500
	}
	if days > 999 {
		days = 999
	}
	return 1000 - days
}

func highestScorePriority(posting *model.JobPosting) int {
	if posting == nil || posting.Score == nil {
		return 0
	}
	return int(math.Round(posting.Score.AuthenticityScore * 10))
}

// decisionFor buckets a posting's score the same way the decision explainer
// does; postings without a score default to caution.
func decisionFor(posting *model.JobPosting) model.ApplyDecision {
	if posting == nil || posting.Score == nil {
		return model.DecisionCaution
	}
	switch score := posting.Score.AuthenticityScore; {
	case score >= 80:
		return model.DecisionRecommend
	case score < 40:
		return model.DecisionAvoid
	default:
		return model.DecisionCaution
	}
}

func daysSincePosted(posting *model.JobPosting, now time.Time) (int, bool) {
	if posting == nil || posting.PostedDate == nil {
		return 0, false
	}
	days := int(now.Sub(*posting.PostedDate).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}
