// Package decision turns a scored posting into an apply recommendation with
// human-readable reasons and risks.
package decision

import (
	"fmt"

	"github.com/jobshield/jobshield/internal/domain/enrich"
	"github.com/jobshield/jobshield/internal/domain/model"
)

// Explain buckets a posting into recommend/caution/avoid and collects the
// reasons and risks behind the call. Pure; safe to run anywhere.
func Explain(score *model.ScoredJob, record *model.JobRecord) model.DecisionExplanation {
	out := model.DecisionExplanation{
		Reasons:     []string{},
		Risks:       []string{},
		SignalsUsed: []string{},
	}

	if score == nil {
		out.Decision = model.DecisionCaution
		out.Risks = append(out.Risks, "Authenticity score unavailable")
		out.Reasons = append(out.Reasons, "Basic job information available")
		return out
	}

	out.ConfidenceLevel = string(score.Confidence)
	out.SignalsUsed = append(out.SignalsUsed, "authenticity_score")

	switch s := score.AuthenticityScore; {
	case s >= 80:
		out.Decision = model.DecisionRecommend
		out.Reasons = append(out.Reasons, fmt.Sprintf("High authenticity score (%.0f/100)", s))
	case s >= 60:
		out.Decision = model.DecisionCaution
		out.Reasons = append(out.Reasons, fmt.Sprintf("Moderate authenticity score (%.0f/100)", s))
	case s >= 40:
		out.Decision = model.DecisionCaution
		out.Risks = append(out.Risks, fmt.Sprintf("Below-average authenticity score (%.0f/100)", s))
	default:
		out.Decision = model.DecisionAvoid
		out.Risks = append(out.Risks, fmt.Sprintf("Low authenticity score (%.0f/100)", s))
	}

	applyConfidence(&out, score)
	applyDerivedSignals(&out, record)
	applySalary(&out, record)
	applyRuleCounts(&out, score)

	// Safety valve: a recommendation should not carry more risks than reasons.
	if out.Decision == model.DecisionRecommend && len(out.Risks) > len(out.Reasons) {
		out.Decision = model.DecisionCaution
	}

	if len(out.Reasons) == 0 {
		out.Reasons = append(out.Reasons, "Basic job information available")
	}
	return out
}

func applyConfidence(out *model.DecisionExplanation, score *model.ScoredJob) {
	out.SignalsUsed = append(out.SignalsUsed, "confidence")
	switch score.Confidence {
	case model.ConfidenceHigh:
		if score.AuthenticityScore >= 70 {
			out.Reasons = append(out.Reasons, "Scoring confidence is high")
		}
	case model.ConfidenceLow:
		out.Risks = append(out.Risks, "Scoring confidence is low; limited data was available")
	}
}

func applyDerivedSignals(out *model.DecisionExplanation, record *model.JobRecord) {
	if record == nil || record.DerivedSignals == nil {
		return
	}
	derived := record.DerivedSignals

	if derived.JobLevel != nil {
		out.SignalsUsed = append(out.SignalsUsed, "job_level")
		switch *derived.JobLevel {
		case enrich.LevelIntern, enrich.LevelNewGrad, enrich.LevelJunior:
			out.Reasons = append(out.Reasons, "Entry-level friendly position")
		case enrich.LevelSenior, enrich.LevelStaff:
			out.Reasons = append(out.Reasons, "Senior position with clearly stated expectations")
		}
	}

	if derived.WorkMode != nil {
		out.SignalsUsed = append(out.SignalsUsed, "work_mode")
		switch *derived.WorkMode {
		case enrich.WorkModeRemote:
			out.Reasons = append(out.Reasons, "Remote position")
		case enrich.WorkModeHybrid:
			out.Reasons = append(out.Reasons, "Hybrid work arrangement")
		}
	}

	if derived.VisaSignal != nil {
		out.SignalsUsed = append(out.SignalsUsed, "visa_signal")
		switch *derived.VisaSignal {
		case enrich.VisaExplicitYes:
			out.Reasons = append(out.Reasons, "Posting explicitly offers visa sponsorship")
		case enrich.VisaExplicitNo:
			out.Risks = append(out.Risks, "Posting explicitly declines visa sponsorship")
		case enrich.VisaUnclear:
			out.Risks = append(out.Risks, "Visa sponsorship stance is unclear")
		}
	}
}

func applySalary(out *model.DecisionExplanation, record *model.JobRecord) {
	if record == nil {
		return
	}
	out.SignalsUsed = append(out.SignalsUsed, "salary")
	if record.DerivedSignals != nil && record.DerivedSignals.Salary != nil {
		out.Reasons = append(out.Reasons, "Salary range is disclosed")
		return
	}
	out.Risks = append(out.Risks, "No salary information disclosed")
}

func applyRuleCounts(out *model.DecisionExplanation, score *model.ScoredJob) {
	out.SignalsUsed = append(out.SignalsUsed, "red_flags", "positive_signals")

	if len(score.RedFlags) > 3 {
		if out.Decision == model.DecisionRecommend {
			out.Decision = model.DecisionCaution
		}
		out.Risks = append(out.Risks, fmt.Sprintf("%d red flags detected", len(score.RedFlags)))
	}

	if len(score.PositiveSignals) > 5 &&
		out.Decision == model.DecisionCaution &&
		score.AuthenticityScore >= 65 {
		out.Decision = model.DecisionRecommend
	}
}
