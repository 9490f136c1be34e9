package model

// ApplyDecision is the recommendation bucket for a scored posting.
type ApplyDecision string

const (
	// DecisionRecommend suggests applying.
	DecisionRecommend ApplyDecision = "recommend"
	// DecisionCaution suggests applying with care.
	DecisionCaution ApplyDecision = "caution"
	// DecisionAvoid suggests skipping the posting.
	DecisionAvoid ApplyDecision = "avoid"
)

// Valid returns true if the ApplyDecision is known.
func (d ApplyDecision) Valid() bool {
	return d == DecisionRecommend || d == DecisionCaution || d == DecisionAvoid
}

// DecisionExplanation is the reader-facing output of the decision explainer.
type DecisionExplanation struct {
	Decision        ApplyDecision `json:"decision"`
	Reasons         []string      `json:"reasons"`
	Risks           []string      `json:"risks"`
	SignalsUsed     []string      `json:"signals_used"`
	ConfidenceLevel string        `json:"confidence_level"`
}
