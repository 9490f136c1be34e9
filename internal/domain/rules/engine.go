package rules

import (
	"fmt"
	"log/slog"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// Engine evaluates the loaded rule table against job records. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	table  *Table
	logger *slog.Logger
}

// EngineOptions groups dependencies for Engine.
type EngineOptions struct {
	Table  *Table       // Required: loaded rule table
	Logger *slog.Logger // Optional: structured logger
}

// NewEngine constructs an Engine over a loaded table.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("rule table is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "rule_engine")
	}

	return &Engine{table: opts.Table, logger: logger}, nil
}

// Evaluate runs every rule in table order against the record and returns the
// rules that activated, each with its platform-adjusted effective weight.
// A rule that panics or errors is logged and skipped; it never fails the
// whole evaluation.
func (e *Engine) Evaluate(record *model.JobRecord) []ActivatedRule {
	doc, err := record.Document()
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("render record document failed", "job_id", record.JobID, "error", err)
		}
		doc = map[string]any{}
	}

	activated := make([]ActivatedRule, 0, len(e.table.rules))
	for i := range e.table.rules {
		rule := &e.table.rules[i]

		if !e.evaluateRule(rule, record, doc) {
			continue
		}

		ew := effectiveWeight(rule, record)
		if ew == 0 && rule.Weight > 0 {
			// Suppressed by platform capability; keep it out of the result so
			// it cannot surface in red flags.
			continue
		}

		activated = append(activated, ActivatedRule{
			ID:              rule.ID,
			Weight:          rule.Weight,
			EffectiveWeight: ew,
			Confidence:      rule.Confidence,
			Signal:          rule.Signal,
			Description:     rule.Description,
		})
	}
	return activated
}

// evaluateRule resolves the rule's data source and dispatches on its pattern
// type. Panics are recovered here so one broken rule cannot poison a whole
// scoring call.
func (e *Engine) evaluateRule(rule *Rule, record *model.JobRecord, doc map[string]any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			if e.logger != nil {
				e.logger.Warn("rule evaluation panicked",
					"rule_id", rule.ID,
					"pattern_type", rule.PatternType,
					"panic", r)
			}
		}
	}()

	value, err := jmespath.Search(rule.DataSource, doc)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("rule data_source lookup failed",
				"rule_id", rule.ID,
				"data_source", rule.DataSource,
				"error", err)
		}
		return false
	}

	switch rule.PatternType {
	case PatternFieldExists:
		return matchFieldExists(value)
	case PatternRegex:
		return present(value) && rule.matchRegex(value)
	case PatternStringContains:
		return present(value) && matchStringContains(value, rule.PatternValue)
	case PatternStringContainsAny:
		return present(value) && matchStringContainsAny(value, rule.PatternValue)
	case PatternStringEqualsAny:
		return present(value) && matchStringEqualsAny(value, rule.PatternValue)
	case PatternNumericThreshold:
		return present(value) && matchNumericThreshold(value, rule.PatternValue)
	case PatternNumericLessThan:
		return present(value) && matchNumericLessThan(value, rule.PatternValue)
	case PatternBoolean:
		return matchBoolean(value, rule.PatternValue)
	case PatternJDLengthCheck:
		return present(value) && matchJDLength(value, rule.PatternValue)
	case PatternJDLengthCheckMin:
		return present(value) && matchJDLengthMin(value, rule.PatternValue)
	case PatternActionVerbCheck:
		return present(value) && matchActionVerbCheck(value)
	case PatternExtremeFormatting:
		return present(value) && matchExtremeFormatting(value)
	case PatternBodyShopCheck:
		var info *model.CompanyInfo
		if record != nil {
			info = record.CompanyInfo
		}
		return matchBodyShop(record.CompanyName, info)
	default:
		// Forward-compat: unknown pattern types load fine but never activate.
		if e.logger != nil {
			e.logger.Debug("skipping rule with unknown pattern type",
				"rule_id", rule.ID,
				"pattern_type", rule.PatternType)
		}
		return false
	}
}

// effectiveWeight conditions recruiter-cluster rules on platform capability:
// platforms that never expose poster data suppress the cluster entirely,
// platforms that should have exposed it but didn't halve it.
func effectiveWeight(rule *Rule, record *model.JobRecord) float64 {
	if !rule.InRecruiterCluster() {
		return rule.Weight
	}
	if !record.PosterExpected() {
		return 0
	}
	if !record.PosterPresent() {
		return 0.5 * rule.Weight
	}
	return rule.Weight
}
