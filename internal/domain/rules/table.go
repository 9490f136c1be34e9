package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// Table is the ordered, immutable collection of rules loaded from the rule
// table document. Order is preserved from the file; later stages rely on it.
type Table struct {
	rules []Rule
}

// Rules returns the rules in file order. Callers must not mutate the slice.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Len returns the number of loaded rules.
func (t *Table) Len() int {
	return len(t.rules)
}

type tableDocument struct {
	Rules []Rule `json:"rules"`
}

// LoadTable reads and validates the rule table at path. A missing file or a
// malformed document is a fatal startup error; unknown pattern types load
// fine and simply never activate.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table %s: %w", path, err)
	}
	return ParseTable(raw)
}

// ParseTable validates a rule table document and compiles per-rule patterns.
func ParseTable(raw []byte) (*Table, error) {
	var doc tableDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid rule table document")
	}
	if doc.Rules == nil {
		return nil, apperrors.Validation("rule table must contain a rules list")
	}

	seen := make(map[string]struct{}, len(doc.Rules))
	for i := range doc.Rules {
		if err := validateRule(&doc.Rules[i]); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "rule at index %d", i)
		}
		if _, dup := seen[doc.Rules[i].ID]; dup {
			return nil, apperrors.Validationf("duplicate rule id %q at index %d", doc.Rules[i].ID, i)
		}
		seen[doc.Rules[i].ID] = struct{}{}

		if err := compileRule(&doc.Rules[i]); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "rule %q", doc.Rules[i].ID)
		}
	}

	return &Table{rules: doc.Rules}, nil
}

func validateRule(r *Rule) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if r.Weight < 0 {
		return fmt.Errorf("weight must be non-negative")
	}
	if !r.Confidence.Valid() {
		return fmt.Errorf("unknown confidence %q", r.Confidence)
	}
	if !r.Signal.Valid() {
		return fmt.Errorf("unknown signal %q", r.Signal)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(r.DataSource) == "" {
		return fmt.Errorf("data_source is required")
	}
	if strings.TrimSpace(string(r.PatternType)) == "" {
		return fmt.Errorf("pattern_type is required")
	}
	return nil
}

// compileRule precompiles what can be precompiled: the data_source path and,
// for regex rules, the case-insensitive patterns.
func compileRule(r *Rule) error {
	if _, err := jmespath.Compile(r.DataSource); err != nil {
		return fmt.Errorf("compile data_source %q: %w", r.DataSource, err)
	}

	if r.PatternType != PatternRegex {
		return nil
	}

	patterns, err := stringList(r.PatternValue)
	if err != nil {
		return fmt.Errorf("regex pattern_value: %w", err)
	}
	r.regexps = make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, compileErr := regexp.Compile("(?i)" + p)
		if compileErr != nil {
			return fmt.Errorf("compile pattern %q: %w", p, compileErr)
		}
		r.regexps = append(r.regexps, re)
	}
	return nil
}

// stringList accepts a scalar string or a list of strings from decoded JSON.
func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or string list, got %T", v)
	}
}
