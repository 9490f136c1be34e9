package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// present reports whether a resolved value carries usable data: non-nil,
// non-blank string, non-empty list or map.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// toFloat coerces decoded JSON numbers and numeric strings.
func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q as number: %w", val, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}

// toText renders the value the way a loosely typed record would: numbers
// without trailing zeros, everything else via Sprintf.
func toText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func matchFieldExists(value any) bool {
	return present(value)
}

func (r *Rule) matchRegex(value any) bool {
	text := toText(value)
	for _, re := range r.regexps {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func matchStringContains(value, pattern any) bool {
	needle, ok := pattern.(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(toText(value)), strings.ToLower(needle))
}

func matchStringContainsAny(value, pattern any) bool {
	needles, err := stringList(pattern)
	if err != nil {
		return false
	}
	haystack := strings.ToLower(toText(value))
	for _, needle := range needles {
		if strings.Contains(haystack, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

func matchStringEqualsAny(value, pattern any) bool {
	candidates, err := stringList(pattern)
	if err != nil {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(toText(value)))
	for _, c := range candidates {
		if text == strings.ToLower(strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

func matchNumericThreshold(value, pattern any) bool {
	v, errV := toFloat(value)
	p, errP := toFloat(pattern)
	if errV != nil || errP != nil {
		return false
	}
	return v > p
}

func matchNumericLessThan(value, pattern any) bool {
	v, errV := toFloat(value)
	p, errP := toFloat(pattern)
	if errV != nil || errP != nil {
		return false
	}
	return v < p
}

// matchBoolean requires a strict boolean value; non-booleans never match.
func matchBoolean(value, pattern any) bool {
	v, okV := value.(bool)
	p, okP := pattern.(bool)
	if !okV || !okP {
		return false
	}
	return v == p
}

func matchJDLength(value, pattern any) bool {
	limit, err := toFloat(pattern)
	if err != nil {
		return false
	}
	return float64(len(toText(value))) < limit
}

func matchJDLengthMin(value, pattern any) bool {
	limit, err := toFloat(pattern)
	if err != nil {
		return false
	}
	return float64(len(toText(value))) > limit
}

// actionVerbs is the fixed vocabulary a legitimate JD is expected to use at
// least once when describing the work.
var actionVerbs = []string{
	"develop", "build", "design", "implement", "create", "maintain",
	"manage", "lead", "analyze", "collaborate", "optimize", "test",
	"deploy", "support", "architect", "deliver", "own", "drive",
	"write", "review", "troubleshoot",
}

// responsibilityPhrases mark sections that describe actual duties.
var responsibilityPhrases = []string{
	"responsibilities", "what you'll do", "what you will do",
	"in this role", "you will", "you'll", "duties", "day to day",
	"about the role",
}

// matchActionVerbCheck activates when a JD describes no concrete work:
// neither an action verb nor a responsibility-section phrase occurs.
func matchActionVerbCheck(value any) bool {
	text := strings.ToLower(toText(value))
	for _, verb := range actionVerbs {
		if strings.Contains(text, verb) {
			return false
		}
	}
	for _, phrase := range responsibilityPhrases {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// The six formatting artifacts that mark copy-pasted or machine-mangled text.
var formattingArtifacts = []*regexp.Regexp{
	regexp.MustCompile(` {5,}`),              // long runs of spaces
	regexp.MustCompile(`\t{2,}`),             // stacked tabs
	regexp.MustCompile(`[•●▪◦]{3,}`),         // runs of bullet glyphs
	regexp.MustCompile(`(?:\n[ \t]*){4,}\n`), // walls of blank lines
	regexp.MustCompile(`[=]{6,}`),            // separator lines
	regexp.MustCompile(`[-_*]{8,}`),          // dash/underscore rules
}

// matchExtremeFormatting activates when at least one artifact is present.
func matchExtremeFormatting(value any) bool {
	text := toText(value)
	for _, re := range formattingArtifacts {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
