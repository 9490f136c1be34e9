package rules

import (
	"strings"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// genericBusinessKeywords are the name fragments that, in combination with
// weak corroborating facts, suggest a staffing intermediary rather than an
// end employer.
var genericBusinessKeywords = []string{
	"consulting", "solutions", "systems", "technologies", "staffing",
	"recruiting", "talent", "services", "global",
}

var legalSuffixes = []string{
	"inc", "inc.", "llc", "llc.", "ltd", "ltd.", "corp", "corp.",
	"co", "co.", "limited", "corporation", "incorporated", "gmbh", "pvt",
}

// matchBodyShop applies the generic-name heuristic to a company.
//
// A company is flagged only when its name contains a generic business
// keyword AND either:
//
//	(a) the name has no legal suffix, the website domain mismatches the
//	    name, and the company has fewer than 100 employees; or
//	(b) the name carries a legal suffix and at least one of: domain
//	    mismatch, fewer than 50 employees, or a short name (≤3 words)
//	    built from two or more generic keywords.
//
// Established companies (matching domain, rating >= 3.5, 500+ employees)
// are never flagged.
func matchBodyShop(companyName string, info *model.CompanyInfo) bool {
	name := strings.ToLower(strings.TrimSpace(companyName))
	if name == "" {
		return false
	}

	generic := countGenericKeywords(name)
	if generic == 0 {
		return false
	}

	domainMatches := info != nil && info.DomainMatchesName != nil && *info.DomainMatchesName
	domainMismatch := info != nil && info.DomainMatchesName != nil && !*info.DomainMatchesName
	size := -1
	if info != nil && info.SizeEmployees != nil {
		size = *info.SizeEmployees
	}
	rating := 0.0
	if info != nil && info.GlassdoorRating != nil {
		rating = *info.GlassdoorRating
	}

	if size >= 500 && domainMatches && rating >= 3.5 {
		return false
	}

	words := strings.Fields(name)
	hasSuffix := hasLegalSuffix(words)

	if !hasSuffix {
		return domainMismatch && size >= 0 && size < 100
	}

	shortGenericName := len(words) <= 3 && generic >= 2
	return domainMismatch || (size >= 0 && size < 50) || shortGenericName
}

func countGenericKeywords(name string) int {
	count := 0
	for _, kw := range genericBusinessKeywords {
		if strings.Contains(name, kw) {
			count++
		}
	}
	return count
}

func hasLegalSuffix(words []string) bool {
	if len(words) == 0 {
		return false
	}
	last := strings.Trim(words[len(words)-1], ",.")
	for _, suffix := range legalSuffixes {
		if last == strings.Trim(suffix, ".") {
			return true
		}
	}
	return false
}
