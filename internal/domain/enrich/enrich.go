// Package enrich derives normalized signals from a raw job record: seniority,
// employment type, work mode, visa stance, experience range, salary, and geo.
// All transforms are pure and lossless; Apply merges derived values into the
// record without touching fields it does not produce.
package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// Job seniority levels, matched against the title in this priority order.
const (
	LevelIntern  = "intern"
	LevelNewGrad = "new_grad"
	LevelStaff   = "staff"
	LevelSenior  = "senior"
	LevelJunior  = "junior"
	LevelMid     = "mid"
)

const (
	EmploymentFullTime   = "full_time"
	EmploymentPartTime   = "part_time"
	EmploymentContract   = "contract"
	EmploymentInternship = "internship"
)

const (
	WorkModeRemote = "remote"
	WorkModeHybrid = "hybrid"
	WorkModeOnsite = "onsite"
)

const (
	VisaExplicitYes = "explicit_yes"
	VisaExplicitNo  = "explicit_no"
	VisaUnclear     = "unclear"
)

// Enrich derives all signals from the record. The result carries only the
// derived keys; mismatch flags and anything else already on the record are
// left for Apply to preserve.
func Enrich(rec *model.JobRecord) *model.DerivedSignals {
	if rec == nil {
		return &model.DerivedSignals{}
	}

	level := JobLevel(rec.Title)
	employment := EmploymentType(rec)
	mode := WorkMode(rec)
	visa := VisaSignal(rec.JDText)

	out := &model.DerivedSignals{
		JobLevel:       &level,
		EmploymentType: &employment,
		WorkMode:       &mode,
		VisaSignal:     &visa,
	}
	if years := ExperienceYears(rec.JDText); years != nil {
		out.ExperienceYears = years
	}
	if salary := NormalizeSalary(rec.PlatformMetadata); salary != nil {
		out.Salary = salary
	}
	if geo := ParseGeo(rec.Location); geo != nil {
		out.Geo = geo
	}
	return out
}

// Apply merges freshly derived signals into the record, overwriting only the
// keys the enricher produces. Cross-field mismatch flags set at collection
// time survive untouched.
func Apply(rec *model.JobRecord) {
	if rec == nil {
		return
	}
	derived := Enrich(rec)
	if rec.DerivedSignals == nil {
		rec.DerivedSignals = derived
		return
	}

	rec.DerivedSignals.JobLevel = derived.JobLevel
	rec.DerivedSignals.EmploymentType = derived.EmploymentType
	rec.DerivedSignals.WorkMode = derived.WorkMode
	rec.DerivedSignals.VisaSignal = derived.VisaSignal
	if derived.ExperienceYears != nil {
		rec.DerivedSignals.ExperienceYears = derived.ExperienceYears
	}
	if derived.Salary != nil {
		rec.DerivedSignals.Salary = derived.Salary
	}
	if derived.Geo != nil {
		rec.DerivedSignals.Geo = derived.Geo
	}
}

// levelKeywords is consulted in order; the first bucket with a hit wins.
var levelKeywords = []struct {
	level    string
	keywords []string
}{
	{LevelIntern, []string{"intern", "internship"}},
	{LevelNewGrad, []string{"new grad", "entry level", "graduate"}},
	{LevelStaff, []string{"staff", "principal", "architect"}},
	{LevelSenior, []string{"senior", "sr.", "sr "}},
	{LevelJunior, []string{"junior", "jr.", "jr "}},
}

// JobLevel classifies a title's seniority; unmatched titles are mid-level.
func JobLevel(title string) string {
	t := strings.ToLower(title)
	for _, bucket := range levelKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(t, kw) {
				return bucket.level
			}
		}
	}
	return LevelMid
}

// EmploymentType prefers the platform-reported job type over title keywords.
func EmploymentType(rec *model.JobRecord) string {
	var jobType string
	if rec.PlatformMetadata != nil && rec.PlatformMetadata.JobType != nil {
		jobType = strings.ToLower(*rec.PlatformMetadata.JobType)
	}
	if jobType != "" {
		switch {
		case strings.Contains(jobType, "intern"):
			return EmploymentInternship
		case strings.Contains(jobType, "contract"):
			return EmploymentContract
		case strings.Contains(jobType, "part"):
			return EmploymentPartTime
		case strings.Contains(jobType, "full"):
			return EmploymentFullTime
		}
	}

	title := strings.ToLower(rec.Title)
	switch {
	case strings.Contains(title, "intern"):
		return EmploymentInternship
	case strings.Contains(title, "contract"):
		return EmploymentContract
	case strings.Contains(title, "part-time"), strings.Contains(title, "part time"):
		return EmploymentPartTime
	default:
		return EmploymentFullTime
	}
}

var remotePhrases = []string{"fully remote", "100% remote", "work from home", "wfh"}

// WorkMode derives remote/hybrid/onsite from title, location, and JD text.
func WorkMode(rec *model.JobRecord) string {
	title := strings.ToLower(rec.Title)
	location := strings.ToLower(rec.Location)
	jd := strings.ToLower(rec.JDText)

	if strings.Contains(title, "remote") || strings.Contains(location, "remote") {
		return WorkModeRemote
	}
	for _, phrase := range remotePhrases {
		if strings.Contains(jd, phrase) {
			return WorkModeRemote
		}
	}
	if strings.Contains(title, "hybrid") || strings.Contains(jd, "hybrid") {
		return WorkModeHybrid
	}
	return WorkModeOnsite
}

// The no-sponsorship list is checked first: a posting that says both is
// treated as not sponsoring.
var noSponsorshipPhrases = []string{
	"no sponsorship", "not able to sponsor", "unable to sponsor",
	"cannot sponsor", "will not sponsor", "without sponsorship",
	"no visa sponsorship", "us citizens only", "must be authorized to work",
	"no c2c",
}

var yesSponsorshipPhrases = []string{
	"visa sponsorship available", "sponsorship available", "will sponsor",
	"we sponsor", "h1b sponsorship", "h-1b sponsorship",
	"sponsorship is available", "open to sponsorship",
}

// VisaSignal reads the JD's sponsorship stance.
func VisaSignal(jdText string) string {
	jd := strings.ToLower(jdText)
	for _, phrase := range noSponsorshipPhrases {
		if strings.Contains(jd, phrase) {
			return VisaExplicitNo
		}
	}
	for _, phrase := range yesSponsorshipPhrases {
		if strings.Contains(jd, phrase) {
			return VisaExplicitYes
		}
	}
	return VisaUnclear
}

// Experience patterns, tried in order. The range form yields min and max;
// the rest yield only min.
var (
	expRangeRe   = regexp.MustCompile(`(?i)(\d+)\s*-\s*(\d+)\+?\s*(?:years|yrs)`)
	expPlusRe    = regexp.MustCompile(`(?i)(\d+)\s*\+\s*(?:years|yrs)`)
	expMinimumRe = regexp.MustCompile(`(?i)(?:minimum|at least)\s+(?:of\s+)?(\d+)\s*(?:years|yrs)`)
	expPlainRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:years|yrs)\s+(?:of\s+)?experience`)
)

// ExperienceYears extracts the required experience range from JD text.
// Returns nil when no pattern matches.
func ExperienceYears(jdText string) *model.ExperienceYears {
	if m := expRangeRe.FindStringSubmatch(jdText); m != nil {
		minYears, _ := strconv.Atoi(m[1])
		maxYears, _ := strconv.Atoi(m[2])
		return &model.ExperienceYears{Min: &minYears, Max: &maxYears}
	}
	for _, re := range []*regexp.Regexp{expPlusRe, expMinimumRe, expPlainRe} {
		if m := re.FindStringSubmatch(jdText); m != nil {
			minYears, _ := strconv.Atoi(m[1])
			return &model.ExperienceYears{Min: &minYears}
		}
	}
	return nil
}

const (
	IntervalYearly  = "yearly"
	IntervalMonthly = "monthly"
	IntervalHourly  = "hourly"
)

// NormalizeSalary lifts platform-reported compensation into the normalized
// shape. Returns nil when the platform reported nothing.
func NormalizeSalary(meta *model.PlatformMetadata) *model.Salary {
	if meta == nil || (meta.SalaryMin == nil && meta.SalaryMax == nil) {
		return nil
	}

	interval := IntervalYearly
	if meta.SalaryInterval != nil {
		switch raw := strings.ToLower(*meta.SalaryInterval); {
		case strings.Contains(raw, "hour"), strings.Contains(raw, "hr"):
			interval = IntervalHourly
		case strings.Contains(raw, "month"), strings.Contains(raw, "mo"):
			interval = IntervalMonthly
		}
	}

	return &model.Salary{Min: meta.SalaryMin, Max: meta.SalaryMax, Interval: &interval}
}

// ParseGeo splits a free-form location into city/state/country. Returns nil
// for a blank location.
func ParseGeo(location string) *model.Geo {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return nil
	}
	if strings.EqualFold(loc, "remote") {
		city := "Remote"
		return &model.Geo{City: &city}
	}

	parts := strings.Split(loc, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	geo := &model.Geo{City: &parts[0]}
	if len(parts) >= 2 {
		geo.State = &parts[1]
	}
	if len(parts) >= 3 {
		geo.Country = &parts[2]
	}
	return geo
}
