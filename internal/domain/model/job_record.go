package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Platform identifies the upstream job board a record was collected from.
type Platform string

const (
	// PlatformLinkedIn represents records collected from LinkedIn.
	PlatformLinkedIn Platform = "linkedin"
	// PlatformIndeed represents records collected from Indeed.
	PlatformIndeed Platform = "indeed"
	// PlatformGlassdoor represents records collected from Glassdoor.
	PlatformGlassdoor Platform = "glassdoor"
	// PlatformOther represents records from any other or unknown source.
	PlatformOther Platform = "other"
)

// PosterInfo describes the account that published a posting, when the
// collection method exposes one.
type PosterInfo struct {
	Name               *string `json:"name,omitempty"`
	Title              *string `json:"title,omitempty"`
	Company            *string `json:"company,omitempty"`
	Location           *string `json:"location,omitempty"`
	AccountAgeMonths   *int    `json:"account_age_months,omitempty"`
	RecentJobCount7d   *int    `json:"recent_job_count_7d,omitempty"`
}

// CompanyInfo carries externally sourced facts about the hiring company.
type CompanyInfo struct {
	WebsiteDomain     *string  `json:"website_domain,omitempty"`
	DomainMatchesName *bool    `json:"domain_matches_name,omitempty"`
	SizeEmployees     *int     `json:"size_employees,omitempty"`
	GlassdoorRating   *float64 `json:"glassdoor_rating,omitempty"`
	HasLayoffsRecent  *bool    `json:"has_layoffs_recent,omitempty"`
}

// PlatformMetadata carries platform-reported facts about the posting itself.
type PlatformMetadata struct {
	PostedDaysAgo    *int     `json:"posted_days_ago,omitempty"`
	RepostCount      *int     `json:"repost_count,omitempty"`
	ApplicantsCount  *int     `json:"applicants_count,omitempty"`
	ViewsCount       *int     `json:"views_count,omitempty"`
	ActivelyHiring   *bool    `json:"actively_hiring_tag,omitempty"`
	EasyApply        *bool    `json:"easy_apply,omitempty"`
	JobType          *string  `json:"job_type,omitempty"`
	SalaryMin        *float64 `json:"salary_min,omitempty"`
	SalaryMax        *float64 `json:"salary_max,omitempty"`
	SalaryInterval   *string  `json:"salary_interval,omitempty"`
}

// ExperienceYears is a derived min/max experience range parsed from the JD.
type ExperienceYears struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Salary is the normalized compensation range derived from platform metadata.
type Salary struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Interval *string  `json:"interval,omitempty"`
}

// Geo is the parsed location of a posting.
type Geo struct {
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

// DerivedSignals holds normalized fields produced by the enricher plus the
// cross-field mismatch flags set during collection.
type DerivedSignals struct {
	JobLevel        *string          `json:"job_level,omitempty"`
	EmploymentType  *string          `json:"employment_type,omitempty"`
	WorkMode        *string          `json:"work_mode,omitempty"`
	VisaSignal      *string          `json:"visa_signal,omitempty"`
	ExperienceYears *ExperienceYears `json:"experience_years,omitempty"`
	Salary          *Salary          `json:"salary,omitempty"`
	Geo             *Geo             `json:"geo,omitempty"`

	PosterCompanyMismatch     *bool `json:"poster_company_mismatch,omitempty"`
	PosterJobLocationMismatch *bool `json:"poster_job_location_mismatch,omitempty"`
	SalaryRangeMismatch       *bool `json:"salary_range_mismatch,omitempty"`
	TitleLevelMismatch        *bool `json:"title_level_mismatch,omitempty"`
	DomainCompanyMismatch     *bool `json:"domain_company_mismatch,omitempty"`
}

// CollectionMetadata records how a posting was collected, which conditions
// the recruiter-signal rule cluster.
type CollectionMetadata struct {
	Platform         Platform `json:"platform,omitempty"`
	CollectionMethod string   `json:"collection_method,omitempty"`
	PosterExpected   bool     `json:"poster_expected"`
	PosterPresent    bool     `json:"poster_present"`
}

// JobRecord is the heterogeneous posting record the scoring engine consumes.
// Any leaf may be absent; rule evaluation tolerates missing fields.
type JobRecord struct {
	JobID    string   `json:"job_id"`
	URL      string   `json:"url"`
	Platform Platform `json:"platform,omitempty"`

	Title       string `json:"title,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Location    string `json:"location,omitempty"`
	JDText      string `json:"jd_text,omitempty"`

	PosterInfo         *PosterInfo         `json:"poster_info,omitempty"`
	CompanyInfo        *CompanyInfo        `json:"company_info,omitempty"`
	PlatformMetadata   *PlatformMetadata   `json:"platform_metadata,omitempty"`
	DerivedSignals     *DerivedSignals     `json:"derived_signals,omitempty"`
	CollectionMetadata *CollectionMetadata `json:"collection_metadata,omitempty"`
}

// Validate checks the identification fields required before persisting a record.
func (r *JobRecord) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return fmt.Errorf("job_id is required")
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// Document renders the record as a generic JSON document so rule data_source
// paths can be resolved with JMESPath. Fields that are absent in the record
// are absent in the document.
func (r *JobRecord) Document() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal job record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal job record document: %w", err)
	}
	return doc, nil
}

// PosterExpected reports whether the collection method was expected to expose
// poster information. Records without collection metadata default to true so
// recruiter rules run at full weight.
func (r *JobRecord) PosterExpected() bool {
	if r.CollectionMetadata == nil {
		return true
	}
	return r.CollectionMetadata.PosterExpected
}

// PosterPresent reports whether poster information was actually collected.
func (r *JobRecord) PosterPresent() bool {
	if r.CollectionMetadata == nil {
		return r.PosterInfo != nil
	}
	return r.CollectionMetadata.PosterPresent
}

// JobPosting is the persisted form of a collected record together with its
// most recent scoring result.
type JobPosting struct {
	JobID      string     `json:"job_id"      db:"job_id"`
	URL        string     `json:"url"         db:"url"`
	Platform   Platform   `json:"platform"    db:"platform"`
	Record     *JobRecord `json:"record"      db:"record"`
	Score      *ScoredJob `json:"score,omitempty"       db:"score"`
	PostedDate *time.Time `json:"posted_date,omitempty" db:"posted_date"`
	CreatedAt  time.Time  `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"  db:"updated_at"`
}
