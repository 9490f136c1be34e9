// Package devseed populates a development database with users and job
// postings so the queue and scorer have something to work with.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB       *sql.DB
	users    *data.UserRepo
	postings *data.JobPostingRepo
}

// NewServices constructs the repositories used for seeding against the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:       db,
		users:    data.NewUserRepo(db, data.RepoConfig{}),
		postings: data.NewJobPostingRepo(db, data.RepoConfig{}),
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedUsers(ctx, svcs.users, logger)
	failures += seedPostings(ctx, svcs.postings, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedUsers(ctx context.Context, repo *data.UserRepo, logger *slog.Logger) int {
	failures := 0
	for _, user := range defaultUsers() {
		created, err := createUser(ctx, repo, user)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create user", "id", user.ID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "user already exists"
			if created {
				msg = "created user"
			}
			logger.InfoContext(ctx, msg, "id", user.ID, "email", user.Email)
		}
	}
	return failures
}

func createUser(ctx context.Context, repo *data.UserRepo, user *model.User) (bool, error) {
	if _, err := repo.Create(ctx, user); err != nil {
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func defaultUsers() []*model.User {
	return []*model.User{
		{ID: "dev-user-1", Email: "dev1@jobshield.test"},
		{ID: "dev-user-2", Email: "dev2@jobshield.test"},
	}
}

// seedPostings upserts the sample postings, so re-running refreshes them in place.
func seedPostings(ctx context.Context, repo *data.JobPostingRepo, logger *slog.Logger) int {
	failures := 0
	for _, posting := range defaultPostings() {
		if _, err := repo.Upsert(ctx, posting); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to upsert posting", "job_id", posting.JobID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "upserted posting", "job_id", posting.JobID, "platform", posting.Platform)
		}
	}
	return failures
}

func defaultPostings() []*model.JobPosting {
	return []*model.JobPosting{
		cleanSamplePosting(),
		suspiciousSamplePosting(),
		sparseSamplePosting(),
	}
}

// cleanSamplePosting looks like a legitimate posting and should score high.
func cleanSamplePosting() *model.JobPosting {
	name := "Jordan Avery"
	title := "Senior Technical Recruiter"
	company := "Northwind Labs"
	age := 54
	recent := 2
	domain := "northwindlabs.com"
	matches := true
	size := 1800
	rating := 4.1
	days := 4
	salaryMin := 150000.0
	salaryMax := 195000.0

	record := &model.JobRecord{
		JobID:       "seed-job-clean",
		URL:         "https://www.linkedin.com/jobs/view/seed-job-clean",
		Platform:    model.PlatformLinkedIn,
		Title:       "Staff Platform Engineer",
		CompanyName: "Northwind Labs",
		Location:    "Denver, CO, US",
		JDText: "Northwind Labs is hiring a Staff Platform Engineer to own our " +
			"deployment and observability stack. You will design infrastructure in " +
			"Go and Terraform, operate our Kubernetes clusters, and mentor the " +
			"platform team. We offer health insurance, 401k matching, and a " +
			"professional development budget. Requirements: 7+ years of " +
			"infrastructure experience and deep familiarity with PostgreSQL and " +
			"Redis. Our interview loop has four stages over roughly three weeks, " +
			"including a systems design session and a take-home exercise. " +
			"Responsibilities include capacity planning, incident response " +
			"rotation, and driving reliability reviews across product teams.",
		PosterInfo: &model.PosterInfo{
			Name:             &name,
			Title:            &title,
			Company:          &company,
			AccountAgeMonths: &age,
			RecentJobCount7d: &recent,
		},
		CompanyInfo: &model.CompanyInfo{
			WebsiteDomain:     &domain,
			DomainMatchesName: &matches,
			SizeEmployees:     &size,
			GlassdoorRating:   &rating,
		},
		PlatformMetadata: &model.PlatformMetadata{
			PostedDaysAgo: &days,
			SalaryMin:     &salaryMin,
			SalaryMax:     &salaryMax,
		},
		CollectionMetadata: &model.CollectionMetadata{
			Platform:       model.PlatformLinkedIn,
			PosterExpected: true,
			PosterPresent:  true,
		},
	}
	return &model.JobPosting{
		JobID:    record.JobID,
		URL:      record.URL,
		Platform: record.Platform,
		Record:   record,
	}
}

// suspiciousSamplePosting carries classic scam markers and should score low.
func suspiciousSamplePosting() *model.JobPosting {
	age := 1
	recent := 31
	days := 75

	record := &model.JobRecord{
		JobID:       "seed-job-suspicious",
		URL:         "https://www.linkedin.com/jobs/view/seed-job-suspicious",
		Platform:    model.PlatformLinkedIn,
		Title:       "Remote Data Entry - Earn $45/hr - Start Today",
		CompanyName: "Confidential",
		JDText: "IMMEDIATE START!!! No experience required, work from home and get " +
			"paid weekly. Contact our hiring manager directly at " +
			"quickhire.team2024@gmail.com with your details. Limited positions, " +
			"apply now before slots fill up!!!",
		PosterInfo: &model.PosterInfo{
			AccountAgeMonths: &age,
			RecentJobCount7d: &recent,
		},
		PlatformMetadata: &model.PlatformMetadata{
			PostedDaysAgo: &days,
		},
		CollectionMetadata: &model.CollectionMetadata{
			Platform:       model.PlatformLinkedIn,
			PosterExpected: true,
			PosterPresent:  true,
		},
	}
	return &model.JobPosting{
		JobID:    record.JobID,
		URL:      record.URL,
		Platform: record.Platform,
		Record:   record,
	}
}

// sparseSamplePosting has no description, exercising the insufficient-data path.
func sparseSamplePosting() *model.JobPosting {
	record := &model.JobRecord{
		JobID:    "seed-job-sparse",
		URL:      "https://boards.greenhouse.io/northwind/jobs/seed-job-sparse",
		Platform: model.PlatformOther,
		Title:    "Software Engineer",
	}
	return &model.JobPosting{
		JobID:    record.JobID,
		URL:      record.URL,
		Platform: record.Platform,
		Record:   record,
	}
}
