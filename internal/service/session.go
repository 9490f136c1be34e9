package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jobshield/jobshield/internal/core"
	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Store        core.SessionStore // Required: session persistence
	TimeProvider data.TimeProvider // Optional: defaults to real time
	Logger       *slog.Logger      // Optional: structured logger
}

// SessionService maintains the per-user active apply session that binds a
// detached worker to the correct task and run. One session per user; setting
// a new one replaces the old atomically.
type SessionService struct {
	store        core.SessionStore
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}

	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "session_service")
	}

	return &SessionService{
		store:        opts.Store,
		timeProvider: timeProvider,
		logger:       logger,
	}, nil
}

// SetActiveSessionRequest binds a user to an in-flight task and run.
type SetActiveSessionRequest struct {
	UserID  string  `json:"user_id"`
	TaskID  string  `json:"task_id"`
	RunID   string  `json:"run_id"`
	JobURL  string  `json:"job_url"`
	ATSType *string `json:"ats_type,omitempty"`
}

// Validate validates the set-session request.
func (r *SetActiveSessionRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.TaskID) == "" {
		return errors.New("task_id is required")
	}
	if strings.TrimSpace(r.RunID) == "" {
		return errors.New("run_id is required")
	}
	if strings.TrimSpace(r.JobURL) == "" {
		return errors.New("job_url is required")
	}
	return nil
}

// Set upserts the user's session with a fresh TTL.
func (s *SessionService) Set(ctx context.Context, req *SetActiveSessionRequest) (*model.ActiveApplySession, error) {
	if req == nil {
		return nil, apperrors.Validation("session request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid session request")
	}

	now := s.timeProvider.Now()
	session := &model.ActiveApplySession{
		UserID:    req.UserID,
		TaskID:    req.TaskID,
		RunID:     req.RunID,
		JobURL:    req.JobURL,
		ATSType:   req.ATSType,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(model.ActiveApplySessionTTL),
	}

	if err := s.store.Set(ctx, session); err != nil {
		return nil, fmt.Errorf("set session for user %s: %w", req.UserID, err)
	}

	if s.logger != nil {
		s.logger.Info("active session set",
			"user_id", session.UserID,
			"task_id", session.TaskID,
			"run_id", session.RunID,
			"expires_at", session.ExpiresAt)
	}
	return session, nil
}

// Get returns the user's session, or nil when absent or expired. Expired
// rows are deleted opportunistically.
func (s *SessionService) Get(ctx context.Context, userID string) (*model.ActiveApplySession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation("user_id is required")
	}

	session, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session for user %s: %w", userID, err)
	}
	if session == nil {
		return nil, nil
	}
	if session.Expired(s.timeProvider.Now()) {
		if clearErr := s.store.Clear(ctx, userID); clearErr != nil && s.logger != nil {
			s.logger.Warn("clear expired session failed", "user_id", userID, "error", clearErr)
		}
		return nil, nil
	}
	return session, nil
}

// Clear deletes the user's session if present.
func (s *SessionService) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.Validation("user_id is required")
	}
	if err := s.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear session for user %s: %w", userID, err)
	}
	if s.logger != nil {
		s.logger.Debug("active session cleared", "user_id", userID)
	}
	return nil
}
