package model

import "time"

// ActiveApplySessionTTL is how long a session binds a worker to a run before
// it silently expires.
const ActiveApplySessionTTL = 2 * time.Hour

// ActiveApplySession is the per-user pointer to the currently in-flight run.
// Setting it replaces any prior session for the user atomically; the session
// is considered absent once ExpiresAt has passed.
type ActiveApplySession struct {
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id"`
	RunID     string    `json:"run_id"`
	JobURL    string    `json:"job_url"`
	ATSType   *string   `json:"ats_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the session is past its TTL at the given instant.
func (s *ActiveApplySession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
