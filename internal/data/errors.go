package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrUserIDRequired guards inserts that need an owning user.
	ErrUserIDRequired = errors.New("user_id is required")

	// ErrJobIDRequired guards inserts that need a posting reference.
	ErrJobIDRequired = errors.New("job_id is required")
)
