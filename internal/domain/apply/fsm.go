// Package apply holds the pure pieces of the apply orchestrator: the task
// state machine and the queue priority calculator.
package apply

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// legalTransitions is the full task state machine. Terminal states have no
// outbound edges. failed is non-terminal: retry moves it back to queued.
var legalTransitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskStatusQueued:     {model.TaskStatusInProgress, model.TaskStatusCanceled},
	model.TaskStatusInProgress: {model.TaskStatusNeedsUser, model.TaskStatusFailed, model.TaskStatusCanceled},
	model.TaskStatusNeedsUser:  {model.TaskStatusSuccess, model.TaskStatusFailed, model.TaskStatusInProgress},
	model.TaskStatusFailed:     {model.TaskStatusQueued},
	model.TaskStatusSuccess:    {},
	model.TaskStatusCanceled:   {},
}

// LegalTransitions returns the allowed targets from a status, sorted for
// stable error messages.
func LegalTransitions(from model.TaskStatus) []model.TaskStatus {
	targets, ok := legalTransitions[from]
	if !ok {
		return nil
	}
	out := make([]model.TaskStatus, len(targets))
	copy(out, targets)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to model.TaskStatus) bool {
	for _, target := range legalTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a requested transition, naming both states and
// the legal set on failure.
func CheckTransition(from, to model.TaskStatus, reason *string) error {
	if !to.Valid() {
		return apperrors.Validationf("unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return apperrors.Validationf(
			"invalid transition %s -> %s (legal: %s)",
			from, to, formatStatuses(LegalTransitions(from)))
	}
	if to == model.TaskStatusFailed && (reason == nil || strings.TrimSpace(*reason) == "") {
		return apperrors.Validation("reason is required when failing a task")
	}
	return nil
}

func formatStatuses(statuses []model.TaskStatus) string {
	if len(statuses) == 0 {
		return "none"
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}
