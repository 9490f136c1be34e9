package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobshield/jobshield/internal/domain/model"
)

// memTaskRepo is an in-memory TaskRepository honoring the same contract as
// the Postgres implementation: batch inserts create initial events, and
// Transition applies a compare-and-swap on the prior status.
type memTaskRepo struct {
	mu     sync.Mutex
	tasks  map[string]*model.Task
	events map[string][]*model.TaskEvent

	// forceRaceStatus, when set, makes the next Transition lose its CAS as if
	// another worker had already moved the task to this status.
	forceRaceStatus *model.TaskStatus

	insertErr error
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{
		tasks:  make(map[string]*model.Task),
		events: make(map[string][]*model.TaskEvent),
	}
}

func (r *memTaskRepo) InsertBatch(_ context.Context, tasks []*model.Task) ([]*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	out := make([]*model.Task, 0, len(tasks))
	for _, t := range tasks {
		cp := *t
		r.tasks[cp.ID] = &cp
		r.events[cp.ID] = append(r.events[cp.ID], &model.TaskEvent{
			ID:         uuid.NewString(),
			TaskID:     cp.ID,
			FromStatus: model.TaskStatusNone,
			ToStatus:   model.TaskStatusQueued,
			CreatedAt:  cp.CreatedAt,
		})
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) List(_ context.Context, opts model.ListTasksOptions) ([]*model.Task, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*model.Task
	for _, t := range r.tasks {
		if t.UserID != opts.UserID {
			continue
		}
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	total := len(matched)
	if opts.Offset >= total {
		return []*model.Task{}, total, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, total, nil
}

func (r *memTaskRepo) ActiveJobIDs(_ context.Context, userID string, jobIDs []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = true
	}
	active := make(map[string]bool)
	for _, t := range r.tasks {
		if t.UserID != userID || !wanted[t.JobID] {
			continue
		}
		switch t.Status {
		case model.TaskStatusQueued, model.TaskStatusInProgress, model.TaskStatusNeedsUser:
			active[t.JobID] = true
		}
	}
	return active, nil
}

func (r *memTaskRepo) Transition(_ context.Context, task *model.Task, req *model.TransitionRequest) (*model.Task, *model.TaskEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[task.ID]
	if !ok {
		return nil, nil, false, fmt.Errorf("task %s not found", task.ID)
	}
	if r.forceRaceStatus != nil {
		stored.Status = *r.forceRaceStatus
		r.forceRaceStatus = nil
	}
	if stored.Status != task.Status {
		cp := *stored
		return &cp, nil, false, nil
	}

	event := &model.TaskEvent{
		ID:         uuid.NewString(),
		TaskID:     stored.ID,
		FromStatus: stored.Status,
		ToStatus:   req.ToStatus,
		Reason:     req.Reason,
		Details:    req.Details,
		CreatedAt:  time.Now(),
	}
	stored.Status = req.ToStatus
	stored.UpdatedAt = event.CreatedAt
	if req.ToStatus == model.TaskStatusInProgress {
		stored.AttemptCount++
	}
	if req.ToStatus == model.TaskStatusFailed {
		stored.LastError = req.Reason
	}
	r.events[stored.ID] = append(r.events[stored.ID], event)

	cp := *stored
	return &cp, event, true, nil
}

func (r *memTaskRepo) ListEvents(_ context.Context, taskID string) ([]*model.TaskEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events[taskID]
	out := make([]*model.TaskEvent, len(events))
	copy(out, events)
	return out, nil
}

func (r *memTaskRepo) Stats(_ context.Context, userID string) (*model.TaskStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &model.TaskStats{}
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		switch t.Status {
		case model.TaskStatusQueued:
			stats.Queued++
		case model.TaskStatusInProgress:
			stats.InProgress++
		case model.TaskStatusNeedsUser:
			stats.NeedsUser++
		case model.TaskStatusSuccess:
			stats.Success++
		case model.TaskStatusFailed:
			stats.Failed++
		case model.TaskStatusCanceled:
			stats.Canceled++
		}
	}
	return stats, nil
}

func (r *memTaskRepo) StaleInProgress(_ context.Context, cutoff time.Time, limit int) ([]*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*model.Task
	for _, t := range r.tasks {
		if t.Status == model.TaskStatusInProgress && t.UpdatedAt.Before(cutoff) {
			cp := *t
			stale = append(stale, &cp)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *memTaskRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			delete(r.tasks, id)
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// memRunRepo is an in-memory RunRepository.
type memRunRepo struct {
	mu   sync.Mutex
	runs map[string]*model.ApplyRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[string]*model.ApplyRun)}
}

func (r *memRunRepo) Create(_ context.Context, run *model.ApplyRun) (*model.ApplyRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRunRepo) GetByID(_ context.Context, id string) (*model.ApplyRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (r *memRunRepo) Update(_ context.Context, id string, patch *model.RunPatch) (*model.ApplyRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if patch.CurrentURL != nil {
		run.CurrentURL = *patch.CurrentURL
	}
	if patch.ATSKind != nil {
		run.ATSKind = patch.ATSKind
	}
	if patch.Intent != nil {
		run.Intent = patch.Intent
	}
	if patch.Stage != nil {
		run.Stage = patch.Stage
	}
	if patch.FillRate != nil {
		run.FillRate = patch.FillRate
	}
	if patch.FieldsAttempted != nil {
		run.FieldsAttempted = patch.FieldsAttempted
	}
	if patch.FieldsFilled != nil {
		run.FieldsFilled = patch.FieldsFilled
	}
	if patch.FieldsSkipped != nil {
		run.FieldsSkipped = patch.FieldsSkipped
	}
	if patch.FailureReason != nil {
		run.FailureReason = patch.FailureReason
	}
	now := time.Now()
	if patch.Status != nil {
		run.Status = *patch.Status
		if patch.Status.Terminal() && run.EndedAt == nil {
			run.EndedAt = &now
		}
	}
	run.UpdatedAt = now
	cp := *run
	return &cp, nil
}

func (r *memRunRepo) StaleInProgress(_ context.Context, cutoff time.Time, limit int) ([]*model.ApplyRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*model.ApplyRun
	for _, run := range r.runs {
		if run.Status == model.RunStatusInProgress && run.UpdatedAt.Before(cutoff) {
			cp := *run
			stale = append(stale, &cp)
		}
	}
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *memRunRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, run := range r.runs {
		if run.Status.Terminal() && run.UpdatedAt.Before(cutoff) {
			delete(r.runs, id)
			deleted++
		}
	}
	return deleted, nil
}

// memEventRepo is an in-memory ObservabilityEventRepository.
type memEventRepo struct {
	mu     sync.Mutex
	events []*model.ObservabilityEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{}
}

func (r *memEventRepo) Insert(_ context.Context, event *model.ObservabilityEvent) (*model.ObservabilityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.events = append(r.events, &cp)
	out := cp
	return &out, nil
}

func (r *memEventRepo) ListByRun(_ context.Context, runID string) ([]*model.ObservabilityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ObservabilityEvent
	for _, e := range r.events {
		if e.RunID == runID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out, nil
}

func (r *memEventRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	deleted := 0
	for _, e := range r.events {
		if e.TS.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// memPostingRepo is an in-memory JobPostingRepository.
type memPostingRepo struct {
	mu       sync.Mutex
	postings map[string]*model.JobPosting
	scores   map[string]*model.ScoredJob
	saveErr  error
}

func newMemPostingRepo(postings ...*model.JobPosting) *memPostingRepo {
	repo := &memPostingRepo{
		postings: make(map[string]*model.JobPosting),
		scores:   make(map[string]*model.ScoredJob),
	}
	for _, p := range postings {
		repo.postings[p.JobID] = p
	}
	return repo
}

func (r *memPostingRepo) Upsert(_ context.Context, posting *model.JobPosting) (*model.JobPosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postings[posting.JobID] = posting
	return posting, nil
}

func (r *memPostingRepo) GetByID(_ context.Context, jobID string) (*model.JobPosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.postings[jobID], nil
}

func (r *memPostingRepo) GetByIDs(_ context.Context, jobIDs []string) (map[string]*model.JobPosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.JobPosting)
	for _, id := range jobIDs {
		if p, ok := r.postings[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *memPostingRepo) SaveScore(_ context.Context, jobID string, score *model.ScoredJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.scores[jobID] = score
	return nil
}

func (r *memPostingRepo) List(_ context.Context, limit, offset int) ([]*model.JobPosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.postings))
	for id := range r.postings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []*model.JobPosting
	for i, id := range ids {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.postings[id])
	}
	return out, nil
}

func (r *memPostingRepo) ListUnscored(_ context.Context, limit int) ([]*model.JobPosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.postings))
	for id := range r.postings {
		if r.postings[id].Score == nil && r.scores[id] == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []*model.JobPosting
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.postings[id])
	}
	return out, nil
}

// memUserRepo is an in-memory UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo(ids ...string) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]*model.User)}
	for _, id := range ids {
		repo.users[id] = &model.User{ID: id}
	}
	return repo
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memUserRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[id]
	return ok, nil
}

// memSessionStore is an in-memory SessionStore. TTL is enforced by the
// service against its clock, matching the store contract under test.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.ActiveApplySession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*model.ActiveApplySession)}
}

func (s *memSessionStore) Set(_ context.Context, session *model.ActiveApplySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[cp.UserID] = &cp
	return nil
}

func (s *memSessionStore) Get(_ context.Context, userID string) (*model.ActiveApplySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (s *memSessionStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// memLocker is an in-memory Locker ignoring TTLs; tests release explicitly.
type memLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	fails bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fails {
		return false, fmt.Errorf("locker unavailable")
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
