package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"offboarding-workflow/internal/domain"
)

// MemoryStore keeps everything in process. It backs tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu          sync.Mutex
	submissions map[string]domain.Submission
	mappings    []domain.LeaderMapping
	emails      []domain.EmailLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{submissions: make(map[string]domain.Submission)}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Create(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	s.submissions[sub.ID] = clone(sub)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("get %s: %w", id, domain.ErrSubmissionNotFound)
	}
	return clone(sub), nil
}

func (s *MemoryStore) CompareAndSetStatus(_ context.Context, expect domain.Precondition, next domain.Submission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.submissions[expect.ID]
	if !ok {
		return false, nil
	}
	if cur.ResignationStatus != expect.ResignationStatus || cur.ExitInterviewStatus != expect.ExitInterviewStatus {
		return false, nil
	}
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.LastRemindedAt = cur.LastRemindedAt
	s.submissions[cur.ID] = clone(next)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if matchesStatus(sub.ResignationStatus, filter.Statuses) {
			out = append(out, clone(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ScanWaiting(_ context.Context, statuses []domain.ResignationStatus) ([]domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Submission, 0)
	for _, sub := range s.submissions {
		if matchesStatus(sub.ResignationStatus, statuses) {
			out = append(out, clone(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) ConditionalSetLastReminded(_ context.Context, id string, status domain.ResignationStatus, now time.Time, threshold time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.ResignationStatus != status {
		return false, nil
	}
	if sub.LastRemindedAt != nil && sub.LastRemindedAt.After(now.Add(-threshold)) {
		return false, nil
	}
	stamp := now
	sub.LastRemindedAt = &stamp
	s.submissions[id] = sub
	return true, nil
}

func (s *MemoryStore) ReplaceLeaderMappings(_ context.Context, mappings []domain.LeaderMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = append([]domain.LeaderMapping(nil), mappings...)
	return nil
}

func (s *MemoryStore) LeaderMappings(context.Context) ([]domain.LeaderMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LeaderMapping(nil), s.mappings...), nil
}

func (s *MemoryStore) RecordEmail(_ context.Context, entry domain.EmailLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, entry)
	return nil
}

func (s *MemoryStore) EmailLog(_ context.Context, submissionID string) ([]domain.EmailLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EmailLogEntry, 0)
	for _, e := range s.emails {
		if submissionID == "" || e.SubmissionID == submissionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetLastReminded overwrites the reminder stamp. Tests use it to stage history.
func (s *MemoryStore) SetLastReminded(id string, at *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return
	}
	if at != nil {
		v := *at
		at = &v
	}
	sub.LastRemindedAt = at
	s.submissions[id] = sub
}

func matchesStatus(status domain.ResignationStatus, statuses []domain.ResignationStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func clone(sub domain.Submission) domain.Submission {
	sub.LastRemindedAt = cloneTime(sub.LastRemindedAt)
	sub.ExitInterview.ScheduledAt = cloneTime(sub.ExitInterview.ScheduledAt)
	sub.ExitInterview.CompletedAt = cloneTime(sub.ExitInterview.CompletedAt)
	return sub
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
