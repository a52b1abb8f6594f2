package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore, used in
// tests and when the service runs without Postgres. A single mutex stands
// in for the per-user lock the SQL store takes.
type AttemptStore struct {
	mu       sync.Mutex
	seq      int
	attempts map[string]*domain.ExamAttempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]*domain.ExamAttempt)}
}

func (s *AttemptStore) InUserTx(_ context.Context, _ string, fn func(tx app.AttemptTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&attemptTx{store: s})
}

func (s *AttemptStore) FindAttempt(_ context.Context, id string) (domain.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.ExamAttempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) ListAttempts(_ context.Context, filter domain.AttemptFilter) (domain.AttemptPage, error) {
	clampPaging(&filter)
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.ExamAttempt
	for _, attempt := range s.attempts {
		if matchesFilter(attempt, filter) {
			matched = append(matched, cloneAttempt(attempt))
		}
	}
	// newest first, mirroring the SQL store's ordering
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].CreatedAt.After(matched[i].CreatedAt) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}

	total := len(matched)
	start := (filter.PageNumber - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return domain.AttemptPage{
		TotalCount: total,
		PageSize:   end - start,
		PageCount:  int(math.Ceil(float64(total) / float64(filter.PageSize))),
		Data:       matched[start:end],
	}, nil
}

func (s *AttemptStore) DeleteAttempt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[id]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, id)
	return nil
}

func (s *AttemptStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, attempt := range s.attempts {
		if !attempt.HasFinished && attempt.UntilTime.Before(now) {
			delete(s.attempts, id)
			removed++
		}
	}
	return removed, nil
}

// attemptTx operates on the store while its mutex is held by InUserTx.
type attemptTx struct {
	store *AttemptStore
}

func (t *attemptTx) FindActive(_ context.Context, userID string) (domain.ExamAttempt, bool, error) {
	for _, attempt := range t.store.attempts {
		if attempt.UserID == userID && attempt.State == domain.AttemptInProgress {
			return cloneAttempt(attempt), true, nil
		}
	}
	return domain.ExamAttempt{}, false, nil
}

func (t *attemptTx) CreateAttempt(_ context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error) {
	t.store.seq++
	attempt.ID = fmt.Sprintf("attempt-%d", t.store.seq)
	stored := attempt
	t.store.attempts[attempt.ID] = &stored
	return attempt, nil
}

func (t *attemptTx) Supersede(_ context.Context, attemptID string) error {
	attempt, ok := t.store.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.State = domain.AttemptSuperseded
	return nil
}

func (t *attemptTx) AppendAnswerRecord(_ context.Context, record domain.AttemptAnswerRecord) error {
	attempt, ok := t.store.attempts[record.AttemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	t.store.seq++
	record.ID = fmt.Sprintf("record-%d", t.store.seq)
	attempt.AnswerRecords = append(attempt.AnswerRecords, record)
	return nil
}

func (t *attemptTx) UpdateProgress(_ context.Context, attemptID string, findQuestionCount int, finished bool, endTime time.Time) error {
	attempt, ok := t.store.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.FindQuestionCount = findQuestionCount
	if finished {
		attempt.HasFinished = true
		attempt.State = domain.AttemptFinished
		end := endTime
		attempt.EndTime = &end
	}
	return nil
}

// clampPaging guards direct store callers; the engine applies the same
// defaults before delegating.
func clampPaging(f *domain.AttemptFilter) {
	if f.PageNumber < 1 {
		f.PageNumber = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
}

func matchesFilter(a *domain.ExamAttempt, f domain.AttemptFilter) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.CollectionID != "" && a.CollectionID != f.CollectionID {
		return false
	}
	if f.FullName != "" && a.UserFullName != f.FullName {
		return false
	}
	if f.GroupName != "" && a.GroupName != f.GroupName {
		return false
	}
	if f.FacultyName != "" && a.FacultyName != f.FacultyName {
		return false
	}
	if f.HemisID != "" && a.HemisID != f.HemisID {
		return false
	}
	if f.Course != 0 && a.Course != f.Course {
		return false
	}
	if f.HasFinished != nil && a.HasFinished != *f.HasFinished {
		return false
	}
	return true
}

func cloneAttempt(a *domain.ExamAttempt) domain.ExamAttempt {
	clone := *a
	clone.AnswerRecords = append([]domain.AttemptAnswerRecord(nil), a.AnswerRecords...)
	return clone
}
