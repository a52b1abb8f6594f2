package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"exam-session-service/internal/domain"
)

// UserProvider is the read-only user directory.
type UserProvider interface {
	FindUser(ctx context.Context, id string) (domain.User, error)
}

// QuestionProvider resolves a question together with its owning
// collection's test parameters.
type QuestionProvider interface {
	FindQuestion(ctx context.Context, id string) (domain.Question, domain.Collection, error)
}

// CollectionProvider loads a collection with its full question bank.
type CollectionProvider interface {
	GetCollection(ctx context.Context, id string) (domain.Collection, error)
}

// AttemptStore is the persistence gateway for exam attempts.
type AttemptStore interface {
	// InUserTx runs fn atomically while holding an exclusive per-user lock,
	// so two concurrent submissions cannot both create an attempt.
	InUserTx(ctx context.Context, userID string, fn func(tx AttemptTx) error) error
	FindAttempt(ctx context.Context, id string) (domain.ExamAttempt, error)
	ListAttempts(ctx context.Context, filter domain.AttemptFilter) (domain.AttemptPage, error)
	DeleteAttempt(ctx context.Context, id string) error
	// SweepExpired removes every unfinished attempt whose deadline passed.
	// Idempotent; safe to call concurrently.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// AttemptTx is the per-submission transactional view of the store.
type AttemptTx interface {
	FindActive(ctx context.Context, userID string) (domain.ExamAttempt, bool, error)
	CreateAttempt(ctx context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error)
	Supersede(ctx context.Context, attemptID string) error
	AppendAnswerRecord(ctx context.Context, record domain.AttemptAnswerRecord) error
	UpdateProgress(ctx context.Context, attemptID string, findQuestionCount int, finished bool, endTime time.Time) error
}

// SubmitAnswerInput is one answered question within an attempt.
type SubmitAnswerInput struct {
	UserID            string
	QuestionID        string
	QuestionNumber    int
	SelectedAnswerIDs []string
	ElapsedTime       string
}

// AttemptEngine drives the attempt lifecycle: it starts sessions on the
// first submission, accumulates per-question scores, detects completion,
// and reclaims abandoned sessions.
type AttemptEngine struct {
	store     AttemptStore
	users     UserProvider
	questions QuestionProvider
	now       func() time.Time
}

func NewAttemptEngine(store AttemptStore, users UserProvider, questions QuestionProvider) *AttemptEngine {
	return NewAttemptEngineWithClock(store, users, questions, time.Now)
}

// NewAttemptEngineWithClock allows deterministic timestamps in tests.
func NewAttemptEngineWithClock(store AttemptStore, users UserProvider, questions QuestionProvider, now func() time.Time) *AttemptEngine {
	return &AttemptEngine{store: store, users: users, questions: questions, now: now}
}

// SubmitAnswer records one answered question for the user's active attempt,
// creating the attempt if none exists. questionNumber == 1 over a stale
// attempt supersedes it and starts fresh. Reaching the collection's test
// length finishes the attempt.
func (e *AttemptEngine) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (domain.ExamAttempt, error) {
	user, err := e.users.FindUser(ctx, in.UserID)
	if err != nil {
		return domain.ExamAttempt{}, err
	}
	question, collection, err := e.questions.FindQuestion(ctx, in.QuestionID)
	if err != nil {
		return domain.ExamAttempt{}, err
	}

	correctCount, findCount, err := scoreSelection(question, in.SelectedAnswerIDs)
	if err != nil {
		return domain.ExamAttempt{}, err
	}

	var result domain.ExamAttempt
	err = e.store.InUserTx(ctx, in.UserID, func(tx AttemptTx) error {
		attempt, active, err := tx.FindActive(ctx, in.UserID)
		if err != nil {
			return err
		}

		if active && in.QuestionNumber == 1 {
			// A fresh cycle over a stale attempt: abandon the old one.
			if err := tx.Supersede(ctx, attempt.ID); err != nil {
				log.Printf("supersede attempt %s: %v", attempt.ID, err)
			}
			active = false
		}

		if !active {
			now := e.now()
			attempt, err = tx.CreateAttempt(ctx, domain.ExamAttempt{
				UserID:           user.ID,
				CollectionID:     collection.ID,
				UserFullName:     user.FullName,
				GroupName:        user.GroupName,
				FacultyName:      user.FacultyName,
				Course:           user.Course,
				CollectionName:   collection.Name,
				HemisID:          user.HemisID,
				AllQuestionCount: collection.AmountInTest,
				State:            domain.AttemptInProgress,
				StartTime:        now,
				UntilTime:        now.Add(time.Duration(collection.GivenMinutes) * time.Minute),
				CreatedAt:        now,
			})
			if err != nil {
				return err
			}
		}

		if err := tx.AppendAnswerRecord(ctx, domain.AttemptAnswerRecord{
			AttemptID:          attempt.ID,
			QuestionNumber:     in.QuestionNumber,
			QuestionText:       question.Text,
			QuestionImageURL:   question.ImageURL,
			CorrectAnswerCount: correctCount,
			FindAnswerCount:    findCount,
			ElapsedTime:        in.ElapsedTime,
			CreatedAt:          e.now(),
		}); err != nil {
			return err
		}

		if findCount > 0 {
			attempt.FindQuestionCount++
		}
		finished := in.QuestionNumber == attempt.AllQuestionCount
		var endTime time.Time
		if finished {
			endTime = e.now()
			attempt.HasFinished = true
			attempt.State = domain.AttemptFinished
			attempt.EndTime = &endTime
		}
		if err := tx.UpdateProgress(ctx, attempt.ID, attempt.FindQuestionCount, finished, endTime); err != nil {
			return err
		}

		result = attempt
		return nil
	})
	if err != nil {
		return domain.ExamAttempt{}, err
	}
	return result, nil
}

// SweepAbandoned deletes every unfinished attempt whose deadline has
// passed. Nothing to sweep is not an error.
func (e *AttemptEngine) SweepAbandoned(ctx context.Context) (int, error) {
	return e.store.SweepExpired(ctx, e.now())
}

// FindAttempt returns one attempt with its answer records.
func (e *AttemptEngine) FindAttempt(ctx context.Context, id string) (domain.ExamAttempt, error) {
	return e.store.FindAttempt(ctx, id)
}

// ListAttempts returns a filtered, paginated page of attempts.
func (e *AttemptEngine) ListAttempts(ctx context.Context, filter domain.AttemptFilter) (domain.AttemptPage, error) {
	if filter.PageNumber < 1 {
		filter.PageNumber = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	return e.store.ListAttempts(ctx, filter)
}

// DeleteAttempt physically removes an attempt and its records.
func (e *AttemptEngine) DeleteAttempt(ctx context.Context, id string) error {
	if _, err := e.store.FindAttempt(ctx, id); err != nil {
		return err
	}
	return e.store.DeleteAttempt(ctx, id)
}

// scoreSelection validates the selected answer IDs against the question
// and returns (#correct answers on the question, #correct answers picked).
func scoreSelection(question domain.Question, selected []string) (int, int, error) {
	byID := make(map[string]domain.Answer, len(question.Answers))
	correctCount := 0
	for _, a := range question.Answers {
		byID[a.ID] = a
		if a.IsCorrect {
			correctCount++
		}
	}

	findCount := 0
	for _, id := range selected {
		answer, ok := byID[id]
		if !ok {
			return 0, 0, fmt.Errorf("%w: %s", domain.ErrAnswerNotFound, id)
		}
		if answer.IsCorrect {
			findCount++
		}
	}
	return correctCount, findCount, nil
}
