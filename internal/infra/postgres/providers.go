package postgres

import (
	"context"
	"errors"
	"fmt"

	"exam-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// UserProvider reads the student directory. Read-only: reference-data CRUD
// lives outside this service.
type UserProvider struct {
	pool *pgxpool.Pool
}

func NewUserProvider(pool *pgxpool.Pool) *UserProvider {
	return &UserProvider{pool: pool}
}

func (p *UserProvider) FindUser(ctx context.Context, id string) (domain.User, error) {
	var user domain.User
	err := p.pool.QueryRow(ctx, `
		SELECT id, full_name, group_name, course, faculty_name, hemis_id
		FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.FullName, &user.GroupName, &user.Course, &user.FacultyName, &user.HemisID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// QuestionProvider resolves a question, its live answers, and the owning
// collection's test parameters.
type QuestionProvider struct {
	pool *pgxpool.Pool
}

func NewQuestionProvider(pool *pgxpool.Pool) *QuestionProvider {
	return &QuestionProvider{pool: pool}
}

func (p *QuestionProvider) FindQuestion(ctx context.Context, id string) (domain.Question, domain.Collection, error) {
	var (
		question   domain.Question
		collection domain.Collection
		imageURL   *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT q.id, q.text, q.image_url,
		       c.id, c.name, c.amount_in_test, c.given_minutes
		FROM questions q
		JOIN collections c ON c.id = q.collection_id
		WHERE q.id = $1 AND q.deleted_at IS NULL AND c.deleted_at IS NULL`, id).
		Scan(&question.ID, &question.Text, &imageURL,
			&collection.ID, &collection.Name, &collection.AmountInTest, &collection.GivenMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.Collection{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, domain.Collection{}, fmt.Errorf("load question: %w", err)
	}
	if imageURL != nil {
		question.ImageURL = *imageURL
	}

	question.Answers, err = p.questionAnswers(ctx, question.ID)
	if err != nil {
		return domain.Question{}, domain.Collection{}, err
	}
	return question, collection, nil
}

func (p *QuestionProvider) questionAnswers(ctx context.Context, questionID string) ([]domain.Answer, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, text, is_correct
		FROM answers
		WHERE question_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`, questionID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.Text, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CollectionLoader loads a collection with its full live bank, the backing
// source behind the bank cache.
type CollectionLoader struct {
	pool *pgxpool.Pool
}

func NewCollectionLoader(pool *pgxpool.Pool) *CollectionLoader {
	return &CollectionLoader{pool: pool}
}

func (l *CollectionLoader) LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	var collection domain.Collection
	err := l.pool.QueryRow(ctx, `
		SELECT id, name, amount_in_test, given_minutes, max_attempts, language
		FROM collections WHERE id = $1 AND deleted_at IS NULL`, collectionID).
		Scan(&collection.ID, &collection.Name, &collection.AmountInTest,
			&collection.GivenMinutes, &collection.MaxAttempts, &collection.Language)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	if err != nil {
		return domain.Collection{}, fmt.Errorf("load collection: %w", err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT q.id, q.text, q.image_url, a.id, a.text, a.is_correct
		FROM questions q
		LEFT JOIN answers a ON a.question_id = q.id AND a.deleted_at IS NULL
		WHERE q.collection_id = $1 AND q.deleted_at IS NULL
		ORDER BY q.created_at, a.created_at`, collectionID)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("load bank: %w", err)
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		var (
			qID, qText string
			imageURL   *string
			aID, aText *string
			isCorrect  *bool
		)
		if err := rows.Scan(&qID, &qText, &imageURL, &aID, &aText, &isCorrect); err != nil {
			return domain.Collection{}, fmt.Errorf("scan bank row: %w", err)
		}
		i, ok := index[qID]
		if !ok {
			q := domain.Question{ID: qID, Text: qText}
			if imageURL != nil {
				q.ImageURL = *imageURL
			}
			collection.Questions = append(collection.Questions, q)
			i = len(collection.Questions) - 1
			index[qID] = i
		}
		if aID != nil {
			collection.Questions[i].Answers = append(collection.Questions[i].Answers, domain.Answer{
				ID:        *aID,
				Text:      *aText,
				IsCorrect: *isCorrect,
			})
		}
	}
	return collection, rows.Err()
}
