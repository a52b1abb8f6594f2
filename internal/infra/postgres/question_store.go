package postgres

import (
	"context"
	"database/sql"
	"errors"

	"exam-session-service/internal/domain"
	"github.com/uptrace/bun"
)

// QuestionStore persists collections, questions and answers. Deletions are
// soft: rows get a deleted_at timestamp and drop out of every read.
type QuestionStore struct {
	db *bun.DB
}

func NewQuestionStore(db *bun.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) FindCollectionByName(ctx context.Context, name string) (domain.Collection, bool, error) {
	row := new(collectionRow)
	err := s.db.NewSelect().
		Model(row).
		Where("c.name = ?", name).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Collection{}, false, nil
	}
	if err != nil {
		return domain.Collection{}, false, err
	}
	return collectionMeta(row), true, nil
}

// CreateCollectionWithQuestions inserts the collection and its bank in one
// transaction. A failure on any row rolls the whole import back, so a
// half-imported collection can never exist.
func (s *QuestionStore) CreateCollectionWithQuestions(ctx context.Context, c domain.Collection, questions []domain.ParsedQuestion) (domain.Collection, error) {
	row := collectionRow{
		Name:         c.Name,
		AmountInTest: c.AmountInTest,
		GivenMinutes: c.GivenMinutes,
		MaxAttempts:  c.MaxAttempts,
		Language:     c.Language,
		AdminID:      c.AdminID,
		ScienceID:    c.ScienceID,
	}
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Returning("id, created_at").Exec(ctx); err != nil {
			return err
		}
		return insertQuestions(ctx, tx, row.ID, questions)
	})
	if err != nil {
		return domain.Collection{}, err
	}
	created := c
	created.ID = row.ID
	return created, nil
}

func (s *QuestionStore) CreateQuestions(ctx context.Context, collectionID string, questions []domain.ParsedQuestion) (int, error) {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return insertQuestions(ctx, tx, collectionID, questions)
	})
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (s *QuestionStore) ExistingTexts(ctx context.Context, collectionID string, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var existing []string
	err := s.db.NewSelect().
		Model((*questionRow)(nil)).
		Column("text").
		Where("collection_id = ?", collectionID).
		Where("text IN (?)", bun.In(texts)).
		Scan(ctx, &existing)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *QuestionStore) QuestionAnswers(ctx context.Context, questionID string) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("question_id = ?", questionID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	answers := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		answers = append(answers, domain.Answer{ID: r.ID, Text: r.Text, IsCorrect: r.IsCorrect})
	}
	return answers, nil
}

func (s *QuestionStore) CreateAnswer(ctx context.Context, questionID string, in domain.AnswerInput) error {
	row := answerRow{
		QuestionID: questionID,
		Text:       in.Text,
		IsCorrect:  in.IsCorrect,
	}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *QuestionStore) UpdateAnswer(ctx context.Context, answerID string, in domain.AnswerInput) error {
	res, err := s.db.NewUpdate().
		Model((*answerRow)(nil)).
		Set("text = ?", in.Text).
		Set("is_correct = ?", in.IsCorrect).
		Where("id = ?", answerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAnswerNotFound
	}
	return nil
}

func (s *QuestionStore) DeleteAnswer(ctx context.Context, answerID string) error {
	// soft delete via the deleted_at column
	res, err := s.db.NewDelete().
		Model((*answerRow)(nil)).
		Where("id = ?", answerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAnswerNotFound
	}
	return nil
}

// DeleteQuestion tombstones a question; its answers become unreachable
// with it.
func (s *QuestionStore) DeleteQuestion(ctx context.Context, questionID string) error {
	res, err := s.db.NewDelete().
		Model((*questionRow)(nil)).
		Where("id = ?", questionID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func insertQuestions(ctx context.Context, tx bun.Tx, collectionID string, questions []domain.ParsedQuestion) error {
	for _, pq := range questions {
		qRow := questionRow{
			CollectionID: collectionID,
			Text:         pq.Text,
		}
		if _, err := tx.NewInsert().Model(&qRow).Returning("id").Exec(ctx); err != nil {
			return err
		}
		if len(pq.Answers) == 0 {
			continue
		}
		aRows := make([]answerRow, 0, len(pq.Answers))
		for _, pa := range pq.Answers {
			aRows = append(aRows, answerRow{
				QuestionID: qRow.ID,
				Text:       pa.Text,
				IsCorrect:  pa.IsCorrect,
			})
		}
		if _, err := tx.NewInsert().Model(&aRows).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func collectionMeta(row *collectionRow) domain.Collection {
	return domain.Collection{
		ID:           row.ID,
		Name:         row.Name,
		AmountInTest: row.AmountInTest,
		GivenMinutes: row.GivenMinutes,
		MaxAttempts:  row.MaxAttempts,
		Language:     row.Language,
		AdminID:      row.AdminID,
		ScienceID:    row.ScienceID,
	}
}
