package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"github.com/uptrace/bun"
)

// AttemptStore persists exam attempts and their answer records in
// Postgres via bun.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// InUserTx wraps fn in a transaction holding a per-user advisory lock, so
// two concurrent submissions for the same user serialize instead of both
// creating an attempt. The partial unique index on (user_id) WHERE state =
// 'in_progress' backstops the invariant.
func (s *AttemptStore) InUserTx(ctx context.Context, userID string, fn func(tx app.AttemptTx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", userID); err != nil {
			return err
		}
		return fn(&attemptTx{tx: tx})
	})
}

func (s *AttemptStore) FindAttempt(ctx context.Context, id string) (domain.ExamAttempt, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().
		Model(row).
		Relation("AnswerRecords", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ar.question_number ASC")
		}).
		Where("ea.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExamAttempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.ExamAttempt{}, err
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, filter domain.AttemptFilter) (domain.AttemptPage, error) {
	if filter.PageNumber < 1 {
		filter.PageNumber = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	var rows []attemptRow
	q := s.db.NewSelect().Model(&rows)
	applyFilter(q, filter)

	total, err := q.
		Order("ea.created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.PageNumber - 1) * filter.PageSize).
		ScanAndCount(ctx)
	if err != nil {
		return domain.AttemptPage{}, err
	}

	page := domain.AttemptPage{
		TotalCount: total,
		PageSize:   len(rows),
		PageCount:  int(math.Ceil(float64(total) / float64(filter.PageSize))),
	}
	for _, row := range rows {
		page.Data = append(page.Data, row.toDomain())
	}
	return page, nil
}

func (s *AttemptStore) DeleteAttempt(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*attemptRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*attemptRow)(nil)).
		Where("has_finished = FALSE").
		Where("until_time < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type attemptTx struct {
	tx bun.Tx
}

func (t *attemptTx) FindActive(ctx context.Context, userID string) (domain.ExamAttempt, bool, error) {
	row := new(attemptRow)
	err := t.tx.NewSelect().
		Model(row).
		Where("ea.user_id = ?", userID).
		Where("ea.state = ?", string(domain.AttemptInProgress)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExamAttempt{}, false, nil
	}
	if err != nil {
		return domain.ExamAttempt{}, false, err
	}
	return row.toDomain(), true, nil
}

func (t *attemptTx) CreateAttempt(ctx context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error) {
	row := attemptFromDomain(attempt)
	if _, err := t.tx.NewInsert().
		Model(&row).
		Returning("id, created_at").
		Exec(ctx); err != nil {
		return domain.ExamAttempt{}, err
	}
	return row.toDomain(), nil
}

func (t *attemptTx) Supersede(ctx context.Context, attemptID string) error {
	res, err := t.tx.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("state = ?", string(domain.AttemptSuperseded)).
		Where("id = ?", attemptID).
		Where("state = ?", string(domain.AttemptInProgress)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (t *attemptTx) AppendAnswerRecord(ctx context.Context, record domain.AttemptAnswerRecord) error {
	row := answerRecordRow{
		AttemptID:          record.AttemptID,
		QuestionNumber:     record.QuestionNumber,
		QuestionText:       record.QuestionText,
		QuestionImageURL:   record.QuestionImageURL,
		CorrectAnswerCount: record.CorrectAnswerCount,
		FindAnswerCount:    record.FindAnswerCount,
		ElapsedTime:        record.ElapsedTime,
		CreatedAt:          record.CreatedAt,
	}
	_, err := t.tx.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (t *attemptTx) UpdateProgress(ctx context.Context, attemptID string, findQuestionCount int, finished bool, endTime time.Time) error {
	q := t.tx.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("find_question_count = ?", findQuestionCount).
		Where("id = ?", attemptID)
	if finished {
		q = q.
			Set("has_finished = TRUE").
			Set("state = ?", string(domain.AttemptFinished)).
			Set("end_time = ?", endTime)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func applyFilter(q *bun.SelectQuery, f domain.AttemptFilter) {
	if f.UserID != "" {
		q.Where("ea.user_id = ?", f.UserID)
	}
	if f.CollectionID != "" {
		q.Where("ea.collection_id = ?", f.CollectionID)
	}
	if f.FullName != "" {
		q.Where("ea.user_full_name = ?", f.FullName)
	}
	if f.GroupName != "" {
		q.Where("ea.group_name = ?", f.GroupName)
	}
	if f.FacultyName != "" {
		q.Where("ea.faculty_name = ?", f.FacultyName)
	}
	if f.HemisID != "" {
		q.Where("ea.hemis_id = ?", f.HemisID)
	}
	if f.Course != 0 {
		q.Where("ea.course = ?", f.Course)
	}
	if f.HasFinished != nil {
		q.Where("ea.has_finished = ?", *f.HasFinished)
	}
}
