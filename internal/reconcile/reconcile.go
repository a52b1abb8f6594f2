// Package reconcile diffs an existing answer set against a submitted one
// and applies the resulting create/update/delete operations.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"exam-session-service/internal/domain"
)

// Diff partitions answers by identifier: submitted rows without a known ID
// are creates, existing rows missing from the submission are deletes, and
// rows present on both sides are updates. The three sets never share an ID.
type Diff struct {
	ToCreate []domain.AnswerInput
	ToUpdate []domain.AnswerInput
	ToDelete []domain.Answer
}

// Reconcile computes the Diff between existing and submitted answers.
func Reconcile(existing []domain.Answer, submitted []domain.AnswerInput) Diff {
	byID := make(map[string]domain.Answer, len(existing))
	for _, a := range existing {
		byID[a.ID] = a
	}
	submittedIDs := make(map[string]struct{}, len(submitted))

	var diff Diff
	for _, in := range submitted {
		if in.ID == "" {
			diff.ToCreate = append(diff.ToCreate, in)
			continue
		}
		submittedIDs[in.ID] = struct{}{}
		if _, ok := byID[in.ID]; ok {
			diff.ToUpdate = append(diff.ToUpdate, in)
		} else {
			diff.ToCreate = append(diff.ToCreate, in)
		}
	}
	for _, a := range existing {
		if _, ok := submittedIDs[a.ID]; !ok {
			diff.ToDelete = append(diff.ToDelete, a)
		}
	}
	return diff
}

// AnswerWriter applies individual answer operations for one question.
type AnswerWriter interface {
	CreateAnswer(ctx context.Context, questionID string, answer domain.AnswerInput) error
	UpdateAnswer(ctx context.Context, answerID string, answer domain.AnswerInput) error
	DeleteAnswer(ctx context.Context, answerID string) error
}

// Apply executes every operation in the diff against w. Operations are
// independent: a failure on one item does not stop the rest, and all
// failures come back joined into a single error.
func Apply(ctx context.Context, w AnswerWriter, questionID string, diff Diff) error {
	var errs []error
	for _, in := range diff.ToCreate {
		if err := w.CreateAnswer(ctx, questionID, in); err != nil {
			errs = append(errs, fmt.Errorf("create answer %q: %w", in.Text, err))
		}
	}
	for _, in := range diff.ToUpdate {
		if err := w.UpdateAnswer(ctx, in.ID, in); err != nil {
			errs = append(errs, fmt.Errorf("update answer %s: %w", in.ID, err))
		}
	}
	for _, a := range diff.ToDelete {
		if err := w.DeleteAnswer(ctx, a.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete answer %s: %w", a.ID, err))
		}
	}
	return errors.Join(errs...)
}
