package app

import (
	"context"
	"fmt"

	"exam-session-service/internal/compose"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/parser"
	"exam-session-service/internal/reconcile"
)

// QuestionStore persists question banks and their answers.
type QuestionStore interface {
	reconcile.AnswerWriter

	FindCollectionByName(ctx context.Context, name string) (domain.Collection, bool, error)
	// CreateCollectionWithQuestions inserts the collection and its whole
	// bank as one transaction; nothing is left behind on failure.
	CreateCollectionWithQuestions(ctx context.Context, c domain.Collection, questions []domain.ParsedQuestion) (domain.Collection, error)
	// CreateQuestions bulk-inserts questions into an existing collection as
	// one transaction.
	CreateQuestions(ctx context.Context, collectionID string, questions []domain.ParsedQuestion) (int, error)
	// ExistingTexts returns which of the given texts already name a live
	// question in the collection.
	ExistingTexts(ctx context.Context, collectionID string, texts []string) ([]string, error)
	QuestionAnswers(ctx context.Context, questionID string) ([]domain.Answer, error)
	DeleteQuestion(ctx context.Context, questionID string) error
}

// BankService covers the administrator side of the engine: bulk import,
// preview, answer reconciliation, export, and test materialization.
type BankService struct {
	store       QuestionStore
	collections CollectionProvider
	composer    *compose.Composer
}

func NewBankService(store QuestionStore, collections CollectionProvider, composer *compose.Composer) *BankService {
	return &BankService{store: store, collections: collections, composer: composer}
}

// Preview parses without persisting, the first half of the two-phase
// import.
func (s *BankService) Preview(text string, dialect parser.Dialect) ([]domain.ParsedQuestion, error) {
	return parser.Parse(text, dialect)
}

// ImportInto parses text and appends the questions to an existing
// collection. Duplicate question texts are rejected in one batch before
// anything is written.
func (s *BankService) ImportInto(ctx context.Context, collectionID, text string, dialect parser.Dialect) (int, error) {
	questions, err := parser.Parse(text, dialect)
	if err != nil {
		return 0, err
	}
	collection, err := s.collections.GetCollection(ctx, collectionID)
	if err != nil {
		return 0, err
	}
	if err := s.rejectDuplicates(ctx, collection, questions); err != nil {
		return 0, err
	}
	return s.store.CreateQuestions(ctx, collectionID, questions)
}

// ImportNew creates a collection together with its parsed bank.
func (s *BankService) ImportNew(ctx context.Context, params domain.Collection, text string, dialect parser.Dialect) (domain.Collection, error) {
	questions, err := parser.Parse(text, dialect)
	if err != nil {
		return domain.Collection{}, err
	}
	if _, exists, err := s.store.FindCollectionByName(ctx, params.Name); err != nil {
		return domain.Collection{}, err
	} else if exists {
		return domain.Collection{}, fmt.Errorf("%w: %s", domain.ErrCollectionExists, params.Name)
	}
	return s.store.CreateCollectionWithQuestions(ctx, params, questions)
}

// UpdateAnswers reconciles a question's answer set against the submitted
// one. The diff operations run independently; failures are joined, not
// fatal to the batch.
func (s *BankService) UpdateAnswers(ctx context.Context, questionID string, submitted []domain.AnswerInput) error {
	hasCorrect := false
	for _, in := range submitted {
		if in.IsCorrect {
			hasCorrect = true
			break
		}
	}
	if !hasCorrect {
		return &domain.MalformedQuestionError{
			QuestionText: questionID,
			Reason:       "no answer is marked correct",
		}
	}

	existing, err := s.store.QuestionAnswers(ctx, questionID)
	if err != nil {
		return err
	}
	diff := reconcile.Reconcile(existing, submitted)
	return reconcile.Apply(ctx, s.store, questionID, diff)
}

// DeleteQuestion removes a question and its answers from the bank.
func (s *BankService) DeleteQuestion(ctx context.Context, questionID string) error {
	return s.store.DeleteQuestion(ctx, questionID)
}

// ComposeTest materializes one randomized test instance for an attempt.
func (s *BankService) ComposeTest(ctx context.Context, collectionID string) ([]domain.QuestionInstance, error) {
	collection, err := s.collections.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return s.composer.Compose(collection.Questions, collection.AmountInTest)
}

// ExportBank renders the collection's bank as hash-prefix text for
// download. Returns the collection name to use as the filename.
func (s *BankService) ExportBank(ctx context.Context, collectionID string) (string, string, error) {
	collection, err := s.collections.GetCollection(ctx, collectionID)
	if err != nil {
		return "", "", err
	}
	return collection.Name, parser.Export(collection.Questions), nil
}

func (s *BankService) rejectDuplicates(ctx context.Context, collection domain.Collection, questions []domain.ParsedQuestion) error {
	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		texts = append(texts, q.Text)
	}
	existing, err := s.store.ExistingTexts(ctx, collection.ID, texts)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return &domain.DuplicateQuestionError{
			CollectionName: collection.Name,
			Texts:          existing,
		}
	}
	return nil
}
