package app_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"exam-session-service/internal/app"
	"exam-session-service/internal/compose"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	"exam-session-service/internal/parser"
)

func TestImportNewCreatesCollectionWithBank(t *testing.T) {
	ctx := context.Background()
	service, directory := newTestBankService()

	collection, err := service.ImportNew(ctx, domain.Collection{
		Name:         "Geometry",
		AmountInTest: 5,
		GivenMinutes: 30,
	}, "# Sum of triangle angles?\n+ 180\n- 90\n# Squares have how many sides?\n+ 4\n- 3", parser.DialectHashPrefix)
	if err != nil {
		t.Fatalf("import new: %v", err)
	}
	if collection.ID == "" {
		t.Fatalf("expected created collection id")
	}

	stored, err := directory.LoadCollection(ctx, collection.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(stored.Questions))
	}
	if len(stored.Questions[0].Answers) != 2 {
		t.Fatalf("expected answers persisted, got %+v", stored.Questions[0])
	}
}

func TestImportNewRejectsExistingName(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestBankService()

	_, err := service.ImportNew(ctx, domain.Collection{
		Name:         "Algebra", // already seeded
		AmountInTest: 1,
		GivenMinutes: 10,
	}, "# q\n+ a", parser.DialectHashPrefix)
	if !errors.Is(err, domain.ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
}

func TestImportNewParserFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	service, directory := newTestBankService()

	_, err := service.ImportNew(ctx, domain.Collection{
		Name:         "Broken",
		AmountInTest: 1,
		GivenMinutes: 10,
	}, "# Q1\n+ A\n# Q2\n- no correct answer", parser.DialectHashPrefix)
	var malformed *domain.MalformedQuestionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedQuestionError, got %v", err)
	}
	if _, exists, _ := directory.FindCollectionByName(ctx, "Broken"); exists {
		t.Fatalf("failed import must not leave a collection behind")
	}
}

func TestImportIntoRejectsDuplicatesInOneBatch(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestBankService()

	_, err := service.ImportInto(ctx, "col-1",
		"# What is 2 + 2?\n+ 4\n# Which numbers are even?\n+ 2\n# A new one\n+ yes",
		parser.DialectHashPrefix)
	var duplicate *domain.DuplicateQuestionError
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected DuplicateQuestionError, got %v", err)
	}
	if len(duplicate.Texts) != 2 {
		t.Fatalf("expected both duplicates reported together, got %v", duplicate.Texts)
	}
	if duplicate.CollectionName != "Algebra" {
		t.Fatalf("expected collection name in error, got %q", duplicate.CollectionName)
	}
}

func TestImportIntoAppendsQuestions(t *testing.T) {
	ctx := context.Background()
	service, directory := newTestBankService()

	created, err := service.ImportInto(ctx, "col-1", "# Brand new question\n+ yes\n- no", parser.DialectHashPrefix)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 created, got %d", created)
	}
	stored, _ := directory.LoadCollection(ctx, "col-1")
	if len(stored.Questions) != 3 {
		t.Fatalf("expected 3 questions after import, got %d", len(stored.Questions))
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	service, directory := newTestBankService()

	questions, err := service.Preview("# Only previewed\n+ sure", parser.DialectHashPrefix)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(questions) != 1 || questions[0].Text != "Only previewed" {
		t.Fatalf("unexpected preview %+v", questions)
	}
	stored, _ := directory.LoadCollection(context.Background(), "col-1")
	if len(stored.Questions) != 2 {
		t.Fatalf("preview must not write, got %d questions", len(stored.Questions))
	}
}

func TestComposeTestUsesCollectionParameters(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestBankService()

	// Algebra: 2-question bank, amountInTest 3, so one question repeats.
	instances, err := service.ComposeTest(ctx, "col-1")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(instances))
	}
	seen := map[string]int{}
	for _, inst := range instances {
		seen[inst.ID]++
	}
	duplicated := false
	for _, n := range seen {
		if n > 1 {
			duplicated = true
		}
	}
	if !duplicated {
		t.Fatalf("expected a duplicated question with bank smaller than test, got %v", seen)
	}
}

func TestUpdateAnswersReconciles(t *testing.T) {
	ctx := context.Background()
	service, directory := newTestBankService()

	err := service.UpdateAnswers(ctx, "q1", []domain.AnswerInput{
		{ID: "a1", Text: "three", IsCorrect: false}, // update
		{Text: "four", IsCorrect: true},             // create
		// a2 omitted: delete
	})
	if err != nil {
		t.Fatalf("update answers: %v", err)
	}

	answers, err := directory.QuestionAnswers(ctx, "q1")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers after reconcile, got %+v", answers)
	}
	byText := map[string]domain.Answer{}
	for _, a := range answers {
		byText[a.Text] = a
	}
	if _, ok := byText["three"]; !ok {
		t.Fatalf("expected updated answer text, got %+v", answers)
	}
	if a, ok := byText["four"]; !ok || !a.IsCorrect {
		t.Fatalf("expected created correct answer, got %+v", answers)
	}
}

func TestUpdateAnswersRequiresOneCorrect(t *testing.T) {
	service, _ := newTestBankService()

	err := service.UpdateAnswers(context.Background(), "q1", []domain.AnswerInput{
		{ID: "a1", Text: "3", IsCorrect: false},
	})
	var malformed *domain.MalformedQuestionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedQuestionError, got %v", err)
	}
}

func TestExportBank(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestBankService()

	name, content, err := service.ExportBank(ctx, "col-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "Algebra" {
		t.Fatalf("expected collection name, got %q", name)
	}
	if !strings.Contains(content, "# What is 2 + 2?") || !strings.Contains(content, "+ 4") {
		t.Fatalf("unexpected export content:\n%s", content)
	}
}

func newTestBankService() (*app.BankService, *memory.Directory) {
	directory := seededBankDirectory()
	composer := compose.NewWithRand(rand.New(rand.NewSource(7)))
	return app.NewBankService(directory, directory, composer), directory
}

func seededBankDirectory() *memory.Directory {
	d := memory.NewDirectory()
	d.Seed(nil, []domain.Collection{
		{
			ID:           "col-1",
			Name:         "Algebra",
			AmountInTest: 3,
			GivenMinutes: 10,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Answers: []domain.Answer{
						{ID: "a1", Text: "3", IsCorrect: false},
						{ID: "a2", Text: "4", IsCorrect: true},
					},
				},
				{
					ID:   "q2",
					Text: "Which numbers are even?",
					Answers: []domain.Answer{
						{ID: "a4", Text: "2", IsCorrect: true},
						{ID: "a5", Text: "7", IsCorrect: false},
					},
				},
			},
		},
	})
	return d
}
