package memory

import (
	"context"
	"fmt"
	"sync"

	"exam-session-service/internal/domain"
)

// Directory is a map-backed stand-in for the reference-data collaborators
// (users, collections, questions) plus question persistence. It lets the
// service run and be tested without Postgres.
type Directory struct {
	mu          sync.RWMutex
	seq         int
	users       map[string]domain.User
	collections map[string]*domain.Collection
}

func NewDirectory() *Directory {
	return &Directory{
		users:       make(map[string]domain.User),
		collections: make(map[string]*domain.Collection),
	}
}

// Seed loads reference data, overwriting existing entries with the same id.
func (d *Directory) Seed(users []domain.User, collections []domain.Collection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		d.users[u.ID] = u
	}
	for i := range collections {
		c := collections[i]
		d.collections[c.ID] = &c
	}
}

func (d *Directory) FindUser(_ context.Context, id string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (d *Directory) FindQuestion(_ context.Context, id string) (domain.Question, domain.Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.collections {
		for _, q := range c.Questions {
			if q.ID == id {
				meta := *c
				meta.Questions = nil
				return q, meta, nil
			}
		}
	}
	return domain.Question{}, domain.Collection{}, domain.ErrQuestionNotFound
}

// LoadCollection implements CollectionLoader for the bank cache.
func (d *Directory) LoadCollection(_ context.Context, id string) (domain.Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.collections[id]
	if !ok {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	return *c, nil
}

// GetCollection lets the Directory double as an uncached
// app.CollectionProvider in tests.
func (d *Directory) GetCollection(ctx context.Context, id string) (domain.Collection, error) {
	return d.LoadCollection(ctx, id)
}

func (d *Directory) FindCollectionByName(_ context.Context, name string) (domain.Collection, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.collections {
		if c.Name == name {
			return *c, true, nil
		}
	}
	return domain.Collection{}, false, nil
}

func (d *Directory) CreateCollectionWithQuestions(_ context.Context, c domain.Collection, questions []domain.ParsedQuestion) (domain.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.ID = d.nextID("collection")
	stored := c
	for _, pq := range questions {
		stored.Questions = append(stored.Questions, d.buildQuestion(pq))
	}
	d.collections[stored.ID] = &stored
	return stored, nil
}

func (d *Directory) CreateQuestions(_ context.Context, collectionID string, questions []domain.ParsedQuestion) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[collectionID]
	if !ok {
		return 0, domain.ErrCollectionNotFound
	}
	for _, pq := range questions {
		c.Questions = append(c.Questions, d.buildQuestion(pq))
	}
	return len(questions), nil
}

func (d *Directory) ExistingTexts(_ context.Context, collectionID string, texts []string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.collections[collectionID]
	if !ok {
		return nil, domain.ErrCollectionNotFound
	}
	known := make(map[string]struct{}, len(c.Questions))
	for _, q := range c.Questions {
		known[q.Text] = struct{}{}
	}
	var existing []string
	for _, t := range texts {
		if _, ok := known[t]; ok {
			existing = append(existing, t)
		}
	}
	return existing, nil
}

func (d *Directory) QuestionAnswers(_ context.Context, questionID string) ([]domain.Answer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	q, ok := d.findQuestionLocked(questionID)
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return append([]domain.Answer(nil), q.Answers...), nil
}

func (d *Directory) DeleteQuestion(_ context.Context, questionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.collections {
		for qi := range c.Questions {
			if c.Questions[qi].ID == questionID {
				c.Questions = append(c.Questions[:qi], c.Questions[qi+1:]...)
				return nil
			}
		}
	}
	return domain.ErrQuestionNotFound
}

func (d *Directory) CreateAnswer(_ context.Context, questionID string, in domain.AnswerInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.findQuestionLocked(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	q.Answers = append(q.Answers, domain.Answer{
		ID:        d.nextID("answer"),
		Text:      in.Text,
		IsCorrect: in.IsCorrect,
	})
	return nil
}

func (d *Directory) UpdateAnswer(_ context.Context, answerID string, in domain.AnswerInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.collections {
		for qi := range c.Questions {
			for ai := range c.Questions[qi].Answers {
				if c.Questions[qi].Answers[ai].ID == answerID {
					c.Questions[qi].Answers[ai].Text = in.Text
					c.Questions[qi].Answers[ai].IsCorrect = in.IsCorrect
					return nil
				}
			}
		}
	}
	return domain.ErrAnswerNotFound
}

func (d *Directory) DeleteAnswer(_ context.Context, answerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.collections {
		for qi := range c.Questions {
			answers := c.Questions[qi].Answers
			for ai := range answers {
				if answers[ai].ID == answerID {
					c.Questions[qi].Answers = append(answers[:ai], answers[ai+1:]...)
					return nil
				}
			}
		}
	}
	return domain.ErrAnswerNotFound
}

func (d *Directory) buildQuestion(pq domain.ParsedQuestion) domain.Question {
	q := domain.Question{
		ID:   d.nextID("question"),
		Text: pq.Text,
	}
	for _, pa := range pq.Answers {
		q.Answers = append(q.Answers, domain.Answer{
			ID:        d.nextID("answer"),
			Text:      pa.Text,
			IsCorrect: pa.IsCorrect,
		})
	}
	return q
}

func (d *Directory) findQuestionLocked(questionID string) (*domain.Question, bool) {
	for _, c := range d.collections {
		for i := range c.Questions {
			if c.Questions[i].ID == questionID {
				return &c.Questions[i], true
			}
		}
	}
	return nil, false
}

func (d *Directory) nextID(kind string) string {
	d.seq++
	return fmt.Sprintf("%s-%d", kind, d.seq)
}
