// Package compose materializes randomized, length-bounded test instances
// from a collection's question bank.
package compose

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"exam-session-service/internal/domain"
)

// Composer builds per-attempt test instances. It never mutates the bank it
// is given; every call produces a fresh shuffle. One Composer serves all
// requests, so access to the rand source is serialized.
type Composer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func New() *Composer {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand allows a seeded source for deterministic tests.
func NewWithRand(rnd *rand.Rand) *Composer {
	return &Composer{rnd: rnd}
}

// Compose returns exactly targetLength shuffled question instances. When
// targetLength exceeds the bank size the bank is repeated, so one test may
// legitimately show the same question more than once.
func (c *Composer) Compose(bank []domain.Question, targetLength int) ([]domain.QuestionInstance, error) {
	if len(bank) == 0 {
		return nil, domain.ErrEmptyBank
	}
	if targetLength <= 0 {
		return nil, fmt.Errorf("test length must be positive, got %d", targetLength)
	}

	capacity := len(bank)
	if targetLength > capacity {
		capacity = targetLength
	}
	pool := make([]domain.Question, 0, capacity)
	for len(pool) < targetLength || len(pool) == 0 {
		pool = append(pool, bank...)
	}

	c.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	instances := make([]domain.QuestionInstance, 0, targetLength)
	for _, q := range pool[:targetLength] {
		answers := make([]domain.Answer, len(q.Answers))
		copy(answers, q.Answers)
		c.shuffle(len(answers), func(i, j int) {
			answers[i], answers[j] = answers[j], answers[i]
		})

		correct := 0
		for _, a := range answers {
			if a.IsCorrect {
				correct++
			}
		}
		instances = append(instances, domain.QuestionInstance{
			ID:             q.ID,
			Text:           q.Text,
			ImageURL:       q.ImageURL,
			Answers:        answers,
			MultipleChoice: correct > 1,
		})
	}
	return instances, nil
}

// shuffle serializes use of the rand source; *rand.Rand is not safe for
// concurrent callers.
func (c *Composer) shuffle(n int, swap func(i, j int)) {
	c.mu.Lock()
	c.rnd.Shuffle(n, swap)
	c.mu.Unlock()
}
