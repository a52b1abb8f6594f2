package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCollectionNotFound indicates the collection could not be loaded.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrQuestionNotFound indicates a referenced question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound indicates the submitting user is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttemptNotFound is returned when an attempt lookup finds nothing.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAnswerNotFound indicates a submitted answer ID does not belong to
	// the question being answered.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrEmptyBank is returned when a test is composed from a collection
	// with no active questions.
	ErrEmptyBank = errors.New("collection has no questions")
	// ErrCollectionExists is returned on an import that would reuse an
	// existing collection name.
	ErrCollectionExists = errors.New("collection already exists")
)

// MalformedQuestionError reports a question block rejected by the parser,
// carrying the offending text so the importing admin can fix the file.
type MalformedQuestionError struct {
	QuestionText string
	Reason       string
}

func (e *MalformedQuestionError) Error() string {
	return fmt.Sprintf("malformed question %q: %s", e.QuestionText, e.Reason)
}

// DuplicateQuestionError lists every parsed question whose text already
// exists in the target collection. All duplicates are reported in one
// batch rather than one at a time.
type DuplicateQuestionError struct {
	CollectionName string
	Texts          []string
}

func (e *DuplicateQuestionError) Error() string {
	return fmt.Sprintf("questions already exist in %s: %s",
		e.CollectionName, strings.Join(e.Texts, "; "))
}
