package domain

import "time"

// Answer is one selectable option of a question.
type Answer struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is an MCQ question with at least one correct answer.
type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Answers  []Answer `json:"answers"`
}

// Collection is a named question bank plus the parameters of a test
// materialized from it.
type Collection struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AmountInTest int        `json:"amountInTest"`
	GivenMinutes int        `json:"givenMinutes"`
	MaxAttempts  int        `json:"maxAttempts"`
	Language     string     `json:"language"`
	AdminID      string     `json:"adminId,omitempty"`
	ScienceID    string     `json:"scienceId,omitempty"`
	Questions    []Question `json:"questions,omitempty"`
}

// ParsedQuestion is the parser output: question text plus its answers in
// source order. Nothing is persisted at this stage.
type ParsedQuestion struct {
	Text    string         `json:"text"`
	Answers []ParsedAnswer `json:"answers"`
}

// ParsedAnswer is a not-yet-persisted answer line.
type ParsedAnswer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// AnswerInput is a submitted answer row for reconciliation; an empty ID
// marks the row as new.
type AnswerInput struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionInstance is one question of a materialized test: answers
// shuffled, multiple-choice flag precomputed.
type QuestionInstance struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	Answers        []Answer `json:"answers"`
	MultipleChoice bool     `json:"multipleChoice"`
}

// AttemptState tracks where an attempt is in its lifecycle.
type AttemptState string

const (
	AttemptInProgress AttemptState = "in_progress"
	AttemptFinished   AttemptState = "finished"
	// AttemptSuperseded marks an attempt abandoned because its user started
	// a fresh one while this was still open.
	AttemptSuperseded AttemptState = "superseded"
)

// ExamAttempt is one student's sitting of a collection's test. User and
// collection fields are snapshotted at creation so later reference-data
// edits do not rewrite history.
type ExamAttempt struct {
	ID                string                `json:"id"`
	UserID            string                `json:"userId"`
	CollectionID      string                `json:"collectionId"`
	UserFullName      string                `json:"userFullName"`
	GroupName         string                `json:"groupName"`
	FacultyName       string                `json:"facultyName"`
	Course            int                   `json:"course"`
	CollectionName    string                `json:"collectionName"`
	HemisID           string                `json:"hemisId"`
	Grade             int                   `json:"grade"`
	AllQuestionCount  int                   `json:"allQuestionCount"`
	FindQuestionCount int                   `json:"findQuestionCount"`
	HasFinished       bool                  `json:"hasFinished"`
	State             AttemptState          `json:"state"`
	StartTime         time.Time             `json:"startTime"`
	UntilTime         time.Time             `json:"untilTime"`
	EndTime           *time.Time            `json:"endTime,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	AnswerRecords     []AttemptAnswerRecord `json:"answerRecords,omitempty"`
}

// AttemptAnswerRecord is the per-question scoring row inside an attempt.
type AttemptAnswerRecord struct {
	ID                 string    `json:"id,omitempty"`
	AttemptID          string    `json:"attemptId"`
	QuestionNumber     int       `json:"questionNumber"`
	QuestionText       string    `json:"questionText"`
	QuestionImageURL   string    `json:"questionImageUrl,omitempty"`
	CorrectAnswerCount int       `json:"correctAnswerCount"`
	FindAnswerCount    int       `json:"findAnswerCount"`
	ElapsedTime        string    `json:"elapsedTime"`
	CreatedAt          time.Time `json:"createdAt"`
}

// User is the read-only student view consumed from the user directory.
type User struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	GroupName   string `json:"groupName"`
	Course      int    `json:"course"`
	FacultyName string `json:"facultyName"`
	HemisID     string `json:"hemisId"`
}

// AttemptFilter narrows attempt listings; zero values mean "any".
type AttemptFilter struct {
	UserID       string
	CollectionID string
	FullName     string
	GroupName    string
	FacultyName  string
	HemisID      string
	Course       int
	HasFinished  *bool
	PageNumber   int
	PageSize     int
}

// AttemptPage is one page of attempt rows plus paging totals.
type AttemptPage struct {
	TotalCount int           `json:"totalCount"`
	PageSize   int           `json:"pageSize"`
	PageCount  int           `json:"pageCount"`
	Data       []ExamAttempt `json:"data"`
}
