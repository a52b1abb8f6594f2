package postgres

import (
	"time"

	"exam-session-service/internal/domain"
	"github.com/uptrace/bun"
)

type collectionRow struct {
	bun.BaseModel `bun:"table:collections,alias:c"`

	ID           string     `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	Name         string     `bun:"name,notnull"`
	AmountInTest int        `bun:"amount_in_test,notnull"`
	GivenMinutes int        `bun:"given_minutes,notnull"`
	MaxAttempts  int        `bun:"max_attempts,notnull"`
	Language     string     `bun:"language,notnull,default:''"`
	AdminID      string     `bun:"admin_id"`
	ScienceID    string     `bun:"science_id"`
	CreatedAt    time.Time  `bun:"created_at,notnull,nullzero,default:now()"`
	DeletedAt    *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID           string     `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	CollectionID string     `bun:"collection_id,notnull,type:uuid"`
	Text         string     `bun:"text,notnull"`
	ImageURL     string     `bun:"image_url"`
	CreatedAt    time.Time  `bun:"created_at,notnull,nullzero,default:now()"`
	DeletedAt    *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID         string     `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	QuestionID string     `bun:"question_id,notnull,type:uuid"`
	Text       string     `bun:"text,notnull"`
	IsCorrect  bool       `bun:"is_correct,notnull"`
	CreatedAt  time.Time  `bun:"created_at,notnull,nullzero,default:now()"`
	DeletedAt  *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:exam_attempts,alias:ea"`

	ID                string     `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	UserID            string     `bun:"user_id,notnull,type:uuid"`
	CollectionID      string     `bun:"collection_id,notnull,type:uuid"`
	UserFullName      string     `bun:"user_full_name,notnull,default:''"`
	GroupName         string     `bun:"group_name,notnull,default:''"`
	FacultyName       string     `bun:"faculty_name,notnull,default:''"`
	Course            int        `bun:"course,notnull,default:0"`
	CollectionName    string     `bun:"collection_name,notnull,default:''"`
	HemisID           string     `bun:"hemis_id,notnull,default:''"`
	Grade             int        `bun:"grade,notnull,default:0"`
	AllQuestionCount  int        `bun:"all_question_count,notnull"`
	FindQuestionCount int        `bun:"find_question_count,notnull,default:0"`
	HasFinished       bool       `bun:"has_finished,notnull,default:false"`
	State             string     `bun:"state,notnull,default:'in_progress'"`
	StartTime         time.Time  `bun:"start_time,notnull"`
	UntilTime         time.Time  `bun:"until_time,notnull"`
	EndTime           *time.Time `bun:"end_time"`
	CreatedAt         time.Time  `bun:"created_at,notnull,nullzero,default:now()"`

	AnswerRecords []answerRecordRow `bun:"rel:has-many,join:id=attempt_id"`
}

type answerRecordRow struct {
	bun.BaseModel `bun:"table:attempt_answer_records,alias:ar"`

	ID                 string    `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	AttemptID          string    `bun:"attempt_id,notnull,type:uuid"`
	QuestionNumber     int       `bun:"question_number,notnull"`
	QuestionText       string    `bun:"question_text,notnull"`
	QuestionImageURL   string    `bun:"question_image_url"`
	CorrectAnswerCount int       `bun:"correct_answer_count,notnull"`
	FindAnswerCount    int       `bun:"find_answer_count,notnull"`
	ElapsedTime        string    `bun:"elapsed_time,notnull,default:''"`
	CreatedAt          time.Time `bun:"created_at,notnull,nullzero,default:now()"`
}

func (r attemptRow) toDomain() domain.ExamAttempt {
	attempt := domain.ExamAttempt{
		ID:                r.ID,
		UserID:            r.UserID,
		CollectionID:      r.CollectionID,
		UserFullName:      r.UserFullName,
		GroupName:         r.GroupName,
		FacultyName:       r.FacultyName,
		Course:            r.Course,
		CollectionName:    r.CollectionName,
		HemisID:           r.HemisID,
		Grade:             r.Grade,
		AllQuestionCount:  r.AllQuestionCount,
		FindQuestionCount: r.FindQuestionCount,
		HasFinished:       r.HasFinished,
		State:             domain.AttemptState(r.State),
		StartTime:         r.StartTime,
		UntilTime:         r.UntilTime,
		EndTime:           r.EndTime,
		CreatedAt:         r.CreatedAt,
	}
	for _, rec := range r.AnswerRecords {
		attempt.AnswerRecords = append(attempt.AnswerRecords, rec.toDomain())
	}
	return attempt
}

func (r answerRecordRow) toDomain() domain.AttemptAnswerRecord {
	return domain.AttemptAnswerRecord{
		ID:                 r.ID,
		AttemptID:          r.AttemptID,
		QuestionNumber:     r.QuestionNumber,
		QuestionText:       r.QuestionText,
		QuestionImageURL:   r.QuestionImageURL,
		CorrectAnswerCount: r.CorrectAnswerCount,
		FindAnswerCount:    r.FindAnswerCount,
		ElapsedTime:        r.ElapsedTime,
		CreatedAt:          r.CreatedAt,
	}
}

func attemptFromDomain(a domain.ExamAttempt) attemptRow {
	return attemptRow{
		ID:                a.ID,
		UserID:            a.UserID,
		CollectionID:      a.CollectionID,
		UserFullName:      a.UserFullName,
		GroupName:         a.GroupName,
		FacultyName:       a.FacultyName,
		Course:            a.Course,
		CollectionName:    a.CollectionName,
		HemisID:           a.HemisID,
		Grade:             a.Grade,
		AllQuestionCount:  a.AllQuestionCount,
		FindQuestionCount: a.FindQuestionCount,
		HasFinished:       a.HasFinished,
		State:             string(a.State),
		StartTime:         a.StartTime,
		UntilTime:         a.UntilTime,
		EndTime:           a.EndTime,
		CreatedAt:         a.CreatedAt,
	}
}
