package quiz

import (
	"context"
	"time"
)

// GradeFunc turns the question bank snapshot taken inside the submission
// transaction into the Attempt that will be inserted. An error aborts the
// transaction and nothing is stored.
type GradeFunc func(q Quiz, bank []Question) (Attempt, error)

type Store interface {
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	ListQuizzes(ctx context.Context) ([]Quiz, error) // newest first
	UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	DeleteQuiz(ctx context.Context, id int64) error // cascades questions, starts and attempts

	AddQuestions(ctx context.Context, qs []Question) ([]Question, error)
	GetQuestion(ctx context.Context, id int64) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) (Question, error)
	// DeleteQuestion removes a question. When it was the last one of its quiz
	// the publication flags and start markers are cleared in the same
	// transaction.
	DeleteQuestion(ctx context.Context, id int64) (Question, error)
	ListQuestions(ctx context.Context, quizID int64) ([]Question, error) // id ascending

	// RecordStart inserts the start marker if absent and returns the
	// effective (first) start time.
	RecordStart(ctx context.Context, quizID int64, studentID string, at time.Time) (time.Time, error)
	GetStart(ctx context.Context, quizID int64, studentID string) (time.Time, bool, error)
	// ClearStarts drops every start marker of the quiz so a relaunch gives
	// students a fresh clock.
	ClearStarts(ctx context.Context, quizID int64) error

	// SubmitAttempt snapshots the bank, grades it and inserts the attempt if
	// none exists for (quiz, student). Returns ErrSubmissionConflict otherwise.
	SubmitAttempt(ctx context.Context, quizID int64, studentID string, grade GradeFunc) (Attempt, error)
	GetAttempt(ctx context.Context, quizID int64, studentID string) (Attempt, error)
	GetAttemptByID(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, quizID int64) ([]Attempt, error)
	ListStudentAttempts(ctx context.Context, studentID string) ([]Attempt, error)
}

// Applications answers the "applied-to-drive" question owned by the
// drive-application subsystem.
type Applications interface {
	IsApplied(ctx context.Context, studentID string, driveID int64) (bool, error)
}

// Observer receives engine outcomes, typically for metrics.
type Observer interface {
	AccessDenied(reason DenyReason)
	AttemptRecorded(passed bool)
}

type nopObserver struct{}

func (nopObserver) AccessDenied(DenyReason) {}
func (nopObserver) AttemptRecorded(bool)    {}
