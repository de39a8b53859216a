package quiz

import (
	"strings"
	"time"
)

// Option identifies one of the four answer choices of a question.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// Options lists the choice identifiers in display order.
var Options = [4]Option{OptionA, OptionB, OptionC, OptionD}

func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// NormalizeOption trims and upper-cases a submitted choice. It does not
// validate; an unknown letter simply never matches a correct option.
func NormalizeOption(s string) Option {
	return Option(strings.ToUpper(strings.TrimSpace(s)))
}

const (
	DefaultPassThreshold = 50.0
	DefaultTimeLimitMin  = 30
	DefaultMarks         = 1.0
)

type Question struct {
	ID        int64     `json:"id"`
	QuizID    int64     `json:"quiz_id"`
	Text      string    `json:"text"`
	Options   [4]string `json:"options"` // A, B, C, D
	Correct   Option    `json:"correct_option"`
	Marks     float64   `json:"marks"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentQuestion is the student-safe view of a Question (no answer key).
type StudentQuestion struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	Options [4]string `json:"options"`
	Marks   float64   `json:"marks"`
}

func (q Question) StudentView() StudentQuestion {
	return StudentQuestion{ID: q.ID, Text: q.Text, Options: q.Options, Marks: q.Marks}
}

type Quiz struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	TimeLimitMin  int        `json:"time_limit_min"`
	PassThreshold float64    `json:"pass_threshold"`
	IsLive        bool       `json:"is_live"`
	LiveAt        *time.Time `json:"live_at,omitempty"`
	DriveID       *int64     `json:"drive_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	// QuestionCount is loaded with the quiz and never stored.
	QuestionCount int `json:"question_count"`
}

// TimeLimit returns the configured limit, zero when none is set.
func (q Quiz) TimeLimit() time.Duration {
	if q.TimeLimitMin <= 0 {
		return 0
	}
	return time.Duration(q.TimeLimitMin) * time.Minute
}

// Attempt is one graded, immutable submission by a student.
type Attempt struct {
	ID         string           `json:"id"`
	QuizID     int64            `json:"quiz_id"`
	StudentID  string           `json:"student_id"`
	Score      float64          `json:"score"`
	TotalMarks float64          `json:"total_marks"`
	Passed     bool             `json:"passed"`
	Answers    map[int64]Option `json:"answers"` // unanswered questions are absent
	StartedAt  time.Time        `json:"started_at"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (a Attempt) Percentage() float64 {
	if a.TotalMarks <= 0 {
		return 0
	}
	return a.Score * 100 / a.TotalMarks
}

// AttemptResult is what a student gets to see about their attempt.
type AttemptResult struct {
	AttemptID  string    `json:"attempt_id"`
	QuizID     int64     `json:"quiz_id"`
	Score      float64   `json:"score"`
	Total      float64   `json:"total"`
	Percentage float64   `json:"percentage"`
	Passed     bool      `json:"passed"`
	TakenAt    time.Time `json:"taken_at"`
}

func (a Attempt) Result() AttemptResult {
	return AttemptResult{
		AttemptID:  a.ID,
		QuizID:     a.QuizID,
		Score:      a.Score,
		Total:      a.TotalMarks,
		Percentage: a.Percentage(),
		Passed:     a.Passed,
		TakenAt:    a.CreatedAt,
	}
}
