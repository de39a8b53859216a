package results

import (
	"context"
	"sort"

	"github.com/mind-engage/mindengage-placement/internal/directory"
	"github.com/mind-engage/mindengage-placement/internal/quiz"
)

// Source is the read-only slice of quiz.Store the aggregator needs.
type Source interface {
	GetQuiz(ctx context.Context, id int64) (quiz.Quiz, error)
	ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error)
	ListAttempts(ctx context.Context, quizID int64) ([]quiz.Attempt, error)
	GetAttemptByID(ctx context.Context, id string) (quiz.Attempt, error)
}

// Directory resolves student display data for reports.
type Directory interface {
	Lookup(ctx context.Context, ids []string) (map[string]directory.Student, error)
}

type Summary struct {
	Attempts  int     `json:"attempts"`
	MeanScore float64 `json:"mean_score"`
	PassRate  float64 `json:"pass_rate"` // percent of attempts that passed
}

// Summarize is zero-valued for an empty slice.
func Summarize(attempts []quiz.Attempt) Summary {
	s := Summary{Attempts: len(attempts)}
	if s.Attempts == 0 {
		return s
	}
	var sum float64
	passed := 0
	for _, a := range attempts {
		sum += a.Score
		if a.Passed {
			passed++
		}
	}
	s.MeanScore = sum / float64(s.Attempts)
	s.PassRate = float64(passed) * 100 / float64(s.Attempts)
	return s
}

type QuestionOutcome struct {
	QuestionID int64       `json:"question_id"`
	Text       string      `json:"text"`
	Selected   quiz.Option `json:"selected,omitempty"`
	Answered   bool        `json:"answered"`
	Correct    bool        `json:"correct"`
	Expected   quiz.Option `json:"expected"`
	Marks      float64     `json:"marks"`
}

// Breakdown reports, per question in id order, what the attempt selected and
// whether it matched.
func Breakdown(bank []quiz.Question, a quiz.Attempt) []QuestionOutcome {
	qs := sortedBank(bank)
	out := make([]QuestionOutcome, 0, len(qs))
	for _, q := range qs {
		sel, answered := a.Answers[q.ID]
		out = append(out, QuestionOutcome{
			QuestionID: q.ID,
			Text:       q.Text,
			Selected:   sel,
			Answered:   answered,
			Correct:    answered && sel == q.Correct,
			Expected:   q.Correct,
			Marks:      q.Marks,
		})
	}
	return out
}

func sortedBank(bank []quiz.Question) []quiz.Question {
	qs := append([]quiz.Question(nil), bank...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
	return qs
}

type Aggregator struct {
	src Source
	dir Directory
}

func NewAggregator(src Source, dir Directory) *Aggregator {
	return &Aggregator{src: src, dir: dir}
}

func (g *Aggregator) Summary(ctx context.Context, quizID int64) (Summary, error) {
	as, err := g.src.ListAttempts(ctx, quizID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(as), nil
}

// AttemptRow is an attempt decorated with student display data.
type AttemptRow struct {
	quiz.AttemptResult
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	RollNo    string `json:"roll_no"`
}

type Results struct {
	Quiz     quiz.Quiz    `json:"quiz"`
	Summary  Summary      `json:"summary"`
	Attempts []AttemptRow `json:"attempts"` // score descending
}

func (g *Aggregator) rows(ctx context.Context, attempts []quiz.Attempt) ([]AttemptRow, error) {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.StudentID)
	}
	people := map[string]directory.Student{}
	if g.dir != nil && len(ids) > 0 {
		var err error
		if people, err = g.dir.Lookup(ctx, ids); err != nil {
			return nil, err
		}
	}
	out := make([]AttemptRow, 0, len(attempts))
	for _, a := range attempts {
		row := AttemptRow{AttemptResult: a.Result(), StudentID: a.StudentID, Name: a.StudentID}
		if p, ok := people[a.StudentID]; ok {
			row.Name = p.Name
			row.RollNo = p.RollNo
		}
		out = append(out, row)
	}
	return out, nil
}

// Results is the admin results view: summary plus attempts by score,
// highest first.
func (g *Aggregator) Results(ctx context.Context, quizID int64) (Results, error) {
	q, err := g.src.GetQuiz(ctx, quizID)
	if err != nil {
		return Results{}, err
	}
	as, err := g.src.ListAttempts(ctx, quizID)
	if err != nil {
		return Results{}, err
	}
	rows, err := g.rows(ctx, as)
	if err != nil {
		return Results{}, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return Results{Quiz: q, Summary: Summarize(as), Attempts: rows}, nil
}

// AttemptBreakdown returns the per-question review of one attempt of quizID.
func (g *Aggregator) AttemptBreakdown(ctx context.Context, quizID int64, attemptID string) ([]QuestionOutcome, error) {
	a, err := g.src.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.QuizID != quizID {
		return nil, quiz.ErrNotFound
	}
	bank, err := g.src.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return Breakdown(bank, a), nil
}
