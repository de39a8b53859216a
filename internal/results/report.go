package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/mind-engage/mindengage-placement/internal/quiz"
)

// Report is the tabular export of a quiz: one row per attempt ordered by
// student name, one column per question ordered by id.
type Report struct {
	Quiz      quiz.Quiz       `json:"quiz"`
	Questions []quiz.Question `json:"questions"`
	Rows      []ReportRow     `json:"rows"`
}

type ReportRow struct {
	AttemptRow
	Outcomes []QuestionOutcome `json:"outcomes"`
}

func (g *Aggregator) Report(ctx context.Context, quizID int64) (Report, error) {
	q, err := g.src.GetQuiz(ctx, quizID)
	if err != nil {
		return Report{}, err
	}
	bank, err := g.src.ListQuestions(ctx, quizID)
	if err != nil {
		return Report{}, err
	}
	as, err := g.src.ListAttempts(ctx, quizID)
	if err != nil {
		return Report{}, err
	}
	rows, err := g.rows(ctx, as)
	if err != nil {
		return Report{}, err
	}
	bank = sortedBank(bank)
	rep := Report{Quiz: q, Questions: bank, Rows: make([]ReportRow, len(rows))}
	for i := range rows {
		rep.Rows[i] = ReportRow{AttemptRow: rows[i], Outcomes: Breakdown(bank, as[i])}
	}
	// byte-wise comparison keeps the order case-sensitive
	sort.SliceStable(rep.Rows, func(i, j int) bool { return rep.Rows[i].Name < rep.Rows[j].Name })
	return rep, nil
}

const headerTextLen = 30

func questionHeader(n int, text string) string {
	r := []rune(text)
	if len(r) > headerTextLen {
		r = r[:headerTextLen]
	}
	return fmt.Sprintf("Q%d: %s...", n, string(r))
}

func formatPercentage(r AttemptRow) string {
	if r.Total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", r.Percentage)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func outcomeCell(o QuestionOutcome) string {
	switch {
	case !o.Answered:
		return "- (Unanswered)"
	case o.Correct:
		return string(o.Selected) + " (Correct)"
	default:
		return string(o.Selected) + " (Wrong)"
	}
}

// WriteCSV encodes the report with a header row.
func (rep Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"Roll No", "Name", "Score", "Total", "Percentage", "Result"}
	for i, q := range rep.Questions {
		header = append(header, questionHeader(i+1, q.Text))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rep.Rows {
		result := "Failed"
		if r.Passed {
			result = "Passed"
		}
		rec := []string{r.RollNo, r.Name, formatNumber(r.Score), formatNumber(r.Total), formatPercentage(r.AttemptRow), result}
		for _, o := range r.Outcomes {
			rec = append(rec, outcomeCell(o))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
