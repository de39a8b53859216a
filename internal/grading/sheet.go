package grading

import "context"

// Item is one question of an answer sheet.
type Item struct {
	ID int64
	Q  Q
}

// Outcome is the graded sheet.
type Outcome struct {
	Score      float64
	Total      float64
	Percentage float64
	Passed     bool
}

// GradeSheet sums the points of correct responses over items. Total is the
// sum of all item points, answered or not. Responses keyed by ids that are
// not on the sheet are ignored.
func GradeSheet(ctx context.Context, g Grader, items []Item, responses map[int64]string, passThreshold float64) Outcome {
	var out Outcome
	for _, it := range items {
		out.Total += it.Q.Points
		resp, ok := responses[it.ID]
		if !ok {
			continue
		}
		out.Score += g.Grade(ctx, it.Q, resp).AutoPoints
	}
	out.Percentage = Percentage(out.Score, out.Total)
	out.Passed = out.Percentage >= passThreshold
	return out
}

// Percentage returns score/total*100, or 0 when total is not positive.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return score * 100 / total
}
