package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-placement/internal/results"
)

// GET /admin/quizzes/{quizID}/results
func ResultsHandler(agg *results.Aggregator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		res, err := agg.Results(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /admin/quizzes/{quizID}/attempts/{attemptID}/breakdown
func BreakdownHandler(agg *results.Aggregator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		out, err := agg.AttemptBreakdown(r.Context(), id, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /admin/quizzes/{quizID}/report
//
// Same rows as the CSV export, for on-screen viewing.
func ReportHandler(agg *results.Aggregator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		rep, err := agg.Report(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// GET /admin/quizzes/{quizID}/export
func ExportResultsHandler(agg *results.Aggregator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		rep, err := agg.Report(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		var buf bytes.Buffer
		if err := rep.WriteCSV(&buf); err != nil {
			writeError(w, log, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz_%d_results.csv"`, id))
		_, _ = w.Write(buf.Bytes())
	}
}
