package http

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	auth "github.com/mind-engage/mindengage-placement/internal/auth/middleware"
	"github.com/mind-engage/mindengage-placement/internal/quiz"
)

// GET /student/quizzes
func StudentQuizzesHandler(gate *quiz.Gate, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := gate.Visible(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /student/quizzes/{quizID}/start
func StartQuizHandler(rec *quiz.Recorder, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		s, err := rec.Start(r.Context(), auth.SubjectFromContext(r.Context()), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// POST /student/quizzes/{quizID}/submit  { "answers": { "<questionID>": "A" } }
func SubmitQuizHandler(rec *quiz.Recorder, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		selections := make(map[int64]string, len(req.Answers))
		for k, v := range req.Answers {
			qid, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				badRequest(w, "answers must be keyed by question id")
				return
			}
			selections[qid] = v
		}
		res, err := rec.Submit(r.Context(), auth.SubjectFromContext(r.Context()), id, selections)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// GET /student/quizzes/{quizID}/result
func StudentResultHandler(rec *quiz.Recorder, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		res, err := rec.Result(r.Context(), auth.SubjectFromContext(r.Context()), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
