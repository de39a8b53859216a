package http

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-placement/internal/quiz"
	"github.com/mind-engage/mindengage-placement/internal/storage"
)

// quizView adds the publication state evaluated at response time.
type quizView struct {
	quiz.Quiz
	State quiz.State `json:"state"`
}

func viewOf(q quiz.Quiz, c quiz.Clock) quizView {
	return quizView{Quiz: q, State: q.State(c.Now())}
}

type quizDetail struct {
	quizView
	Questions []quiz.Question `json:"questions"`
}

type updateResponse struct {
	Quiz    quizView              `json:"quiz"`
	Warning *quiz.PublishRejected `json:"warning,omitempty"`
}

// GET /admin/quizzes
func ListQuizzesHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cat.List(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		out := make([]quizView, 0, len(list))
		for _, q := range list {
			out = append(out, viewOf(q, cat.Clock()))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/quizzes
func CreateQuizHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in quiz.QuizInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := cat.Create(r.Context(), in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(q, cat.Clock()))
	}
}

// GET /admin/quizzes/{quizID}
func GetQuizHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		q, bank, err := cat.Get(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, quizDetail{quizView: viewOf(q, cat.Clock()), Questions: bank})
	}
}

// PUT /admin/quizzes/{quizID}
//
// A rejected publish still returns 200 with the saved quiz and a warning.
func UpdateQuizHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		var in quiz.QuizInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, warn, err := cat.Update(r.Context(), id, in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, updateResponse{Quiz: viewOf(q, cat.Clock()), Warning: warn})
	}
}

// POST /admin/quizzes/{quizID}/stop
func StopQuizHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		q, err := cat.Stop(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(q, cat.Clock()))
	}
}

// DELETE /admin/quizzes/{quizID}
//
// Stored import uploads go with the quiz; failing to remove them is logged
// but does not fail the request.
func DeleteQuizHandler(cat *quiz.Catalog, blobs storage.BlobStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		if err := cat.Delete(r.Context(), id); err != nil {
			writeError(w, log, err)
			return
		}
		if blobs != nil {
			if err := blobs.DeletePrefix(r.Context(), storage.ImportPrefix(id)); err != nil {
				log.WithError(err).WithField("quiz_id", id).Warn("remove import uploads")
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/quizzes/{quizID}/questions
func AddQuestionHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		var in quiz.QuestionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := cat.AddQuestion(r.Context(), id, in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// PUT /admin/questions/{questionID}
func UpdateQuestionHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		var in quiz.QuestionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := cat.UpdateQuestion(r.Context(), id, in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /admin/questions/{questionID}
func DeleteQuestionHandler(cat *quiz.Catalog, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		if err := cat.DeleteQuestion(r.Context(), id); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
