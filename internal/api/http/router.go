package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	auth "github.com/mind-engage/mindengage-placement/internal/auth/middleware"
	"github.com/mind-engage/mindengage-placement/internal/logger"
	"github.com/mind-engage/mindengage-placement/internal/metrics"
	"github.com/mind-engage/mindengage-placement/internal/quiz"
	"github.com/mind-engage/mindengage-placement/internal/rbac"
	"github.com/mind-engage/mindengage-placement/internal/results"
	"github.com/mind-engage/mindengage-placement/internal/storage"
	syncx "github.com/mind-engage/mindengage-placement/internal/sync"
)

// Students is what the HTTP layer needs from the student directory.
type Students interface {
	auth.StudentAuthenticator
	auth.VerifiedChecker
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Catalog  *quiz.Catalog
	Gate     *quiz.Gate
	Recorder *quiz.Recorder
	Results  *results.Aggregator
	Events   *syncx.EventRepo
	Blobs    storage.BlobStore

	Auth     *auth.AuthService
	Admin    auth.Admin
	Students Students

	DB          Pinger
	Metrics     *metrics.Metrics // nil disables /metrics
	CORSOrigins []string
	Log         logrus.FieldLogger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Admin, d.Students, log))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		pr.Use(auth.RequireVerifiedStudent(d.Students))

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.PermQuizManage)).Group(func(mr chi.Router) {
				mr.Get("/quizzes", ListQuizzesHandler(d.Catalog, log))
				mr.Post("/quizzes", CreateQuizHandler(d.Catalog, log))
				mr.Get("/quizzes/{quizID}", GetQuizHandler(d.Catalog, log))
				mr.Put("/quizzes/{quizID}", UpdateQuizHandler(d.Catalog, log))
				mr.Delete("/quizzes/{quizID}", DeleteQuizHandler(d.Catalog, d.Blobs, log))
				mr.Post("/quizzes/{quizID}/stop", StopQuizHandler(d.Catalog, log))
				mr.Post("/quizzes/{quizID}/questions", AddQuestionHandler(d.Catalog, log))
				mr.Post("/quizzes/{quizID}/questions/import", ImportQuestionsHandler(d.Catalog, d.Blobs, log))
				mr.Get("/questions/sample", SampleQuestionsHandler(log))
				mr.Put("/questions/{questionID}", UpdateQuestionHandler(d.Catalog, log))
				mr.Delete("/questions/{questionID}", DeleteQuestionHandler(d.Catalog, log))
			})
			ar.With(rbac.Require(rbac.PermAttemptViewAll)).
				Get("/quizzes/{quizID}/results", ResultsHandler(d.Results, log))
			ar.With(rbac.Require(rbac.PermAttemptViewAll)).
				Get("/quizzes/{quizID}/attempts/{attemptID}/breakdown", BreakdownHandler(d.Results, log))
			ar.With(rbac.Require(rbac.PermAttemptViewAll)).
				Get("/quizzes/{quizID}/report", ReportHandler(d.Results, log))
			ar.With(rbac.RequireAny(rbac.PermReportExport, rbac.PermAttemptViewAll)).
				Get("/quizzes/{quizID}/export", ExportResultsHandler(d.Results, log))
		})

		pr.With(rbac.Require(rbac.PermEventsRead)).
			Get("/events", EventsHandler(d.Events, log))

		pr.Route("/student/quizzes", func(sr chi.Router) {
			sr.With(rbac.Require(rbac.PermQuizList)).
				Get("/", StudentQuizzesHandler(d.Gate, log))
			sr.With(rbac.Require(rbac.PermQuizTake)).
				Post("/{quizID}/start", StartQuizHandler(d.Recorder, log))
			sr.With(rbac.Require(rbac.PermAttemptSubmit)).
				Post("/{quizID}/submit", SubmitQuizHandler(d.Recorder, log))
			sr.With(rbac.Require(rbac.PermAttemptViewOwn)).
				Get("/{quizID}/result", StudentResultHandler(d.Recorder, log))
		})
	})
	return r
}
