package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-placement/internal/grading"
)

// Recorder is the only writer of Attempt records.
type Recorder struct {
	store  Store
	gate   *Gate
	grader grading.Grader
	clock  Clock
	obs    Observer
	log    logrus.FieldLogger

	enforceTimeLimit bool
	grace            time.Duration
}

type RecorderOption func(*Recorder)

// WithTimeLimit turns server-side time-limit enforcement on or off and sets
// the grace period added to every deadline.
func WithTimeLimit(enforce bool, grace time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.enforceTimeLimit = enforce
		r.grace = grace
	}
}

func WithRecorderObserver(o Observer) RecorderOption {
	return func(r *Recorder) { r.obs = o }
}

func WithRecorderLogger(l logrus.FieldLogger) RecorderOption {
	return func(r *Recorder) { r.log = l }
}

func WithGrader(g grading.Grader) RecorderOption {
	return func(r *Recorder) { r.grader = g }
}

// NewRecorder shares the gate's clock so access checks and deadlines are
// evaluated against the same time source.
func NewRecorder(store Store, gate *Gate, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:            store,
		gate:             gate,
		grader:           grading.NewDefaultGrader(),
		clock:            gate.Clock(),
		obs:              nopObserver{},
		log:              logrus.StandardLogger(),
		enforceTimeLimit: true,
		grace:            30 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Session is what a student receives when opening a quiz.
type Session struct {
	QuizID       int64             `json:"quiz_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	TimeLimitMin int               `json:"time_limit_min"`
	Questions    []StudentQuestion `json:"questions"`
	StartedAt    time.Time         `json:"started_at"`
	Deadline     *time.Time        `json:"deadline,omitempty"`
}

// Start checks access, records the first start time and returns the
// question bank without answer keys. Starting again returns the original
// start time and deadline.
func (r *Recorder) Start(ctx context.Context, studentID string, quizID int64) (Session, error) {
	q, err := r.gate.Check(ctx, studentID, quizID)
	if err != nil {
		return Session{}, err
	}
	started, err := r.store.RecordStart(ctx, quizID, studentID, r.clock.Now())
	if err != nil {
		return Session{}, fmt.Errorf("record start: %w", err)
	}
	bank, err := r.store.ListQuestions(ctx, quizID)
	if err != nil {
		return Session{}, err
	}
	s := Session{
		QuizID:       q.ID,
		Title:        q.Title,
		Description:  q.Description,
		TimeLimitMin: q.TimeLimitMin,
		Questions:    make([]StudentQuestion, 0, len(bank)),
		StartedAt:    started,
	}
	for _, qq := range bank {
		s.Questions = append(s.Questions, qq.StudentView())
	}
	if lim := q.TimeLimit(); lim > 0 {
		d := started.Add(lim)
		s.Deadline = &d
	}
	return s, nil
}

// Submit grades selections and persists exactly one Attempt for
// (student, quiz). Access is re-checked here rather than trusted from
// Start. A concurrent submission that lost the insert gets an error
// matching both ErrSubmissionConflict and a DeniedError with
// ReasonAlreadyAttempted.
func (r *Recorder) Submit(ctx context.Context, studentID string, quizID int64, selections map[int64]string) (AttemptResult, error) {
	q, err := r.gate.Check(ctx, studentID, quizID)
	if err != nil {
		return AttemptResult{}, err
	}
	now := r.clock.Now()

	started, hasStart, err := r.store.GetStart(ctx, quizID, studentID)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("load start: %w", err)
	}
	if r.enforceTimeLimit && q.TimeLimit() > 0 {
		if !hasStart {
			r.obs.AccessDenied(ReasonNotStarted)
			return AttemptResult{}, denied(ReasonNotStarted)
		}
		if now.After(started.Add(q.TimeLimit() + r.grace)) {
			r.obs.AccessDenied(ReasonTimeLimitExceeded)
			r.log.WithFields(logrus.Fields{
				"quiz_id":    quizID,
				"student_id": studentID,
				"started_at": started,
			}).Info("late submission rejected")
			return AttemptResult{}, denied(ReasonTimeLimitExceeded)
		}
	}
	if !hasStart {
		started = now
	}

	a, err := r.store.SubmitAttempt(ctx, quizID, studentID, func(snap Quiz, bank []Question) (Attempt, error) {
		// The quiz may have been stopped or emptied since the gate ran.
		snap.QuestionCount = len(bank)
		if !snap.Reachable(now) {
			return Attempt{}, denied(ReasonNotLiveYet)
		}
		return r.grade(ctx, snap, bank, selections, started, now), nil
	})
	if err != nil {
		if reason := ReasonOf(err); reason != "" {
			r.obs.AccessDenied(reason)
			return AttemptResult{}, err
		}
		if errors.Is(err, ErrSubmissionConflict) {
			r.obs.AccessDenied(ReasonAlreadyAttempted)
			return AttemptResult{}, fmt.Errorf("%w: %w", ErrSubmissionConflict, denied(ReasonAlreadyAttempted))
		}
		return AttemptResult{}, err
	}
	r.obs.AttemptRecorded(a.Passed)
	r.log.WithFields(logrus.Fields{
		"quiz_id":    quizID,
		"student_id": studentID,
		"attempt_id": a.ID,
		"score":      a.Score,
		"total":      a.TotalMarks,
		"passed":     a.Passed,
	}).Info("attempt recorded")
	return a.Result(), nil
}

// grade keeps only selections for questions in the bank. Blank selections
// are dropped so "not answered" stays distinguishable from a wrong answer.
func (r *Recorder) grade(ctx context.Context, q Quiz, bank []Question, selections map[int64]string, started, now time.Time) Attempt {
	items := make([]grading.Item, 0, len(bank))
	answers := make(map[int64]Option, len(selections))
	responses := make(map[int64]string, len(selections))
	for _, qq := range bank {
		items = append(items, grading.Item{
			ID: qq.ID,
			Q:  grading.Q{Type: grading.TypeChoice4, Points: qq.Marks, AnswerKey: string(qq.Correct)},
		})
		raw, ok := selections[qq.ID]
		if !ok {
			continue
		}
		opt := NormalizeOption(raw)
		if opt == "" {
			continue
		}
		answers[qq.ID] = opt
		responses[qq.ID] = string(opt)
	}
	out := grading.GradeSheet(ctx, r.grader, items, responses, q.PassThreshold)
	return Attempt{
		Score:      out.Score,
		TotalMarks: out.Total,
		Passed:     out.Passed,
		Answers:    answers,
		StartedAt:  started,
		CreatedAt:  now,
	}
}

// Result returns the student's own result for a quiz.
func (r *Recorder) Result(ctx context.Context, studentID string, quizID int64) (AttemptResult, error) {
	a, err := r.store.GetAttempt(ctx, quizID, studentID)
	if err != nil {
		return AttemptResult{}, err
	}
	return a.Result(), nil
}
