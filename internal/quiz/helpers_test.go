package quiz_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-placement/internal/db"
	"github.com/mind-engage/mindengage-placement/internal/quiz"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const driveID int64 = 7

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeApps maps student -> drives applied to.
type fakeApps struct {
	mu      sync.Mutex
	applied map[string]map[int64]bool
}

func newFakeApps() *fakeApps { return &fakeApps{applied: map[string]map[int64]bool{}} }

func (f *fakeApps) apply(student string, drive int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applied[student] == nil {
		f.applied[student] = map[int64]bool{}
	}
	f.applied[student][drive] = true
}

func (f *fakeApps) IsApplied(_ context.Context, student string, drive int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied[student][drive], nil
}

type countingObserver struct {
	mu       sync.Mutex
	denied   map[quiz.DenyReason]int
	recorded int
}

func (o *countingObserver) AccessDenied(r quiz.DenyReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.denied == nil {
		o.denied = map[quiz.DenyReason]int{}
	}
	o.denied[r]++
}

func (o *countingObserver) AttemptRecorded(bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorded++
}

func openSQLiteStore(t *testing.T) quiz.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quiz.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	return quiz.NewSQLStore(dbh, string(db.DriverSQLite), quiz.WithStoreClock(quiz.ClockFunc(func() time.Time { return base })))
}

var storeFactories = map[string]func(t *testing.T) quiz.Store{
	"memory": func(*testing.T) quiz.Store { return quiz.NewInMemoryStore() },
	"sqlite": openSQLiteStore,
}

type harness struct {
	store quiz.Store
	clock *testClock
	apps  *fakeApps
	obs   *countingObserver
	log   *logtest.Hook
	cat   *quiz.Catalog
	gate  *quiz.Gate
	rec   *quiz.Recorder
}

func newHarness(t *testing.T, store quiz.Store, opts ...quiz.RecorderOption) *harness {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h := &harness{
		store: store,
		clock: newTestClock(base),
		apps:  newFakeApps(),
		obs:   &countingObserver{},
		log:   hook,
	}
	h.cat = quiz.NewCatalog(store, h.clock, logger)
	h.gate = quiz.NewGate(store, h.apps,
		quiz.WithGateClock(h.clock),
		quiz.WithGateObserver(h.obs),
		quiz.WithGateLogger(logger),
	)
	opts = append([]quiz.RecorderOption{
		quiz.WithRecorderObserver(h.obs),
		quiz.WithRecorderLogger(logger),
	}, opts...)
	h.rec = quiz.NewRecorder(store, h.gate, opts...)
	return h
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func question(correct string, marks float64) quiz.QuestionInput {
	return quiz.QuestionInput{
		Text:    "Pick " + correct,
		Options: [4]string{"first", "second", "third", "fourth"},
		Correct: correct,
		Marks:   f64(marks),
	}
}

// liveQuiz creates a quiz linked to driveID with the given questions and
// publishes it immediately.
func (h *harness) liveQuiz(t *testing.T, threshold float64, qs ...quiz.QuestionInput) (quiz.Quiz, []quiz.Question) {
	t.Helper()
	ctx := context.Background()
	in := quiz.QuizInput{Title: "Aptitude", TimeLimitMin: 30, PassThreshold: f64(threshold), DriveID: i64(driveID)}
	q, err := h.cat.Create(ctx, in)
	require.NoError(t, err)
	bank, err := h.cat.ImportQuestions(ctx, q.ID, qs)
	require.NoError(t, err)
	in.Publish = &quiz.PublishIntent{GoLive: true}
	q, warn, err := h.cat.Update(ctx, q.ID, in)
	require.NoError(t, err)
	require.Nil(t, warn)
	return q, bank
}

// startAndSubmit applies the student to the drive, starts and submits.
func (h *harness) startAndSubmit(t *testing.T, student string, quizID int64, sel map[int64]string) (quiz.AttemptResult, error) {
	t.Helper()
	h.apps.apply(student, driveID)
	if _, err := h.rec.Start(context.Background(), student, quizID); err != nil {
		return quiz.AttemptResult{}, err
	}
	return h.rec.Submit(context.Background(), student, quizID, sel)
}
