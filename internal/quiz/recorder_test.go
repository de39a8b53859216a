package quiz_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-placement/internal/quiz"
)

func TestGradingIsDeterministic(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t))
			q, bank := h.liveQuiz(t, 100, question("A", 2), question("D", 2))
			q1, q2 := bank[0].ID, bank[1].ID

			res, err := h.startAndSubmit(t, "s1", q.ID, map[int64]string{q1: "A", q2: "D"})
			require.NoError(t, err)
			assert.Equal(t, 4.0, res.Score)
			assert.Equal(t, 4.0, res.Total)
			assert.Equal(t, 100.0, res.Percentage)
			assert.True(t, res.Passed)

			res, err = h.startAndSubmit(t, "s2", q.ID, map[int64]string{q1: "B"})
			require.NoError(t, err)
			assert.Equal(t, 0.0, res.Score)
			assert.Equal(t, 4.0, res.Total)
			assert.Equal(t, 0.0, res.Percentage)
			assert.False(t, res.Passed)

			a, err := h.store.GetAttempt(context.Background(), q.ID, "s2")
			require.NoError(t, err)
			assert.Equal(t, map[int64]quiz.Option{q1: quiz.OptionB}, a.Answers, "unanswered questions are absent")
		})
	}
}

func TestPassThreshold(t *testing.T) {
	cases := []struct {
		threshold float64
		passed    bool
	}{
		{50, true},
		{60, true},
		{60.5, false},
		{80, false},
	}
	for _, tc := range cases {
		h := newHarness(t, quiz.NewInMemoryStore())
		q, bank := h.liveQuiz(t, tc.threshold, question("A", 6), question("B", 4))
		res, err := h.startAndSubmit(t, "s1", q.ID, map[int64]string{bank[0].ID: "a", bank[1].ID: "C"})
		require.NoError(t, err)
		assert.Equal(t, 60.0, res.Percentage)
		assert.Equal(t, tc.passed, res.Passed, "threshold %v", tc.threshold)
	}
}

func TestMalformedAndUnknownSelections(t *testing.T) {
	h := newHarness(t, quiz.NewInMemoryStore())
	q, bank := h.liveQuiz(t, 50, question("A", 1), question("B", 1), question("C", 1))

	res, err := h.startAndSubmit(t, "s1", q.ID, map[int64]string{
		bank[0].ID: "zz",
		bank[1].ID: "   ",
		bank[2].ID: " c ",
		424242:     "A",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 3.0, res.Total)

	a, err := h.store.GetAttempt(context.Background(), q.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]quiz.Option{bank[0].ID: "ZZ", bank[2].ID: quiz.OptionC}, a.Answers)
}

func TestZeroMarksQuiz(t *testing.T) {
	h := newHarness(t, quiz.NewInMemoryStore())
	q, bank := h.liveQuiz(t, 0, question("A", 0))
	res, err := h.startAndSubmit(t, "s1", q.ID, map[int64]string{bank[0].ID: "A"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Zero(t, res.Percentage)
	assert.True(t, res.Passed, "0% meets a 0 threshold")
}

func TestSecondSubmissionIsRejected(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t))
			q, bank := h.liveQuiz(t, 50, question("A", 1))
			_, err := h.startAndSubmit(t, "s1", q.ID, map[int64]string{bank[0].ID: "A"})
			require.NoError(t, err)

			_, err = h.rec.Submit(context.Background(), "s1", q.ID, map[int64]string{bank[0].ID: "B"})
			assert.Equal(t, quiz.ReasonAlreadyAttempted, quiz.ReasonOf(err))

			_, err = h.rec.Start(context.Background(), "s1", q.ID)
			assert.Equal(t, quiz.ReasonAlreadyAttempted, quiz.ReasonOf(err), "quiz body is closed after an attempt")

			res, err := h.rec.Result(context.Background(), "s1", q.ID)
			require.NoError(t, err)
			assert.True(t, res.Passed, "first attempt is kept")
		})
	}
}

func TestConcurrentSubmitsPersistOneAttempt(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t))
			ctx := context.Background()
			q, bank := h.liveQuiz(t, 50, question("A", 1), question("B", 1))
			h.apps.apply("s1", driveID)
			_, err := h.rec.Start(ctx, "s1", q.ID)
			require.NoError(t, err)

			const n = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				ok   int
				errs []error
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					sel := map[int64]string{bank[0].ID: "A"}
					if i%2 == 1 {
						sel[bank[1].ID] = "B"
					}
					_, err := h.rec.Submit(ctx, "s1", q.ID, sel)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						ok++
						return
					}
					errs = append(errs, err)
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 1, ok)
			require.Len(t, errs, n-1)
			for _, err := range errs {
				assert.Equal(t, quiz.ReasonAlreadyAttempted, quiz.ReasonOf(err), "%v", err)
			}
			as, err := h.store.ListAttempts(ctx, q.ID)
			require.NoError(t, err)
			assert.Len(t, as, 1)
		})
	}
}

func TestStoreRejectsDuplicateInsert(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t))
			q, _ := h.liveQuiz(t, 50, question("A", 1))
			grade := func(quiz.Quiz, []quiz.Question) (quiz.Attempt, error) {
				return quiz.Attempt{StartedAt: base, CreatedAt: base}, nil
			}
			_, err := h.store.SubmitAttempt(context.Background(), q.ID, "s1", grade)
			require.NoError(t, err)
			_, err = h.store.SubmitAttempt(context.Background(), q.ID, "s1", grade)
			assert.True(t, errors.Is(err, quiz.ErrSubmissionConflict))
		})
	}
}

func TestGradesAgainstBankAtSubmission(t *testing.T) {
	h := newHarness(t, quiz.NewInMemoryStore())
	ctx := context.Background()
	q, bank := h.liveQuiz(t, 50, question("A", 1))
	h.apps.apply("s1", driveID)
	_, err := h.rec.Start(ctx, "s1", q.ID)
	require.NoError(t, err)

	_, err = h.cat.UpdateQuestion(ctx, bank[0].ID, question("B", 5))
	require.NoError(t, err)

	res, err := h.rec.Submit(ctx, "s1", q.ID, map[int64]string{bank[0].ID: "B"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Score)
	assert.Equal(t, 5.0, res.Total)
}

func TestStartHidesAnswerKey(t *testing.T) {
	h := newHarness(t, quiz.NewInMemoryStore())
	q, bank := h.liveQuiz(t, 50, question("A", 1), question("B", 2))
	h.apps.apply("s1", driveID)

	s, err := h.rec.Start(context.Background(), "s1", q.ID)
	require.NoError(t, err)
	require.Len(t, s.Questions, 2)
	assert.Equal(t, bank[0].ID, s.Questions[0].ID)
	assert.Equal(t, 2.0, s.Questions[1].Marks)
	assert.True(t, s.StartedAt.Equal(base))
	require.NotNil(t, s.Deadline)
	assert.True(t, s.Deadline.Equal(base.Add(30*time.Minute)))

	h.clock.Advance(time.Minute)
	again, err := h.rec.Start(context.Background(), "s1", q.ID)
	require.NoError(t, err)
	assert.True(t, again.StartedAt.Equal(base), "restarting keeps the first start")
}

func TestTimeLimitEnforcement(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t), quiz.WithTimeLimit(true, 30*time.Second))
			ctx := context.Background()
			q, bank := h.liveQuiz(t, 50, question("A", 1))
			sel := map[int64]string{bank[0].ID: "A"}
			h.apps.apply("on-time", driveID)
			h.apps.apply("late", driveID)
			h.apps.apply("never-started", driveID)

			_, err := h.rec.Start(ctx, "on-time", q.ID)
			require.NoError(t, err)
			_, err = h.rec.Start(ctx, "late", q.ID)
			require.NoError(t, err)

			_, err = h.rec.Submit(ctx, "never-started", q.ID, sel)
			assert.Equal(t, quiz.ReasonNotStarted, quiz.ReasonOf(err))

			h.clock.Advance(30*time.Minute + 30*time.Second)
			_, err = h.rec.Submit(ctx, "on-time", q.ID, sel)
			require.NoError(t, err, "deadline plus grace is still accepted")

			h.clock.Advance(time.Second)
			_, err = h.rec.Submit(ctx, "late", q.ID, sel)
			assert.Equal(t, quiz.ReasonTimeLimitExceeded, quiz.ReasonOf(err))
			_, err = h.store.GetAttempt(ctx, q.ID, "late")
			assert.ErrorIs(t, err, quiz.ErrNotFound, "late submissions are not stored")

			h.obs.mu.Lock()
			assert.Equal(t, 1, h.obs.denied[quiz.ReasonTimeLimitExceeded])
			assert.Equal(t, 1, h.obs.denied[quiz.ReasonNotStarted])
			assert.Equal(t, 1, h.obs.recorded)
			h.obs.mu.Unlock()
		})
	}
}

func TestTimeLimitDisabled(t *testing.T) {
	h := newHarness(t, quiz.NewInMemoryStore(), quiz.WithTimeLimit(false, 0))
	q, bank := h.liveQuiz(t, 50, question("A", 1))
	h.apps.apply("s1", driveID)
	h.clock.Advance(24 * time.Hour)

	res, err := h.rec.Submit(context.Background(), "s1", q.ID, map[int64]string{bank[0].ID: "A"})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	a, err := h.store.GetAttempt(context.Background(), q.ID, "s1")
	require.NoError(t, err)
	assert.True(t, a.StartedAt.Equal(a.CreatedAt), "no start marker falls back to submission time")
}

func TestSubmitRechecksGate(t *testing.T) {
	h := newHarness(t, quiz.NewInMemoryStore())
	ctx := context.Background()
	q, bank := h.liveQuiz(t, 50, question("A", 1))
	h.apps.apply("s1", driveID)
	_, err := h.rec.Start(ctx, "s1", q.ID)
	require.NoError(t, err)

	_, err = h.cat.Stop(ctx, q.ID)
	require.NoError(t, err)

	_, err = h.rec.Submit(ctx, "s1", q.ID, map[int64]string{bank[0].ID: "A"})
	assert.Equal(t, quiz.ReasonNotLiveYet, quiz.ReasonOf(err))

	_, err = h.rec.Result(ctx, "s1", q.ID)
	assert.ErrorIs(t, err, quiz.ErrNotFound)
}

// racingStore runs before ahead of every SubmitAttempt, standing in for an
// admin action that lands between the gate check and the insert.
type racingStore struct {
	quiz.Store
	before func(ctx context.Context, quizID int64)
}

func (s *racingStore) SubmitAttempt(ctx context.Context, quizID int64, studentID string, grade quiz.GradeFunc) (quiz.Attempt, error) {
	if s.before != nil {
		s.before(ctx, quizID)
	}
	return s.Store.SubmitAttempt(ctx, quizID, studentID, grade)
}

func TestSubmitRejectsQuizEmptiedMidSubmit(t *testing.T) {
	interference := map[string]func(t *testing.T, inner quiz.Store) func(context.Context, int64){
		"questions deleted": func(t *testing.T, inner quiz.Store) func(context.Context, int64) {
			return func(ctx context.Context, quizID int64) {
				bank, err := inner.ListQuestions(ctx, quizID)
				require.NoError(t, err)
				for _, q := range bank {
					_, err := inner.DeleteQuestion(ctx, q.ID)
					require.NoError(t, err)
				}
			}
		},
		"quiz stopped": func(t *testing.T, inner quiz.Store) func(context.Context, int64) {
			return func(ctx context.Context, quizID int64) {
				q, err := inner.GetQuiz(ctx, quizID)
				require.NoError(t, err)
				q.IsLive, q.LiveAt = false, nil
				_, err = inner.UpdateQuiz(ctx, q)
				require.NoError(t, err)
			}
		},
	}
	for name, mk := range storeFactories {
		for what, hook := range interference {
			t.Run(name+"/"+what, func(t *testing.T) {
				inner := mk(t)
				racing := &racingStore{Store: inner}
				h := newHarness(t, racing)
				ctx := context.Background()
				q, bank := h.liveQuiz(t, 50, question("A", 1))
				h.apps.apply("s1", driveID)
				_, err := h.rec.Start(ctx, "s1", q.ID)
				require.NoError(t, err)

				racing.before = hook(t, inner)
				_, err = h.rec.Submit(ctx, "s1", q.ID, map[int64]string{bank[0].ID: "A"})
				assert.Equal(t, quiz.ReasonNotLiveYet, quiz.ReasonOf(err))

				_, err = inner.GetAttempt(ctx, q.ID, "s1")
				assert.ErrorIs(t, err, quiz.ErrNotFound, "no empty attempt is stored")

				h.obs.mu.Lock()
				assert.Equal(t, 1, h.obs.denied[quiz.ReasonNotLiveYet])
				assert.Equal(t, 0, h.obs.recorded)
				h.obs.mu.Unlock()
			})
		}
	}
}

func TestRelaunchRestartsClock(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t), quiz.WithTimeLimit(true, 0))
			ctx := context.Background()
			q, bank := h.liveQuiz(t, 50, question("A", 1))
			h.apps.apply("s1", driveID)
			_, err := h.rec.Start(ctx, "s1", q.ID)
			require.NoError(t, err)

			h.clock.Advance(2 * time.Hour)
			_, err = h.cat.Stop(ctx, q.ID)
			require.NoError(t, err)
			_, ok, err := h.store.GetStart(ctx, q.ID, "s1")
			require.NoError(t, err)
			assert.False(t, ok, "stopping forgets who opened the quiz")

			_, warn, err := h.cat.Update(ctx, q.ID, quiz.QuizInput{
				Title: "Aptitude", TimeLimitMin: 30, Publish: &quiz.PublishIntent{GoLive: true},
			})
			require.NoError(t, err)
			require.Nil(t, warn)

			sess, err := h.rec.Start(ctx, "s1", q.ID)
			require.NoError(t, err)
			assert.True(t, sess.StartedAt.Equal(h.clock.Now()))

			h.clock.Advance(10 * time.Minute)
			_, err = h.rec.Submit(ctx, "s1", q.ID, map[int64]string{bank[0].ID: "A"})
			require.NoError(t, err)
		})
	}
}

func TestEmptyingQuizRestartsClock(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t))
			ctx := context.Background()
			q, bank := h.liveQuiz(t, 50, question("A", 1))
			h.apps.apply("s1", driveID)
			_, err := h.rec.Start(ctx, "s1", q.ID)
			require.NoError(t, err)

			h.clock.Advance(time.Hour)
			require.NoError(t, h.cat.DeleteQuestion(ctx, bank[0].ID))
			_, ok, err := h.store.GetStart(ctx, q.ID, "s1")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = h.cat.AddQuestion(ctx, q.ID, question("B", 1))
			require.NoError(t, err)
			_, _, err = h.cat.Update(ctx, q.ID, quiz.QuizInput{
				Title: "Aptitude", TimeLimitMin: 30, Publish: &quiz.PublishIntent{GoLive: true},
			})
			require.NoError(t, err)

			sess, err := h.rec.Start(ctx, "s1", q.ID)
			require.NoError(t, err)
			assert.True(t, sess.StartedAt.Equal(h.clock.Now()))
		})
	}
}

func TestStoredAnswersAreNotShared(t *testing.T) {
	for name, mk := range storeFactories {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, mk(t))
			ctx := context.Background()
			q, bank := h.liveQuiz(t, 50, question("A", 1))
			_, err := h.startAndSubmit(t, "s1", q.ID, map[int64]string{bank[0].ID: "A"})
			require.NoError(t, err)

			a, err := h.store.GetAttempt(ctx, q.ID, "s1")
			require.NoError(t, err)
			delete(a.Answers, bank[0].ID)

			list, err := h.store.ListAttempts(ctx, q.ID)
			require.NoError(t, err)
			require.Len(t, list, 1)
			list[0].Answers[bank[0].ID] = quiz.OptionC

			again, err := h.store.GetAttemptByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, map[int64]quiz.Option{bank[0].ID: quiz.OptionA}, again.Answers)
		})
	}
}
