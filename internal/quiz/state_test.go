package quiz_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-placement/internal/quiz"
)

func TestStateDerivation(t *testing.T) {
	future := base.Add(time.Hour)
	past := base.Add(-time.Hour)

	cases := []struct {
		name string
		q    quiz.Quiz
		want quiz.State
	}{
		{"no flags", quiz.Quiz{QuestionCount: 3}, quiz.StateDraft},
		{"live", quiz.Quiz{QuestionCount: 3, IsLive: true}, quiz.StateLive},
		{"scheduled", quiz.Quiz{QuestionCount: 3, LiveAt: &future}, quiz.StateScheduled},
		{"schedule passed", quiz.Quiz{QuestionCount: 3, LiveAt: &past}, quiz.StateLive},
		{"live without questions", quiz.Quiz{IsLive: true}, quiz.StateDraft},
		{"schedule passed without questions", quiz.Quiz{LiveAt: &past}, quiz.StateDraft},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.q.State(base))
			assert.Equal(t, tc.want == quiz.StateLive, tc.q.Reachable(base))
		})
	}
}

func TestScheduleBoundary(t *testing.T) {
	at := base.Add(10 * time.Minute)
	q := quiz.Quiz{QuestionCount: 1, LiveAt: &at, DriveID: i64(driveID)}

	d := quiz.CanAccess(q, true, false, at.Add(-time.Second))
	assert.False(t, d.Allowed)
	assert.Equal(t, quiz.ReasonNotLiveYet, d.Reason)

	assert.True(t, quiz.CanAccess(q, true, false, at).Allowed)
	assert.True(t, quiz.CanAccess(q, true, false, at.Add(time.Second)).Allowed)
}

func TestTimeLimit(t *testing.T) {
	assert.Equal(t, 30*time.Minute, quiz.Quiz{TimeLimitMin: 30}.TimeLimit())
	assert.Zero(t, quiz.Quiz{}.TimeLimit())
}

func TestNormalizeOption(t *testing.T) {
	assert.Equal(t, quiz.OptionB, quiz.NormalizeOption(" b "))
	assert.True(t, quiz.NormalizeOption("d").Valid())
	assert.False(t, quiz.NormalizeOption("e").Valid())
	assert.Equal(t, quiz.Option(""), quiz.NormalizeOption("   "))
}

func TestAttemptPercentage(t *testing.T) {
	assert.Equal(t, 60.0, quiz.Attempt{Score: 6, TotalMarks: 10}.Percentage())
	assert.Zero(t, quiz.Attempt{Score: 0, TotalMarks: 0}.Percentage())
}
