package quiz

import "time"

// State is the effective publication state of a quiz at a given instant.
type State string

const (
	StateDraft     State = "draft"
	StateScheduled State = "scheduled"
	StateLive      State = "live"
)

// State derives the publication state from the stored flags, the question
// count and the supplied instant. Nothing about "live" is ever stored: a
// quiz without questions reads as Draft whatever its flags say, and a
// scheduled quiz turns live once now reaches LiveAt.
func (q Quiz) State(now time.Time) State {
	if q.QuestionCount <= 0 {
		return StateDraft
	}
	if q.IsLive {
		return StateLive
	}
	if q.LiveAt != nil {
		if !now.Before(*q.LiveAt) {
			return StateLive
		}
		return StateScheduled
	}
	return StateDraft
}

// Reachable reports whether eligible students may open the quiz at now.
func (q Quiz) Reachable(now time.Time) bool {
	return q.State(now) == StateLive
}

// Clock is the single authoritative time source shared by the gate and the
// recorder.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns wall-clock time in UTC.
func SystemClock() Clock { return systemClock{} }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
