package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Decision is the outcome of CanAccess. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return denied(d.Reason)
}

func deny(r DenyReason) Decision { return Decision{Reason: r} }

// CanAccess applies the eligibility rules in order; the first failing rule
// decides the reason.
//
//  1. the quiz must be linked to a drive
//  2. the student must have applied to that drive
//  3. the quiz must be reachable at now
//  4. the student must not have an attempt already
func CanAccess(q Quiz, appliedToLinkedDrive, attempted bool, now time.Time) Decision {
	if d := visibility(q, appliedToLinkedDrive, now); !d.Allowed {
		return d
	}
	if attempted {
		return deny(ReasonAlreadyAttempted)
	}
	return Decision{Allowed: true}
}

// visibility is rules 1 to 3, shared with the student listing.
func visibility(q Quiz, applied bool, now time.Time) Decision {
	if q.DriveID == nil {
		return deny(ReasonNotLinked)
	}
	if !applied {
		return deny(ReasonNotApplied)
	}
	if !q.Reachable(now) {
		return deny(ReasonNotLiveYet)
	}
	return Decision{Allowed: true}
}

// Gate collects the facts CanAccess needs from storage and collaborators.
type Gate struct {
	store Store
	apps  Applications
	clock Clock
	obs   Observer
	log   logrus.FieldLogger
}

type GateOption func(*Gate)

func WithGateClock(c Clock) GateOption {
	return func(g *Gate) { g.clock = c }
}

func WithGateObserver(o Observer) GateOption {
	return func(g *Gate) { g.obs = o }
}

func WithGateLogger(l logrus.FieldLogger) GateOption {
	return func(g *Gate) { g.log = l }
}

func NewGate(store Store, apps Applications, opts ...GateOption) *Gate {
	g := &Gate{
		store: store,
		apps:  apps,
		clock: SystemClock(),
		obs:   nopObserver{},
		log:   logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gate) Clock() Clock { return g.clock }

func (g *Gate) applied(ctx context.Context, studentID string, q Quiz) (bool, error) {
	if q.DriveID == nil {
		return false, nil
	}
	ok, err := g.apps.IsApplied(ctx, studentID, *q.DriveID)
	if err != nil {
		return false, fmt.Errorf("applied-to-drive lookup: %w", err)
	}
	return ok, nil
}

// Check re-evaluates access for (student, quiz) against current storage
// state and returns the loaded quiz when allowed.
func (g *Gate) Check(ctx context.Context, studentID string, quizID int64) (Quiz, error) {
	q, err := g.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}
	applied, err := g.applied(ctx, studentID, q)
	if err != nil {
		return Quiz{}, err
	}
	attempted := false
	if _, err := g.store.GetAttempt(ctx, quizID, studentID); err == nil {
		attempted = true
	} else if !errors.Is(err, ErrNotFound) {
		return Quiz{}, err
	}

	d := CanAccess(q, applied, attempted, g.clock.Now())
	if !d.Allowed {
		g.obs.AccessDenied(d.Reason)
		g.log.WithFields(logrus.Fields{
			"quiz_id":    quizID,
			"student_id": studentID,
			"reason":     d.Reason,
		}).Debug("quiz access denied")
		return q, d.Err()
	}
	return q, nil
}

// ListingStatus tags a visible quiz for the student listing.
type ListingStatus string

const (
	StatusNotAttempted     ListingStatus = "not_attempted"
	StatusAlreadyAttempted ListingStatus = "already_attempted"
)

type Listing struct {
	QuizID       int64          `json:"quiz_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	TimeLimitMin int            `json:"time_limit_min"`
	DriveID      int64          `json:"drive_id"`
	Status       ListingStatus  `json:"status"`
	Result       *AttemptResult `json:"result,omitempty"`
}

// Visible lists the quizzes a student can currently see. Quizzes failing
// rules 1 to 3 are omitted silently; attempted ones are reported with
// their result instead of being hidden.
func (g *Gate) Visible(ctx context.Context, studentID string) ([]Listing, error) {
	quizzes, err := g.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	attempts, err := g.store.ListStudentAttempts(ctx, studentID)
	if err != nil {
		return nil, err
	}
	byQuiz := make(map[int64]Attempt, len(attempts))
	for _, a := range attempts {
		byQuiz[a.QuizID] = a
	}

	now := g.clock.Now()
	appliedByDrive := map[int64]bool{}
	out := []Listing{}
	for _, q := range quizzes {
		applied := false
		if q.DriveID != nil {
			v, seen := appliedByDrive[*q.DriveID]
			if !seen {
				v, err = g.applied(ctx, studentID, q)
				if err != nil {
					return nil, err
				}
				appliedByDrive[*q.DriveID] = v
			}
			applied = v
		}
		if !visibility(q, applied, now).Allowed {
			continue
		}
		l := Listing{
			QuizID:       q.ID,
			Title:        q.Title,
			Description:  q.Description,
			TimeLimitMin: q.TimeLimitMin,
			DriveID:      *q.DriveID,
			Status:       StatusNotAttempted,
		}
		if a, ok := byQuiz[q.ID]; ok {
			res := a.Result()
			l.Status = StatusAlreadyAttempted
			l.Result = &res
		}
		out = append(out, l)
	}
	return out, nil
}
