package quiz

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// PublishIntent asks for a quiz to go live now or at a future time. A zero
// intent (GoLive false, LiveAt nil) moves the quiz back to Draft.
type PublishIntent struct {
	GoLive bool       `json:"go_live"`
	LiveAt *time.Time `json:"live_at,omitempty"`
}

func (p PublishIntent) wantsLive() bool { return p.GoLive || p.LiveAt != nil }

// QuizInput carries the descriptive and scoring fields of a quiz. Update
// replaces the plain fields; a nil PassThreshold or DriveID keeps the
// current value and DriveID 0 unlinks the drive. Publish is ignored on
// create.
type QuizInput struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Description   string         `json:"description" validate:"max=5000"`
	TimeLimitMin  int            `json:"time_limit_min" validate:"min=0,max=600"`
	PassThreshold *float64       `json:"pass_threshold" validate:"omitempty,min=0,max=100"`
	DriveID       *int64         `json:"drive_id" validate:"omitempty,min=0"`
	Publish       *PublishIntent `json:"publish,omitempty"`
}

type QuestionInput struct {
	Text    string    `json:"text" validate:"required"`
	Options [4]string `json:"options" validate:"dive,required,max=200"`
	Correct string    `json:"correct_option" validate:"required,oneof=A B C D"`
	Marks   *float64  `json:"marks" validate:"omitempty,min=0"`
}

// Catalog owns quiz and question records.
type Catalog struct {
	store    Store
	clock    Clock
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewCatalog(store Store, clock Clock, log logrus.FieldLogger) *Catalog {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Catalog{store: store, clock: clock, validate: v, log: log}
}

func (c *Catalog) Clock() Clock { return c.clock }

func (c *Catalog) check(in any) error {
	if err := c.validate.Struct(in); err != nil {
		return validationError(err)
	}
	return nil
}

func applyQuizInput(q *Quiz, in QuizInput) {
	q.Title = strings.TrimSpace(in.Title)
	q.Description = in.Description
	q.TimeLimitMin = in.TimeLimitMin
	if q.TimeLimitMin == 0 {
		q.TimeLimitMin = DefaultTimeLimitMin
	}
	if in.PassThreshold != nil {
		q.PassThreshold = *in.PassThreshold
	}
	if in.DriveID != nil {
		q.DriveID = nil
		if id := *in.DriveID; id > 0 {
			q.DriveID = &id
		}
	}
}

// Create stores a new quiz in Draft. Publication is a separate, deliberate
// action, so any publish intent on the input is dropped.
func (c *Catalog) Create(ctx context.Context, in QuizInput) (Quiz, error) {
	if err := c.check(in); err != nil {
		return Quiz{}, err
	}
	q := Quiz{PassThreshold: DefaultPassThreshold}
	applyQuizInput(&q, in)
	q.IsLive = false
	q.LiveAt = nil
	q.CreatedAt = c.clock.Now()
	created, err := c.store.CreateQuiz(ctx, q)
	if err != nil {
		return Quiz{}, err
	}
	c.log.WithField("quiz_id", created.ID).Info("quiz created")
	return created, nil
}

// Update commits the field changes unconditionally. A publish intent on a
// quiz without questions is not an error: the quiz is forced to Draft and a
// PublishRejected warning is returned alongside the updated quiz.
func (c *Catalog) Update(ctx context.Context, id int64, in QuizInput) (Quiz, *PublishRejected, error) {
	if err := c.check(in); err != nil {
		return Quiz{}, nil, err
	}
	q, err := c.store.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, nil, err
	}
	applyQuizInput(&q, in)

	var warn *PublishRejected
	if in.Publish != nil {
		if in.Publish.wantsLive() && q.QuestionCount == 0 {
			warn = &PublishRejected{Reason: PublishNoQuestions}
			q.IsLive = false
			q.LiveAt = nil
			c.log.WithField("quiz_id", id).Warn("publish rejected: quiz has no questions")
		} else {
			q.IsLive = in.Publish.GoLive
			q.LiveAt = in.Publish.LiveAt
			if q.LiveAt != nil {
				t := q.LiveAt.UTC().Truncate(time.Second)
				q.LiveAt = &t
			}
		}
	}
	updated, err := c.store.UpdateQuiz(ctx, q)
	if err != nil {
		return Quiz{}, nil, err
	}
	if in.Publish != nil && !updated.Reachable(c.clock.Now()) {
		if err := c.store.ClearStarts(ctx, id); err != nil {
			return Quiz{}, nil, err
		}
	}
	return updated, warn, nil
}

// Stop forces the quiz back to Draft and forgets who had opened it, so a
// later relaunch starts every student's clock afresh. Idempotent.
func (c *Catalog) Stop(ctx context.Context, id int64) (Quiz, error) {
	q, err := c.store.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	q.IsLive = false
	q.LiveAt = nil
	updated, err := c.store.UpdateQuiz(ctx, q)
	if err != nil {
		return Quiz{}, err
	}
	if err := c.store.ClearStarts(ctx, id); err != nil {
		return Quiz{}, err
	}
	c.log.WithField("quiz_id", id).Info("quiz stopped")
	return updated, nil
}

// Delete removes the quiz with its questions and attempts. The linked drive
// is untouched.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	if err := c.store.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	c.log.WithField("quiz_id", id).Info("quiz deleted")
	return nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (Quiz, []Question, error) {
	q, err := c.store.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, nil, err
	}
	bank, err := c.store.ListQuestions(ctx, id)
	if err != nil {
		return Quiz{}, nil, err
	}
	return q, bank, nil
}

func (c *Catalog) List(ctx context.Context) ([]Quiz, error) {
	return c.store.ListQuizzes(ctx)
}

func (c *Catalog) toQuestion(quizID int64, in QuestionInput) (Question, error) {
	in.Correct = string(NormalizeOption(in.Correct))
	for i := range in.Options {
		in.Options[i] = strings.TrimSpace(in.Options[i])
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := c.check(in); err != nil {
		return Question{}, err
	}
	marks := DefaultMarks
	if in.Marks != nil {
		marks = *in.Marks
	}
	return Question{
		QuizID:    quizID,
		Text:      in.Text,
		Options:   in.Options,
		Correct:   Option(in.Correct),
		Marks:     marks,
		CreatedAt: c.clock.Now(),
	}, nil
}

// AddQuestion is allowed whatever the publication state of the quiz.
func (c *Catalog) AddQuestion(ctx context.Context, quizID int64, in QuestionInput) (Question, error) {
	q, err := c.toQuestion(quizID, in)
	if err != nil {
		return Question{}, err
	}
	added, err := c.store.AddQuestions(ctx, []Question{q})
	if err != nil {
		return Question{}, err
	}
	return added[0], nil
}

// ImportQuestions validates every row before inserting any of them.
func (c *Catalog) ImportQuestions(ctx context.Context, quizID int64, ins []QuestionInput) ([]Question, error) {
	qs := make([]Question, 0, len(ins))
	for _, in := range ins {
		q, err := c.toQuestion(quizID, in)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if len(qs) == 0 {
		return []Question{}, nil
	}
	added, err := c.store.AddQuestions(ctx, qs)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"quiz_id": quizID, "count": len(added)}).Info("questions imported")
	return added, nil
}

func (c *Catalog) UpdateQuestion(ctx context.Context, id int64, in QuestionInput) (Question, error) {
	cur, err := c.store.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	q, err := c.toQuestion(cur.QuizID, in)
	if err != nil {
		return Question{}, err
	}
	q.ID = id
	q.CreatedAt = cur.CreatedAt
	return c.store.UpdateQuestion(ctx, q)
}

// DeleteQuestion removes a question. Removing the last one makes the quiz
// unreachable immediately and clears its publication flags.
func (c *Catalog) DeleteQuestion(ctx context.Context, id int64) error {
	q, err := c.store.DeleteQuestion(ctx, id)
	if err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"quiz_id": q.QuizID, "question_id": id}).Info("question deleted")
	return nil
}
