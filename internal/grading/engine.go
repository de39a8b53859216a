package grading

import (
	"context"
	"strings"
)

// TypeChoice4 is the fixed four-choice, single-answer question format.
const TypeChoice4 = "choice4"

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type      string
	Points    float64
	AnswerKey string
}

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints float64 // points awarded automatically
	MaxPoints  float64 // the question's max points
	Answered   bool
	Correct    bool
}

// Strategy grades a single question. Grading never fails: a missing or
// malformed response is simply not correct.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, Answered: strings.TrimSpace(response) != ""}
	}
	return s.Grade(ctx, q, response)
}

// Engine options

type Option func(*config)

type config struct {
	CaseFold bool // compare choice letters case-insensitively
}

func WithCaseFold(b bool) Option { return func(c *config) { c.CaseFold = b } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{CaseFold: true}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeChoice4: choiceStrategy{caseFold: cfg.CaseFold},
		},
	}
}

type choiceStrategy struct{ caseFold bool }

func (s choiceStrategy) Grade(_ context.Context, q Q, response string) Result {
	res := Result{MaxPoints: q.Points}
	resp := strings.TrimSpace(response)
	key := strings.TrimSpace(q.AnswerKey)
	if resp == "" {
		return res
	}
	res.Answered = true
	if s.caseFold {
		resp, key = strings.ToUpper(resp), strings.ToUpper(key)
	}
	if key != "" && resp == key {
		res.Correct = true
		res.AutoPoints = q.Points
	}
	return res
}
