package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrSubmissionConflict is returned when another submission for the same
	// (student, quiz) pair was committed first.
	ErrSubmissionConflict = errors.New("submission conflict")
)

// DenyReason tells the caller why a student may not open or submit a quiz.
type DenyReason string

const (
	ReasonNotLinked         DenyReason = "not_linked"
	ReasonNotApplied        DenyReason = "not_applied"
	ReasonNotLiveYet        DenyReason = "not_live_yet"
	ReasonAlreadyAttempted  DenyReason = "already_attempted"
	ReasonNotStarted        DenyReason = "not_started"
	ReasonTimeLimitExceeded DenyReason = "time_limit_exceeded"
)

type DeniedError struct {
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return "access denied: " + string(e.Reason)
}

func denied(r DenyReason) error { return &DeniedError{Reason: r} }

// ReasonOf extracts the deny reason from err, or "" when err is not a denial.
func ReasonOf(err error) DenyReason {
	var de *DeniedError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// PublishRejected is a warning, not an error: the rest of the update was
// committed but the quiz stays in Draft.
type PublishRejected struct {
	Reason string `json:"reason"`
}

const PublishNoQuestions = "no_questions"

func (p PublishRejected) String() string {
	return "publish rejected: " + p.Reason
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+" "+tag)
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fe.Field()] = fe.Tag()
	}
	return ve
}
