package errs

import (
	"fmt"
	"strings"
	"time"
)

// ConflictError carries attribution for an optimistic concurrency mismatch.
type ConflictError struct {
	Kind            string
	ExpectedVersion string
	CurrentVersion  string
	LastModifiedBy  string
	LastModifiedAt  time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: expected %q, current %q (by %s at %s)",
		ErrVersionConflict, e.ExpectedVersion, e.CurrentVersion,
		e.LastModifiedBy, e.LastModifiedAt.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrVersionConflict) match.
func (e *ConflictError) Is(target error) bool { return target == ErrVersionConflict }

// FieldIssue is a single validation failure at a field path.
type FieldIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError aggregates field issues for one document.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Path+": "+is.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError with a single issue.
func Invalid(path, msg string) *ValidationError {
	return &ValidationError{Issues: []FieldIssue{{Path: path, Message: msg}}}
}
