package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoImage           = errors.New("no image supplied")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrMalformedCapture  = errors.New("malformed camera capture")
	ErrPersistence       = errors.New("image could not be stored")

	// ErrOwnership covers both a missing detection and one owned by another
	// user; callers must not be able to tell them apart. Confirm returns it
	// for an image stored for someone else.
	ErrOwnership = errors.New("detection not found or not yours")

	ErrInvalidRegistration = errors.New("invalid registration")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrTooManyAttempts     = errors.New("too many login attempts")
)

// IntakeKind classifies why an intake was rejected.
type IntakeKind string

const (
	IntakeNoImage          IntakeKind = "NoImage"
	IntakeUnsupported      IntakeKind = "UnsupportedFormat"
	IntakeMalformedCapture IntakeKind = "MalformedCapture"
	IntakePersistence      IntakeKind = "Persistence"
)

var intakeSentinels = map[IntakeKind]error{
	IntakeNoImage:          ErrNoImage,
	IntakeUnsupported:      ErrUnsupportedFormat,
	IntakeMalformedCapture: ErrMalformedCapture,
	IntakePersistence:      ErrPersistence,
}

// IntakeError is returned by IntakeService.Intake. errors.Is matches the
// sentinel of its Kind.
type IntakeError struct {
	Kind IntakeKind
	Err  error
}

func newIntakeError(kind IntakeKind, err error) *IntakeError {
	return &IntakeError{Kind: kind, Err: err}
}

func (e *IntakeError) Error() string {
	sentinel := intakeSentinels[e.Kind]
	if e.Err == nil || e.Err == sentinel {
		return fmt.Sprintf("intake: %v", sentinel)
	}
	return fmt.Sprintf("intake: %v: %v", sentinel, e.Err)
}

func (e *IntakeError) Unwrap() error { return e.Err }

func (e *IntakeError) Is(target error) bool {
	return intakeSentinels[e.Kind] == target
}

// FieldKind classifies a rejected confirm field.
type FieldKind string

const (
	FieldMissing              FieldKind = "MissingField"
	FieldInvalidVerdict       FieldKind = "InvalidVerdict"
	FieldUnparseableScore     FieldKind = "UnparseableScore"
	FieldUnknownImage         FieldKind = "UnknownImage"
	FieldUnparseableTimestamp FieldKind = "UnparseableTimestamp"
)

type FieldError struct {
	Field   string
	Kind    FieldKind
	Message string
}

// ValidationError carries every rejected field of one confirm request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field string, kind FieldKind, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Kind: kind, Message: message})
}

// Has reports whether field was rejected with kind.
func (e *ValidationError) Has(field string, kind FieldKind) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Kind == kind {
			return true
		}
	}
	return false
}
