package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")
	ErrRetrieval       = errors.New("retrieval failure")
	ErrMalformedOutput = errors.New("malformed model output")
	ErrSchemaViolation = errors.New("model output schema violation")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// rawSnippetLimit caps how much raw model output an error carries for diagnosis.
const rawSnippetLimit = 500

// MalformedOutputError is returned when model output cannot be parsed as JSON.
// Raw holds a bounded prefix of the content the model actually produced.
type MalformedOutputError struct {
	Flavor Flavor
	Raw    string
	Cause  error
}

func NewMalformedOutputError(flavor Flavor, raw string, cause error) *MalformedOutputError {
	if len(raw) > rawSnippetLimit {
		raw = raw[:rawSnippetLimit]
	}
	return &MalformedOutputError{Flavor: flavor, Raw: raw, Cause: cause}
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("parse %s output: %v: raw=%q", e.Flavor, e.Cause, e.Raw)
}

func (e *MalformedOutputError) Unwrap() error {
	return ErrMalformedOutput
}
