package analysis

import (
	"errors"
	"fmt"

	"github.com/mkkukul/Elif-Hoca/internal/llm"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Kind classifies analysis failures. The kind selects the user-facing message.
type Kind string

const (
	KindConfig          Kind = "config"
	KindUpstream        Kind = "upstream"
	KindEmptyResponse   Kind = "empty_response"
	KindNoJSON          Kind = "no_json"
	KindParse           Kind = "parse"
	KindSchema          Kind = "schema"
	KindUnsupportedFile Kind = "unsupported_file"
	KindTooLarge        Kind = "too_large"
	KindBusy            Kind = "busy"
	KindInternal        Kind = "internal"
)

// Error is a typed analysis failure.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf classifies any error. Untyped errors are treated as upstream failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, model.ErrBusy):
		return KindBusy
	case errors.Is(err, llm.ErrMissingAPIKey):
		return KindConfig
	case errors.Is(err, llm.ErrEmptyResponse):
		return KindEmptyResponse
	case errors.Is(err, llm.ErrNoJSON):
		return KindNoJSON
	case errors.Is(err, llm.ErrUnsupportedDocument):
		return KindUnsupportedFile
	default:
		return KindUpstream
	}
}

// Detail returns the wrapped error text, suitable for a secondary line in the error panel.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
