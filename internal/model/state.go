package model

import (
	"errors"

	"github.com/google/uuid"
)

// Status is the top-level view state of a browser session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

var (
	// ErrBusy is returned when an analysis is started while another one is in flight.
	ErrBusy = errors.New("an analysis is already in progress")
	// ErrInvalidTransition is returned for transitions the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStale is returned when a finished analysis belongs to an attempt that was reset.
	ErrStale = errors.New("analysis attempt is no longer current")
)

// ViewState is the value held by the top-level state machine.
// Attempt is set only in StatusAnalyzing, AnalysisID only in StatusSuccess, and ErrKind and
// ErrDetail only in StatusError.
type ViewState struct {
	Status     Status
	Attempt    string
	AnalysisID string
	ErrKind    string
	ErrDetail  string
}

// IdleState is the initial state.
func IdleState() ViewState {
	return ViewState{Status: StatusIdle}
}

// Start moves idle to analyzing on file selection under a new attempt ID.
func (s ViewState) Start() (ViewState, error) {
	switch s.Status {
	case StatusIdle, "":
		return ViewState{Status: StatusAnalyzing, Attempt: uuid.NewString()}, nil
	case StatusAnalyzing:
		return s, ErrBusy
	default:
		return s, ErrInvalidTransition
	}
}

// Current reports whether the state is still analyzing under the given attempt.
func (s ViewState) Current(attempt string) error {
	if s.Status != StatusAnalyzing || s.Attempt != attempt {
		return ErrStale
	}
	return nil
}

// Succeed moves analyzing to success.
func (s ViewState) Succeed(analysisID string) (ViewState, error) {
	if s.Status != StatusAnalyzing {
		return s, ErrInvalidTransition
	}
	return ViewState{Status: StatusSuccess, AnalysisID: analysisID}, nil
}

// Fail moves analyzing to error.
func (s ViewState) Fail(kind, detail string) (ViewState, error) {
	if s.Status != StatusAnalyzing {
		return s, ErrInvalidTransition
	}
	return ViewState{Status: StatusError, ErrKind: kind, ErrDetail: detail}, nil
}

// Reset returns to idle from any state, dropping data and error.
func (s ViewState) Reset() ViewState {
	return IdleState()
}
