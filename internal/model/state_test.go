package model

import (
	"errors"
	"testing"
)

func TestStateTransitions(t *testing.T) {
	s := IdleState()

	s, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Status != StatusAnalyzing || s.Attempt == "" {
		t.Fatalf("expected analyzing with an attempt, got %+v", s)
	}

	if _, err := s.Start(); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start should be busy, got %v", err)
	}

	ok, err := s.Succeed("a1")
	if err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if ok.Status != StatusSuccess || ok.AnalysisID != "a1" {
		t.Errorf("unexpected success state %+v", ok)
	}

	failed, err := s.Fail("upstream", "boom")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != StatusError || failed.ErrKind != "upstream" || failed.AnalysisID != "" {
		t.Errorf("unexpected error state %+v", failed)
	}
}

func TestInvalidTransitions(t *testing.T) {
	idle := IdleState()
	if _, err := idle.Succeed("x"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("idle -> success should fail, got %v", err)
	}
	if _, err := idle.Fail("k", "d"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("idle -> error should fail, got %v", err)
	}

	success := ViewState{Status: StatusSuccess, AnalysisID: "a"}
	if _, err := success.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("success -> analyzing should fail, got %v", err)
	}
}

func TestResetFromAnyState(t *testing.T) {
	states := []ViewState{
		IdleState(),
		{Status: StatusAnalyzing},
		{Status: StatusSuccess, AnalysisID: "a"},
		{Status: StatusError, ErrKind: "parse", ErrDetail: "bad"},
	}
	for _, s := range states {
		t.Run(string(s.Status), func(t *testing.T) {
			got := s.Reset()
			if got != IdleState() {
				t.Errorf("Reset() = %+v, want idle with no data", got)
			}
		})
	}
}

func TestCurrentAttempt(t *testing.T) {
	s, err := IdleState().Start()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Current(s.Attempt); err != nil {
		t.Errorf("Current(own attempt) = %v", err)
	}
	if err := s.Current("other"); !errors.Is(err, ErrStale) {
		t.Errorf("Current(other) = %v, want ErrStale", err)
	}

	// An analysis that finishes after a reset and a new upload must not land.
	old := s.Attempt
	s, _ = s.Reset().Start()
	if err := s.Current(old); !errors.Is(err, ErrStale) {
		t.Errorf("Current(old attempt) = %v, want ErrStale", err)
	}
	if err := IdleState().Current(old); !errors.Is(err, ErrStale) {
		t.Errorf("idle Current = %v, want ErrStale", err)
	}
}
