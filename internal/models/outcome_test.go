package models

import "testing"

func TestSummaryCounters(t *testing.T) {
	s := Summary{Replaced: 3, TooBig: 1, NotPrintable: 2, Failed: 1, WalkErrors: 2, Duplicates: 4}

	if got := s.Total(); got != 13 {
		t.Errorf("Total() = %d, want 13", got)
	}
	if got := s.Failures(); got != 3 {
		t.Errorf("Failures() = %d, want 3", got)
	}
}

func TestOutcomeIsFailure(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusReplaced, false},
		{StatusTooBig, false},
		{StatusNotPrintable, false},
		{StatusDuplicate, false},
		{StatusFailed, true},
		{StatusWalkError, true},
	}

	for _, tt := range tests {
		if got := (Outcome{Status: tt.status}).IsFailure(); got != tt.want {
			t.Errorf("%s: IsFailure() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
