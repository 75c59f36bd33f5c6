package jobs

import (
	"testing"
	"time"
)

func TestEstimateETA(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		done    int
		total   int
		want    time.Duration
		wantOK  bool
	}{
		{"nothing done", 5 * time.Second, 0, 10, 0, false},
		{"half done", 10 * time.Second, 5, 10, 10 * time.Second, true},
		{"one of four", 2 * time.Second, 1, 4, 6 * time.Second, true},
		{"all done", 10 * time.Second, 10, 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateETA(tt.elapsed, tt.done, tt.total)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("EstimateETA() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRunState(t *testing.T) {
	start := time.Unix(1700000000, 0)
	s := NewRunState(3, start)

	if p := s.Snapshot(start.Add(time.Second)); p.ETA >= 0 {
		t.Errorf("ETA before any completion = %v, want negative", p.ETA)
	}

	s.Resolve(RowOutcome{RowIndex: 2, IsError: true, ErrorReason: ReasonEmptyResponse})
	s.Resolve(RowOutcome{RowIndex: 0})
	s.Resolve(RowOutcome{RowIndex: 1, IsError: true, ErrorReason: ReasonMissingDelimiter})
	s.Resolve(RowOutcome{RowIndex: 1}) // over-resolution must not exceed total

	if s.Completed() != 3 {
		t.Errorf("Completed() = %d, want 3", s.Completed())
	}
	failures := s.Failures()
	if len(failures) != 2 || failures[0].Row != 1 || failures[1].Row != 2 {
		t.Errorf("Failures() = %+v, want rows 1 and 2 in order", failures)
	}

	p := s.Snapshot(start.Add(3 * time.Second))
	if p.Completed != 3 || p.Failed != 2 || p.ETA != 0 {
		t.Errorf("Snapshot() = %+v", p)
	}
}
