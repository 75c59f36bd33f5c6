package jobs

import (
	"sort"
	"time"
)

// RunState tracks one run's progress. Only the scheduler's coordinating
// goroutine mutates it.
type RunState struct {
	total     int
	completed int
	failed    map[int]string
	started   time.Time
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Completed int           `json:"completed" yaml:"completed"`
	Total     int           `json:"total" yaml:"total"`
	Failed    int           `json:"failed" yaml:"failed"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	// ETA is negative while no row has completed.
	ETA time.Duration `json:"eta" yaml:"eta"`
}

// RowFailure names a failed row and why.
type RowFailure struct {
	Row    int    `json:"row" yaml:"row"`
	Reason string `json:"reason" yaml:"reason"`
}

// NewRunState starts tracking a run of total rows.
func NewRunState(total int, started time.Time) *RunState {
	return &RunState{
		total:   total,
		failed:  make(map[int]string),
		started: started,
	}
}

// Resolve counts one row as done and records it if it failed. The
// completed count never exceeds total.
func (s *RunState) Resolve(o RowOutcome) {
	if s.completed < s.total {
		s.completed++
	}
	if o.IsError {
		s.failed[o.RowIndex] = o.ErrorReason
	}
}

// Completed returns the number of resolved rows.
func (s *RunState) Completed() int {
	return s.completed
}

// Total returns the number of rows in the run.
func (s *RunState) Total() int {
	return s.total
}

// FailedCount returns the number of failed rows.
func (s *RunState) FailedCount() int {
	return len(s.failed)
}

// Failures returns the failed rows ordered by row index.
func (s *RunState) Failures() []RowFailure {
	out := make([]RowFailure, 0, len(s.failed))
	for row, reason := range s.failed {
		out = append(out, RowFailure{Row: row, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// Snapshot reports progress as of now.
func (s *RunState) Snapshot(now time.Time) Progress {
	elapsed := now.Sub(s.started)
	eta, ok := EstimateETA(elapsed, s.completed, s.total)
	if !ok {
		eta = -1
	}
	return Progress{
		Completed: s.completed,
		Total:     s.total,
		Failed:    len(s.failed),
		Elapsed:   elapsed,
		ETA:       eta,
	}
}

// EstimateETA extrapolates the remaining time from the average time per
// completed row. ok is false when nothing has completed yet.
func EstimateETA(elapsed time.Duration, done, total int) (eta time.Duration, ok bool) {
	if done <= 0 {
		return 0, false
	}
	remaining := total - done
	if remaining <= 0 {
		return 0, true
	}
	return time.Duration(float64(elapsed) / float64(done) * float64(remaining)), true
}
