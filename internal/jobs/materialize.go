package jobs

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/tabula/internal/table"
)

// DefaultOutputColumn is the column results are written to.
const DefaultOutputColumn = "AI_Output"

// Materializer writes outcomes into a table and persists it.
type Materializer struct {
	Column string
	Saver  table.Saver
	Logger *slog.Logger
}

// Prepare appends the output column, or resets it when the table already
// has one, so every row starts empty.
func (m Materializer) Prepare(t *table.Table) {
	t.EnsureColumn(m.column())
}

// Apply writes each outcome's text at its row index. Order of outcomes
// does not matter.
func (m Materializer) Apply(t *table.Table, outcomes []RowOutcome) error {
	col := m.column()
	if !t.HasColumn(col) {
		t.EnsureColumn(col)
	}
	for _, o := range outcomes {
		if err := t.Set(o.RowIndex, col, o.OutputText); err != nil {
			return fmt.Errorf("apply row %d: %w", o.RowIndex, err)
		}
	}
	return nil
}

// Save persists t to path. Failures come back as *table.SaveError.
func (m Materializer) Save(t *table.Table, path string) error {
	if m.Saver == nil {
		return &table.SaveError{Path: path, Err: fmt.Errorf("no saver configured")}
	}
	if err := m.Saver.Save(t, path); err != nil {
		return err
	}
	m.logger().Info("output saved", "path", path, "rows", t.Len())
	return nil
}

func (m Materializer) column() string {
	if m.Column == "" {
		return DefaultOutputColumn
	}
	return m.Column
}

func (m Materializer) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// Summary is the operator-facing status line for a finished run.
func Summary(status Status, total, processed, failed int) string {
	switch status {
	case StatusCancelled:
		return fmt.Sprintf("cancelled by operator: processed %d/%d rows", processed, total)
	case StatusCompleted:
		return fmt.Sprintf("completed: %d rows, %d failed", total, failed)
	default:
		return fmt.Sprintf("%s: processed %d/%d rows, %d failed", status, processed, total, failed)
	}
}
