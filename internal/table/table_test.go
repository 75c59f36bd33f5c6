package table

import "testing"

func TestTable(t *testing.T) {
	tbl := New([]string{"Title", "Abstract"})
	tbl.AppendStrings("A", "first")
	tbl.AppendStrings("B")
	tbl.AppendStrings("", "third", "extra-cell")

	t.Run("len and columns", func(t *testing.T) {
		if tbl.Len() != 3 {
			t.Errorf("Len() = %d, want 3", tbl.Len())
		}
		if cols := tbl.Columns(); len(cols) != 2 || cols[0] != "Title" {
			t.Errorf("Columns() = %v", cols)
		}
	})

	t.Run("value lookups", func(t *testing.T) {
		tests := []struct {
			row    int
			column string
			want   string
			wantOK bool
		}{
			{0, "Title", "A", true},
			{0, "Abstract", "first", true},
			{1, "Abstract", "", false}, // short row
			{2, "Title", "", false},    // empty cell
			{0, "Missing", "", false},
			{9, "Title", "", false},
		}
		for _, tt := range tests {
			got, ok := tbl.Value(tt.row, tt.column)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Value(%d, %q) = (%q, %v), want (%q, %v)", tt.row, tt.column, got, ok, tt.want, tt.wantOK)
			}
		}
	})

	t.Run("missing columns", func(t *testing.T) {
		missing := tbl.MissingColumns([]string{"Title", "Keywords"})
		if len(missing) != 1 || missing[0] != "Keywords" {
			t.Errorf("MissingColumns() = %v", missing)
		}
	})
}

func TestEnsureColumn(t *testing.T) {
	t.Run("appends new column", func(t *testing.T) {
		tbl := New([]string{"Title"})
		tbl.AppendStrings("A")
		tbl.AppendStrings("B")

		tbl.EnsureColumn("AI_Output")
		if !tbl.HasColumn("AI_Output") {
			t.Fatal("column not added")
		}
		for i := 0; i < tbl.Len(); i++ {
			v, ok := tbl.Value(i, "AI_Output")
			if !ok || v != "" {
				t.Errorf("row %d = (%q, %v), want empty present value", i, v, ok)
			}
		}
		if rec := tbl.Record(0); len(rec) != 2 {
			t.Errorf("Record(0) = %v, want 2 cells", rec)
		}
	})

	t.Run("resets existing column", func(t *testing.T) {
		tbl := New([]string{"Title", "AI_Output"})
		tbl.AppendStrings("A", "stale|value")

		tbl.EnsureColumn("AI_Output")
		if v, _ := tbl.Value(0, "AI_Output"); v != "" {
			t.Errorf("stale value kept: %q", v)
		}
		if len(tbl.Columns()) != 2 {
			t.Errorf("column duplicated: %v", tbl.Columns())
		}
	})
}

func TestSet(t *testing.T) {
	tbl := New([]string{"Title"})
	tbl.AppendStrings("A")

	if err := tbl.Set(0, "Title", "Z"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, _ := tbl.Value(0, "Title"); v != "Z" {
		t.Errorf("Value = %q, want Z", v)
	}
	if err := tbl.Set(1, "Title", "Z"); err == nil {
		t.Error("expected out-of-range error")
	}
	if err := tbl.Set(0, "Nope", "Z"); err == nil {
		t.Error("expected unknown column error")
	}
}
