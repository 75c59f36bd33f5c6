package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for a path whose extension is not
// .xlsx, .xlsm or .csv.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Loader reads a table from a path.
type Loader interface {
	Load(path string) (*Table, error)
}

// Saver writes a table to a path.
type Saver interface {
	Save(t *Table, path string) error
}

// Files loads and saves tables chosen by file extension: .xlsx/.xlsm via
// excelize, .csv via encoding/csv. The first row is the header.
type Files struct {
	// Sheet selects the worksheet to read; empty means the first one.
	// Saved workbooks use it as the sheet name too (default "Sheet1").
	Sheet string

	Logger *slog.Logger
}

var (
	_ Loader = Files{}
	_ Saver  = Files{}
)

func (f Files) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Load reads path. Every failure is a *LoadError.
func (f Files) Load(path string) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		t, err = f.loadXLSX(path)
	case ".csv":
		t, err = loadCSV(path)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	f.logger().Debug("table loaded", "path", path, "rows", t.Len(), "columns", len(t.columns))
	return t, nil
}

// Save writes t to path through a temp file in the same directory and a
// rename, so a failed save never leaves a truncated output behind.
// Every failure is a *SaveError.
func (f Files) Save(t *Table, path string) error {
	ext := strings.ToLower(filepath.Ext(path))

	var buf bytes.Buffer
	var err error
	switch ext {
	case ".xlsx", ".xlsm":
		err = f.encodeXLSX(t, &buf)
	case ".csv":
		err = encodeCSV(t, &buf)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}

	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	f.logger().Debug("table saved", "path", path, "rows", t.Len())
	return nil
}

func (f Files) loadXLSX(path string) (*Table, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheet := f.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRecords(rows)
}

func (f Files) encodeXLSX(t *Table, w io.Writer) error {
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := "Sheet1"
	if f.Sheet != "" && f.Sheet != sheet {
		if err := wb.SetSheetName(sheet, f.Sheet); err != nil {
			return err
		}
		sheet = f.Sheet
	}

	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	writeRow := func(r int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		return sw.SetRow(cell, row)
	}

	if err := writeRow(1, t.columns); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if err := writeRow(i+2, t.Record(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return wb.Write(w)
}

func loadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return fromRecords(records)
}

func encodeCSV(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(t.Record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// fromRecords treats the first record as the header.
func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("table has no header row")
	}
	t := New(records[0])
	for _, rec := range records[1:] {
		t.AppendStrings(rec...)
	}
	return t, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tabula-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
