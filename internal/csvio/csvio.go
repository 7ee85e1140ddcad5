// Package csvio converts inventory records to and from flat CSV files.
//
// Exports always carry a header row. Imports match headers by name, ignoring
// case, surrounding space and the difference between spaces and
// underscores, so a column order or a spreadsheet's "Batch Number" header
// does not matter. An import is all-or-nothing: the first bad row fails it.
package csvio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
)

// DateLayout is used for calendar dates in exports and accepted on import.
const DateLayout = "2006-01-02"

// RowError reports the first row an import rejected.
type RowError struct {
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ErrNoHeader is returned for an empty file.
var ErrNoHeader = errors.New("csv file has no header row")

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(strings.ReplaceAll(h, "_", " ")), "_")
}

// row is one data record keyed by normalised header.
type row struct {
	line  int
	cells map[string]string
}

func (r row) str(field string) string {
	return strings.TrimSpace(r.cells[field])
}

func (r row) fail(field string, err error) error {
	return &RowError{Line: r.line, Field: field, Err: err}
}

// float parses a number; an empty cell is 0.
func (r row) float(field string) (float64, error) {
	s := r.str(field)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, r.fail(field, fmt.Errorf("not a number: %q", s))
	}
	return f, nil
}

func (r row) optFloat(field string) (*float64, error) {
	if r.str(field) == "" {
		return nil, nil
	}
	f, err := r.float(field)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// date accepts 2006-01-02 or RFC 3339; an empty cell is nil.
func (r row) date(field string) (*time.Time, error) {
	s := r.str(field)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, r.fail(field, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", s))
	}
	t = t.UTC()
	return &t, nil
}

func (r row) bool(field string) (bool, error) {
	switch strings.ToLower(r.str(field)) {
	case "", "false", "no", "n", "0":
		return false, nil
	case "true", "yes", "y", "1":
		return true, nil
	}
	return false, r.fail(field, fmt.Errorf("expected true or false, got %q", r.str(field)))
}

// readRows parses r and calls fn for every non-blank record.
func readRows(r io.Reader, fn func(row) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ErrNoHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = headerKey(h)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return &RowError{Line: pe.Line, Err: pe.Err}
			}
			return fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		cells := make(map[string]string, len(keys))
		for i, k := range keys {
			if i < len(rec) && k != "" {
				cells[k] = rec[i]
			}
		}
		if err := fn(row{line: line, cells: cells}); err != nil {
			return err
		}
	}
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// NormalizeGHSField turns an imported GHS cell into a canonical set. The cell
// may hold a JSON array, a comma-separated list, or a single symbol.
func NormalizeGHSField(raw string) (models.GHSSymbols, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.GHSSymbols{}, nil
	}

	var parts []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &parts) == nil {
		return models.ParseGHSSymbols(parts)
	}
	if strings.Contains(raw, ",") {
		return models.ParseGHSSymbols(strings.Split(raw, ","))
	}
	return models.ParseGHSSymbols([]string{raw})
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// writeAll writes header and records and flushes.
func writeAll(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
