// internal/app/system/csvutil/students.go
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// StudentHeader is the column order written by WriteStudentsCSV and assumed
// when a file has no header row.
var StudentHeader = []string{"student_number", "first_name", "last_name", "grade_level", "status"}

// StudentCSVRow is one normalized roster line.
type StudentCSVRow struct {
	StudentNumber string
	FirstName     string
	LastName      string
	GradeLevel    string
	Status        string // canonical lower-case; empty means enrolled
}

// Student returns the row as an unscoped models.Student.
func (r StudentCSVRow) Student() models.Student {
	return models.Student{
		StudentNumber: r.StudentNumber,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		GradeLevel:    r.GradeLevel,
		Status:        r.Status,
	}
}

// RowError describes one rejected line. Line is 1-based and counts the
// header.
type RowError struct {
	Line   int      `json:"line"`
	Reason string   `json:"reason"`
	Raw    []string `json:"raw,omitempty"`
}

// ParseOptions tunes parsing.
type ParseOptions struct {
	MaxRows int // 0 → unlimited
}

// DefaultParseOptions applies no row limit.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{}
}

// ParseResult holds the good rows and every problem found.
type ParseResult struct {
	Rows   []StudentCSVRow
	Errors []RowError
}

// HasErrors reports whether any row was rejected.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// FormatErrors renders up to maxShow problems as plain text lines.
func (r *ParseResult) FormatErrors(maxShow int) string {
	if len(r.Errors) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s) are invalid:\n", len(r.Errors))
	show := len(r.Errors)
	if maxShow > 0 && show > maxShow {
		show = maxShow
	}
	for _, e := range r.Errors[:show] {
		fmt.Fprintf(&b, "  line %d: %s\n", e.Line, e.Reason)
	}
	if rest := len(r.Errors) - show; rest > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", rest)
	}
	return b.String()
}

// ErrTooManyRows is returned when a file exceeds ParseOptions.MaxRows.
var ErrTooManyRows = errors.New("too many rows")

// ParseStudentsCSV reads a roster. A header row is optional; when present,
// columns are matched by name in any order.
func ParseStudentsCSV(r io.Reader, opts ParseOptions) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return &ParseResult{}, nil
	}
	if len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	index := positional()
	start := 0
	if isHeader(records[0]) {
		index = headerIndex(records[0])
		start = 1
	}

	var maps []map[string]string
	for _, rec := range records[start:] {
		m := map[string]string{}
		for col, i := range index {
			if i < len(rec) {
				m[col] = rec[i]
			}
		}
		maps = append(maps, m)
	}
	return fromMaps(maps, start+1, opts)
}

// FromRecords validates rows already keyed by column name, such as the
// output of a spreadsheet reader. Lines are numbered from 2 to account for
// the header.
func FromRecords(recs []map[string]string, opts ParseOptions) (*ParseResult, error) {
	return fromMaps(recs, 2, opts)
}

func fromMaps(recs []map[string]string, firstLine int, opts ParseOptions) (*ParseResult, error) {
	res := &ParseResult{}
	seen := map[string]int{}
	count := 0
	for i, m := range recs {
		line := firstLine + i
		row := StudentCSVRow{
			StudentNumber: strings.TrimSpace(m["student_number"]),
			FirstName:     strings.TrimSpace(m["first_name"]),
			LastName:      strings.TrimSpace(m["last_name"]),
			GradeLevel:    strings.TrimSpace(m["grade_level"]),
			Status:        strings.ToLower(strings.TrimSpace(m["status"])),
		}
		if row == (StudentCSVRow{}) {
			continue
		}
		count++
		if opts.MaxRows > 0 && count > opts.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
		}
		raw := []string{row.StudentNumber, row.FirstName, row.LastName, row.GradeLevel, row.Status}

		var reasons []string
		if row.StudentNumber == "" {
			reasons = append(reasons, "missing student number")
		} else if prev, dup := seen[row.StudentNumber]; dup {
			reasons = append(reasons, fmt.Sprintf("student number %s already used on line %d", row.StudentNumber, prev))
		} else {
			seen[row.StudentNumber] = line
		}
		if row.FirstName == "" {
			reasons = append(reasons, "missing first name")
		}
		if row.LastName == "" {
			reasons = append(reasons, "missing last name")
		}
		switch row.Status {
		case "", models.StudentEnrolled, models.StudentWithdrawn, models.StudentGraduated:
		default:
			reasons = append(reasons, fmt.Sprintf("unknown status %q", row.Status))
		}

		if len(reasons) > 0 {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: strings.Join(reasons, "; "), Raw: raw})
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// WriteStudentsCSV writes a header and one line per student.
func WriteStudentsCSV(w io.Writer, students []models.Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StudentHeader); err != nil {
		return err
	}
	for _, s := range students {
		if err := cw.Write([]string{s.StudentNumber, s.FirstName, s.LastName, s.GradeLevel, s.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func canonical(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	switch h {
	case "number", "student_no", "student_id_number":
		return "student_number"
	case "first", "given_name":
		return "first_name"
	case "last", "surname", "family_name":
		return "last_name"
	case "grade":
		return "grade_level"
	}
	return h
}

func isHeader(rec []string) bool {
	for _, c := range rec {
		if canonical(c) == "student_number" {
			return true
		}
	}
	return false
}

func headerIndex(rec []string) map[string]int {
	idx := map[string]int{}
	for i, c := range rec {
		col := canonical(c)
		if _, dup := idx[col]; !dup {
			idx[col] = i
		}
	}
	return idx
}

func positional() map[string]int {
	idx := make(map[string]int, len(StudentHeader))
	for i, col := range StudentHeader {
		idx[col] = i
	}
	return idx
}
