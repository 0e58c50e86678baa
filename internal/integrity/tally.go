package integrity

import (
	"fmt"
	"strings"
)

// rowCheck accumulates the issues of one row in check order.
type rowCheck struct {
	rowNumber int
	entityKey string
	issues    []ValidationIssue
}

func newRowCheck(rowNumber int, entityKey string) *rowCheck {
	return &rowCheck{rowNumber: rowNumber, entityKey: entityKey}
}

func (c *rowCheck) errorf(field, format string, args ...any) {
	c.add(field, SeverityError, fmt.Sprintf(format, args...))
}

func (c *rowCheck) warnf(field, format string, args ...any) {
	c.add(field, SeverityWarning, fmt.Sprintf(format, args...))
}

func (c *rowCheck) add(field string, sev Severity, msg string) {
	c.issues = append(c.issues, ValidationIssue{
		RowNumber: c.rowNumber,
		Field:     field,
		EntityKey: c.entityKey,
		Severity:  sev,
		Message:   msg,
	})
}

// severity returns the dominant severity of the row, or "" when it is valid.
func (c *rowCheck) severity() Severity {
	var sev Severity
	for _, is := range c.issues {
		if is.Severity == SeverityError {
			return SeverityError
		}
		sev = SeverityWarning
	}
	return sev
}

// sheetTally builds a SheetValidationResult. Each row is classified once by
// its dominant severity; all issues are kept in file order.
type sheetTally struct {
	classes []Severity
	issues  []ValidationIssue
}

// addRow records a finished row and returns its position in the tally.
func (t *sheetTally) addRow(c *rowCheck) int {
	t.classes = append(t.classes, c.severity())
	t.issues = append(t.issues, c.issues...)
	return len(t.classes) - 1
}

// addStructural records an issue that belongs to the batch rather than a row.
func (t *sheetTally) addStructural(is ValidationIssue) {
	t.issues = append(t.issues, is)
}

// escalate reclassifies a recorded row as an error row.
func (t *sheetTally) escalate(pos int) {
	if pos >= 0 && pos < len(t.classes) {
		t.classes[pos] = SeverityError
	}
}

func (t *sheetTally) result() SheetValidationResult {
	res := SheetValidationResult{
		RowsRead: len(t.classes),
		Issues:   t.issues,
	}
	if res.Issues == nil {
		res.Issues = []ValidationIssue{}
	}
	for _, c := range t.classes {
		switch c {
		case SeverityError:
			res.RowsWithErrors++
		case SeverityWarning:
			res.RowsWithWarnings++
		default:
			res.RowsValid++
		}
	}
	return res
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// firstNonBlank returns the first value that is not blank.
func firstNonBlank(values ...string) string {
	for _, v := range values {
		if !isBlank(v) {
			return v
		}
	}
	return ""
}

// joinRows formats row numbers for messages, e.g. "2, 5, 9".
func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprint(r)
	}
	return strings.Join(parts, ", ")
}
