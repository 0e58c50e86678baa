package integrity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity classifies a finding. Errors block an import, warnings never do.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Action is the operation an import row asks the executor to perform.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is one of CREATE, UPDATE or DELETE.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ParseAction normalizes a raw spreadsheet cell into an Action.
// Unknown values are kept (upper-cased) so validators can report them.
func ParseAction(raw string) Action {
	return Action(strings.ToUpper(strings.TrimSpace(raw)))
}

// UnmarshalText applies ParseAction, so JSON batches and workbook cells
// are normalized the same way.
func (a *Action) UnmarshalText(text []byte) error {
	*a = ParseAction(string(text))
	return nil
}

// Sheet identifies which import sheet a row came from.
type Sheet string

const (
	SheetCustomers Sheet = "customers"
	SheetContacts  Sheet = "contacts"
	SheetPayers    Sheet = "payers"
)

// Row is one parsed import row. It is implemented by exactly
// CustomerRow, ContactRow and PayerRow.
type Row interface {
	Sheet() Sheet
	isRow()
}

// CustomerRow is a row from the customer sheet.
type CustomerRow struct {
	RowNumber         int    `json:"rowNumber"`
	Action            Action `json:"action"`
	Name              string `json:"name"`
	BCCustomerNumber  string `json:"bcCustomerNumber"`
	CustomerCategory  string `json:"customerCategory"`
	CustomerTypeGroup string `json:"customerTypeGroup,omitempty"`
}

// ContactRow is a row from the contact sheet.
type ContactRow struct {
	RowNumber               int      `json:"rowNumber"`
	Action                  Action   `json:"action"`
	VoyadoID                string   `json:"voyadoId"`
	FirstName               string   `json:"firstName"`
	LastName                string   `json:"lastName"`
	Email                   string   `json:"email"`
	ContactType             string   `json:"contactType"`
	IsTeacher               bool     `json:"isTeacher"`
	LinkedBCCustomerNumbers []string `json:"linkedBcCustomerNumbers,omitempty"`
}

// PayerRow is a directed edge: the customer is paid for by the payer.
type PayerRow struct {
	RowNumber        int    `json:"rowNumber"`
	Action           Action `json:"action"`
	CustomerBCNumber string `json:"customerBcNumber"`
	PayerBCNumber    string `json:"payerBcNumber"`
}

func (CustomerRow) Sheet() Sheet { return SheetCustomers }
func (ContactRow) Sheet() Sheet  { return SheetContacts }
func (PayerRow) Sheet() Sheet    { return SheetPayers }

func (CustomerRow) isRow() {}
func (ContactRow) isRow()  {}
func (PayerRow) isRow()    {}

// ImportBatch holds all rows of one import file.
type ImportBatch struct {
	Customers []CustomerRow `json:"customers"`
	Contacts  []ContactRow  `json:"contacts"`
	Payers    []PayerRow    `json:"payers"`
}

// Add appends a row to the sheet it belongs to.
func (b *ImportBatch) Add(row Row) {
	switch r := row.(type) {
	case CustomerRow:
		b.Customers = append(b.Customers, r)
	case ContactRow:
		b.Contacts = append(b.Contacts, r)
	case PayerRow:
		b.Payers = append(b.Payers, r)
	default:
		panic(fmt.Sprintf("integrity: unknown row type %T for sheet %s", row, row.Sheet()))
	}
}

// Len returns the total number of rows across all sheets.
func (b ImportBatch) Len() int {
	return len(b.Customers) + len(b.Contacts) + len(b.Payers)
}

// ValidationIssue is a single finding attributed to a row.
// Structural findings that belong to the whole batch use RowNumber 0.
type ValidationIssue struct {
	RowNumber int      `json:"rowNumber"`
	Field     string   `json:"field"`
	EntityKey string   `json:"entityKey"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// SheetValidationResult summarizes one sheet.
// RowsValid + RowsWithWarnings + RowsWithErrors == RowsRead always holds.
type SheetValidationResult struct {
	RowsRead         int               `json:"rowsRead"`
	RowsValid        int               `json:"rowsValid"`
	RowsWithWarnings int               `json:"rowsWithWarnings"`
	RowsWithErrors   int               `json:"rowsWithErrors"`
	Issues           []ValidationIssue `json:"issues"`
}

// IssuesBySeverity returns the issues with the given severity in file order.
func (r SheetValidationResult) IssuesBySeverity(sev Severity) []ValidationIssue {
	var out []ValidationIssue
	for _, is := range r.Issues {
		if is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}

// ValidationResult is the hand-off to the import executor.
// The executor must refuse to run when CanImport is false.
type ValidationResult struct {
	RunID       string                `json:"runId"`
	ValidatedAt time.Time             `json:"validatedAt"`
	Customers   SheetValidationResult `json:"customers"`
	Contacts    SheetValidationResult `json:"contacts"`
	Payers      SheetValidationResult `json:"payers"`
	CanImport   bool                  `json:"canImport"`
}

// Sheets returns the per-sheet results keyed by sheet.
func (r *ValidationResult) Sheets() map[Sheet]SheetValidationResult {
	return map[Sheet]SheetValidationResult{
		SheetCustomers: r.Customers,
		SheetContacts:  r.Contacts,
		SheetPayers:    r.Payers,
	}
}

// Summary renders a short human-readable report.
func (r *ValidationResult) Summary() string {
	var b strings.Builder
	for _, s := range []struct {
		name string
		res  SheetValidationResult
	}{
		{"Kunder", r.Customers},
		{"Kontakter", r.Contacts},
		{"Betalare", r.Payers},
	} {
		fmt.Fprintf(&b, "%-10s read=%d valid=%d warnings=%d errors=%d\n",
			s.name, s.res.RowsRead, s.res.RowsValid, s.res.RowsWithWarnings, s.res.RowsWithErrors)
	}
	if r.CanImport {
		b.WriteString("import allowed\n")
	} else {
		b.WriteString("import blocked\n")
	}
	return b.String()
}

// canImport reports whether no sheet has error rows.
func canImport(sheets ...SheetValidationResult) bool {
	for _, s := range sheets {
		if s.RowsWithErrors > 0 {
			return false
		}
	}
	return true
}

// CustomerRef is an existing customer as seen by the reference index.
type CustomerRef struct {
	ID               string `json:"id"`
	BCCustomerNumber string `json:"bcCustomerNumber"`
	Name             string `json:"name"`
	Category         string `json:"category"`
}

// ContactRef is an existing contact as seen by the reference index.
type ContactRef struct {
	ID        string `json:"id"`
	VoyadoID  string `json:"voyadoId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Merged    bool   `json:"merged,omitempty"`
}

// Name returns the contact's display name.
func (c ContactRef) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// CustomerRecord carries every externally visible identifier of a customer.
type CustomerRecord struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	BCCustomerNumber string  `json:"bcCustomerNumber,omitempty"`
	Category         string  `json:"category,omitempty"`
	TypeGroup        string  `json:"typeGroup,omitempty"`
	NorceCode        string  `json:"norceCode,omitempty"`
	SitooNumber      string  `json:"sitooNumber,omitempty"`
	PayerCustomerID  *string `json:"payerCustomerId,omitempty"`
}

// ContactRecord is a non-merged contact as seen by the scanner.
type ContactRecord struct {
	ID        string `json:"id"`
	VoyadoID  string `json:"voyadoId,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	IsTeacher bool   `json:"isTeacher"`
}

// TeacherAssignment links a teacher contact to a school customer.
type TeacherAssignment struct {
	TeacherID string `json:"teacherId"`
	SchoolID  string `json:"schoolId"`
	Active    bool   `json:"active"`
}

// RecordStore is the read side of the CRM database used by the engine.
type RecordStore interface {
	// ExistingCustomers returns customers that have a business key.
	ExistingCustomers(ctx context.Context) ([]CustomerRef, error)
	// ExistingContacts returns contacts with a Voyado ID, excluding merged ones.
	ExistingContacts(ctx context.Context) ([]ContactRef, error)
	TeacherAssignments(ctx context.Context, activeOnly bool) ([]TeacherAssignment, error)
	CustomerIdentifiers(ctx context.Context) ([]CustomerRecord, error)
	ScanContacts(ctx context.Context) ([]ContactRecord, error)
}
