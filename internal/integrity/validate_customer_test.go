package integrity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyIndex() *ReferenceIndex {
	return NewReferenceIndex(nil, nil, time.Time{})
}

func indexWithCustomers(refs ...CustomerRef) *ReferenceIndex {
	return NewReferenceIndex(refs, nil, time.Time{})
}

func requireTallyInvariant(t *testing.T, res SheetValidationResult) {
	t.Helper()
	require.Equal(t, res.RowsRead, res.RowsValid+res.RowsWithWarnings+res.RowsWithErrors,
		"rows valid/warnings/errors must add up to rows read")
}

func issuesContaining(issues []ValidationIssue, substr string) []ValidationIssue {
	var out []ValidationIssue
	for _, is := range issues {
		if strings.Contains(is.Message, substr) {
			out = append(out, is)
		}
	}
	return out
}

func issuesForRow(issues []ValidationIssue, row int) []ValidationIssue {
	var out []ValidationIssue
	for _, is := range issues {
		if is.RowNumber == row {
			out = append(out, is)
		}
	}
	return out
}

func acme() CustomerRow {
	return CustomerRow{
		RowNumber:         1,
		Action:            ActionCreate,
		Name:              "Acme",
		BCCustomerNumber:  "BC-1",
		CustomerCategory:  "Företag",
		CustomerTypeGroup: "B2B",
	}
}

func TestValidateCustomers_ValidCreate(t *testing.T) {
	res := ValidateCustomers([]CustomerRow{acme()}, emptyIndex())

	requireTallyInvariant(t, res)
	assert.Equal(t, 1, res.RowsRead)
	assert.Equal(t, 1, res.RowsValid)
	assert.Equal(t, 0, res.RowsWithErrors)
	assert.Empty(t, res.Issues)
}

func TestValidateCustomers_UnknownCategory(t *testing.T) {
	row := acme()
	row.CustomerCategory = "Unknown"

	res := ValidateCustomers([]CustomerRow{row}, emptyIndex())

	requireTallyInvariant(t, res)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, SeverityError, res.Issues[0].Severity)
	assert.Equal(t, "customerCategory", res.Issues[0].Field)
	assert.Equal(t, "BC-1", res.Issues[0].EntityKey)
	assert.Equal(t, 1, res.RowsWithErrors)
}

func TestValidateCustomers_CreateExistingKey(t *testing.T) {
	idx := indexWithCustomers(CustomerRef{ID: "c1", BCCustomerNumber: "BC-1", Name: "Acme", Category: "Företag"})

	tests := []struct {
		name string
		row  CustomerRow
	}{
		{"otherwise valid", acme()},
		{"also missing name and bad category", CustomerRow{RowNumber: 1, Action: ActionCreate, BCCustomerNumber: "BC-1", CustomerCategory: "??"}},
		{"also duplicated", acme()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []CustomerRow{tt.row}
			if tt.name == "also duplicated" {
				dup := acme()
				dup.RowNumber = 2
				rows = append(rows, dup)
			}

			res := ValidateCustomers(rows, idx)

			requireTallyInvariant(t, res)
			exists := issuesContaining(issuesForRow(res.Issues, 1), "finns redan")
			require.Len(t, exists, 1)
			assert.Equal(t, SeverityError, exists[0].Severity)
			assert.Equal(t, "bcCustomerNumber", exists[0].Field)
		})
	}
}

func TestValidateCustomers_DuplicatedInFile(t *testing.T) {
	first := acme()
	second := acme()
	second.RowNumber = 2
	second.Name = "Acme AB"
	third := acme()
	third.RowNumber = 3
	third.BCCustomerNumber = "BC-3"

	res := ValidateCustomers([]CustomerRow{first, second, third}, emptyIndex())

	requireTallyInvariant(t, res)
	for _, row := range []int{1, 2} {
		dups := issuesContaining(issuesForRow(res.Issues, row), "duplicerat i filen")
		require.Len(t, dups, 1, "row %d", row)
		assert.Equal(t, SeverityError, dups[0].Severity)
		assert.Contains(t, dups[0].Message, "rad 1, 2")
	}
	assert.Empty(t, issuesForRow(res.Issues, 3))
	assert.Equal(t, 2, res.RowsWithErrors)
	assert.Equal(t, 1, res.RowsValid)
}

func TestValidateCustomers_UpdateAndDeleteDoNotCountAsDuplicates(t *testing.T) {
	idx := indexWithCustomers(CustomerRef{ID: "c1", BCCustomerNumber: "BC-1", Category: "Företag"})
	create := acme()
	create.BCCustomerNumber = "BC-9"
	update := acme()
	update.RowNumber = 2
	update.Action = ActionUpdate
	del := acme()
	del.RowNumber = 3
	del.Action = ActionDelete

	res := ValidateCustomers([]CustomerRow{create, update, del}, idx)

	requireTallyInvariant(t, res)
	assert.Empty(t, res.Issues)
	assert.Equal(t, 3, res.RowsValid)
}

func TestValidateCustomers_Rules(t *testing.T) {
	idx := indexWithCustomers(CustomerRef{ID: "c1", BCCustomerNumber: "BC-1", Category: "Företag"})

	tests := []struct {
		name      string
		mutate    func(r *CustomerRow)
		wantField string
		wantSev   Severity
	}{
		{"invalid action", func(r *CustomerRow) { r.Action = "MERGE" }, "action", SeverityError},
		{"blank action", func(r *CustomerRow) { r.Action = "" }, "action", SeverityError},
		{"blank name", func(r *CustomerRow) { r.Name = "  " }, "name", SeverityError},
		{"blank category", func(r *CustomerRow) { r.CustomerCategory = "" }, "customerCategory", SeverityError},
		{"category is case sensitive", func(r *CustomerRow) { r.CustomerCategory = "företag" }, "customerCategory", SeverityError},
		{"invalid type group", func(r *CustomerRow) { r.CustomerTypeGroup = "B2X" }, "customerTypeGroup", SeverityError},
		{"school with B2C", func(r *CustomerRow) { r.CustomerCategory = "Skola"; r.CustomerTypeGroup = "B2C" }, "customerTypeGroup", SeverityWarning},
		{"update without key", func(r *CustomerRow) { r.Action = ActionUpdate; r.BCCustomerNumber = "" }, "bcCustomerNumber", SeverityError},
		{"update unknown key", func(r *CustomerRow) { r.Action = ActionUpdate; r.BCCustomerNumber = "BC-404" }, "bcCustomerNumber", SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := acme()
			row.BCCustomerNumber = "BC-2"
			tt.mutate(&row)

			res := ValidateCustomers([]CustomerRow{row}, idx)

			requireTallyInvariant(t, res)
			require.Len(t, res.Issues, 1)
			assert.Equal(t, tt.wantField, res.Issues[0].Field)
			assert.Equal(t, tt.wantSev, res.Issues[0].Severity)
			if tt.wantSev == SeverityWarning {
				assert.Equal(t, 1, res.RowsWithWarnings)
			} else {
				assert.Equal(t, 1, res.RowsWithErrors)
			}
		})
	}
}

func TestValidateCustomers_CreateWithoutKeyIsAllowed(t *testing.T) {
	row := acme()
	row.BCCustomerNumber = ""

	res := ValidateCustomers([]CustomerRow{row, row}, emptyIndex())

	assert.Empty(t, res.Issues)
	assert.Equal(t, 2, res.RowsValid)
}

func TestValidateCustomers_ErrorDominatesRowTally(t *testing.T) {
	row := acme()
	row.Name = ""
	row.CustomerCategory = "Skola"
	row.CustomerTypeGroup = "B2C"

	res := ValidateCustomers([]CustomerRow{row}, emptyIndex())

	requireTallyInvariant(t, res)
	assert.Equal(t, 1, res.RowsWithErrors)
	assert.Equal(t, 0, res.RowsWithWarnings)
	require.Len(t, res.Issues, 2)
	assert.Len(t, res.IssuesBySeverity(SeverityError), 1)
	assert.Len(t, res.IssuesBySeverity(SeverityWarning), 1)
}

func TestValidateCustomers_IssueOrder(t *testing.T) {
	row := CustomerRow{RowNumber: 4, Action: "X", CustomerCategory: "Nope", CustomerTypeGroup: "Nope"}

	res := ValidateCustomers([]CustomerRow{row}, emptyIndex())

	fields := make([]string, len(res.Issues))
	for i, is := range res.Issues {
		fields[i] = is.Field
		assert.Equal(t, 4, is.RowNumber)
	}
	assert.Equal(t, []string{"action", "name", "customerCategory", "customerTypeGroup"}, fields)
}

func TestValidateCustomers_EmptySheet(t *testing.T) {
	res := ValidateCustomers(nil, emptyIndex())

	assert.Equal(t, SheetValidationResult{Issues: []ValidationIssue{}}, res)
}
