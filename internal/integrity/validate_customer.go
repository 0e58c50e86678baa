package integrity

import "strings"

// ValidateCustomers validates the customer sheet against the reference index.
//
// Checks run in a fixed order per row: action, name, category, type group,
// the Skola/B2C consistency warning, then business-key rules for CREATE and
// UPDATE. A CREATE key that repeats within the file flags every row using it.
func ValidateCustomers(rows []CustomerRow, idx *ReferenceIndex) SheetValidationResult {
	createRows := make(map[string][]int)
	for _, r := range rows {
		if r.Action == ActionCreate && !isBlank(r.BCCustomerNumber) {
			createRows[r.BCCustomerNumber] = append(createRows[r.BCCustomerNumber], r.RowNumber)
		}
	}

	var tally sheetTally
	for _, r := range rows {
		tally.addRow(checkCustomer(r, idx, createRows))
	}
	return tally.result()
}

func checkCustomer(r CustomerRow, idx *ReferenceIndex, createRows map[string][]int) *rowCheck {
	c := newRowCheck(r.RowNumber, firstNonBlank(r.BCCustomerNumber, r.Name))

	if !r.Action.Valid() {
		c.errorf("action", "Ogiltig åtgärd %q, tillåtna värden är CREATE, UPDATE och DELETE", r.Action)
	}

	if isBlank(r.Name) {
		c.errorf("name", "Namn saknas")
	}

	if !customerCategorySet.has(r.CustomerCategory) {
		c.errorf("customerCategory", "Ogiltig kundkategori %q, tillåtna värden är %s",
			r.CustomerCategory, strings.Join(CustomerCategories, ", "))
	}

	if !isBlank(r.CustomerTypeGroup) && !customerTypeGroupSet.has(r.CustomerTypeGroup) {
		c.errorf("customerTypeGroup", "Ogiltig kundtypgrupp %q, tillåtna värden är %s",
			r.CustomerTypeGroup, strings.Join(CustomerTypeGroups, ", "))
	}

	if r.CustomerCategory == CategorySchool && r.CustomerTypeGroup == TypeGroupB2C {
		c.warnf("customerTypeGroup", "Kategori Skola med kundtypgrupp B2C är ovanligt, kontrollera klassificeringen")
	}

	switch r.Action {
	case ActionCreate:
		if isBlank(r.BCCustomerNumber) {
			break
		}
		if idx.HasCustomer(r.BCCustomerNumber) {
			c.errorf("bcCustomerNumber", "Kundnummer %s finns redan i databasen", r.BCCustomerNumber)
		}
		if lines := createRows[r.BCCustomerNumber]; len(lines) > 1 {
			c.errorf("bcCustomerNumber", "Kundnummer %s är duplicerat i filen (rad %s)",
				r.BCCustomerNumber, joinRows(lines))
		}
	case ActionUpdate:
		if isBlank(r.BCCustomerNumber) {
			c.errorf("bcCustomerNumber", "Kundnummer krävs för UPDATE")
		} else if !idx.HasCustomer(r.BCCustomerNumber) {
			c.errorf("bcCustomerNumber", "Kundnummer %s hittades inte i databasen", r.BCCustomerNumber)
		}
	}

	return c
}
