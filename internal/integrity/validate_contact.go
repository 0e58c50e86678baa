package integrity

import "strings"

// ValidateContacts validates the contact sheet. newBC holds the business keys
// of customers created in the same batch; linked customers may point at them.
func ValidateContacts(rows []ContactRow, idx *ReferenceIndex, newBC map[string]struct{}) SheetValidationResult {
	createRows := make(map[string][]int)
	emailRows := make(map[string]int)
	for _, r := range rows {
		if r.Action == ActionCreate && !isBlank(r.VoyadoID) {
			createRows[r.VoyadoID] = append(createRows[r.VoyadoID], r.RowNumber)
		}
		if key := emailKey(r.Email); key != "" {
			emailRows[key]++
		}
	}

	var tally sheetTally
	for _, r := range rows {
		tally.addRow(checkContact(r, idx, stringSet(newBC), createRows, emailRows))
	}
	return tally.result()
}

func checkContact(r ContactRow, idx *ReferenceIndex, newBC stringSet, createRows map[string][]int, emailRows map[string]int) *rowCheck {
	c := newRowCheck(r.RowNumber, firstNonBlank(r.VoyadoID, r.Email, strings.TrimSpace(r.FirstName+" "+r.LastName)))

	if !r.Action.Valid() {
		c.errorf("action", "Ogiltig åtgärd %q, tillåtna värden är CREATE, UPDATE och DELETE", r.Action)
	}

	if isBlank(r.VoyadoID) {
		c.errorf("voyadoId", "Voyado-ID saknas")
	}

	if isBlank(r.FirstName) || isBlank(r.LastName) {
		c.errorf("firstName/lastName", "Förnamn och efternamn krävs")
	}

	if isBlank(r.Email) {
		c.errorf("email", "E-postadress saknas")
	}

	if !contactTypeSet.has(r.ContactType) {
		c.errorf("contactType", "Ogiltig kontakttyp %q, tillåtna värden är %s",
			r.ContactType, strings.Join(ContactTypes, ", "))
	}

	switch r.Action {
	case ActionCreate:
		if isBlank(r.VoyadoID) {
			break
		}
		if idx.HasContact(r.VoyadoID) {
			c.errorf("voyadoId", "Voyado-ID %s finns redan i databasen", r.VoyadoID)
		}
		if lines := createRows[r.VoyadoID]; len(lines) > 1 {
			c.errorf("voyadoId", "Voyado-ID %s är duplicerat i filen (rad %s)", r.VoyadoID, joinRows(lines))
		}
	case ActionUpdate:
		if isBlank(r.VoyadoID) {
			c.errorf("voyadoId", "Voyado-ID krävs för UPDATE")
		} else if !idx.HasContact(r.VoyadoID) {
			c.errorf("voyadoId", "Voyado-ID %s hittades inte i databasen", r.VoyadoID)
		}
	}

	for _, bc := range r.LinkedBCCustomerNumbers {
		if isBlank(bc) {
			continue
		}
		if !idx.resolvesCustomer(bc, newBC) {
			c.errorf("linkedBcCustomerNumbers", "Kopplad kund %s hittades varken i databasen eller i filen", bc)
			continue
		}
		// Category is only known for existing customers.
		if cust, ok := idx.Customer(bc); ok && r.IsTeacher && cust.Category != CategorySchool {
			c.warnf("linkedBcCustomerNumbers", "Lärare kopplad till %s (%s) som inte är en skola", bc, cust.Category)
		}
	}

	if n := emailRows[emailKey(r.Email)]; n > EmailReuseThreshold {
		c.warnf("email", "E-postadressen %s används på %d rader i filen", strings.TrimSpace(r.Email), n)
	}

	return c
}

// emailKey normalizes an address for counting reuse within a batch.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
