package integrity

// ValidatePayers validates the payer sheet and checks that the final payer
// graph after import contains no cycles.
//
// Every non-DELETE row with two distinct, non-blank ends contributes an edge
// customer → payer; a later row for the same customer replaces the earlier
// edge. Cycle issues use RowNumber 0, and the rows that define the edges of a
// cycle are counted as error rows.
func ValidatePayers(rows []PayerRow, idx *ReferenceIndex, newBC map[string]struct{}) SheetValidationResult {
	var tally sheetTally
	graph := NewPayerGraph()
	edgeRow := make(map[string]int)

	for _, r := range rows {
		c := checkPayer(r, idx, stringSet(newBC))
		pos := tally.addRow(c)

		if r.Action == ActionDelete || isBlank(r.CustomerBCNumber) || isBlank(r.PayerBCNumber) {
			continue
		}
		if r.CustomerBCNumber == r.PayerBCNumber {
			continue
		}
		graph.SetPayer(r.CustomerBCNumber, r.PayerBCNumber)
		edgeRow[r.CustomerBCNumber] = pos
	}

	for _, cyc := range DetectPayerCycles(graph) {
		key := cyc.Origin
		if !cyc.Contains(key) {
			key = cyc.Nodes[0]
		}
		tally.addStructural(ValidationIssue{
			RowNumber: 0,
			Field:     "payerBcNumber",
			EntityKey: key,
			Severity:  SeverityError,
			Message:   "Betalarrelationerna bildar en cykel: " + cyc.Path(),
		})
		for _, n := range cyc.Nodes {
			if pos, ok := edgeRow[n]; ok {
				tally.escalate(pos)
			}
		}
	}

	return tally.result()
}

func checkPayer(r PayerRow, idx *ReferenceIndex, newBC stringSet) *rowCheck {
	c := newRowCheck(r.RowNumber, firstNonBlank(r.CustomerBCNumber, r.PayerBCNumber))

	if !r.Action.Valid() {
		c.errorf("action", "Ogiltig åtgärd %q, tillåtna värden är CREATE, UPDATE och DELETE", r.Action)
	}

	if isBlank(r.CustomerBCNumber) {
		c.errorf("customerBcNumber", "Kundnummer saknas")
	} else if !idx.resolvesCustomer(r.CustomerBCNumber, newBC) {
		c.errorf("customerBcNumber", "Kund %s hittades varken i databasen eller i filen", r.CustomerBCNumber)
	}

	if isBlank(r.PayerBCNumber) {
		c.errorf("payerBcNumber", "Betalarens kundnummer saknas")
	} else if !idx.resolvesCustomer(r.PayerBCNumber, newBC) {
		c.errorf("payerBcNumber", "Betalare %s hittades varken i databasen eller i filen", r.PayerBCNumber)
	}

	if !isBlank(r.CustomerBCNumber) && r.CustomerBCNumber == r.PayerBCNumber {
		c.errorf("payerBcNumber", "Kund %s kan inte vara sin egen betalare", r.CustomerBCNumber)
	}

	return c
}
