// Package workbook reads import workbooks (.xlsx) into an integrity.ImportBatch.
//
// A workbook has up to three sheets, Kunder, Kontakter and Betalare (English
// names Customers, Contacts and Payers are accepted too). Each sheet starts
// with a header row; columns are located by header name, so column order
// does not matter and extra columns are ignored.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
)

// MaxHeaderSearchRows is the maximum number of rows scanned for the header.
var MaxHeaderSearchRows = 10

// ErrEmptyWorkbook is returned when no sheet has a recognised import name.
var ErrEmptyWorkbook = errors.New("no import sheets found in workbook")

// MissingColumnError reports a required column absent from a sheet header.
type MissingColumnError struct {
	Sheet  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("sheet %s: missing required column %q", e.Sheet, e.Column)
}

// column is one logical field with the header spellings that map to it.
type column struct {
	field    string
	aliases  []string
	required bool
}

// sheetLayout describes how one import sheet is read.
type sheetLayout struct {
	sheet   integrity.Sheet
	names   []string
	columns []column
	build   func(rowNumber int, get func(field string) string) integrity.Row
}

var layouts = []sheetLayout{
	{
		sheet: integrity.SheetCustomers,
		names: []string{"kunder", "customers"},
		columns: []column{
			{"action", []string{"action", "åtgärd"}, true},
			{"name", []string{"name", "namn", "kundnamn"}, true},
			{"bcCustomerNumber", []string{"bccustomernumber", "kundnummer", "bckundnummer"}, true},
			{"customerCategory", []string{"customercategory", "kundkategori", "kategori"}, true},
			{"customerTypeGroup", []string{"customertypegroup", "kundtypgrupp", "typgrupp"}, false},
		},
		build: func(n int, get func(string) string) integrity.Row {
			return integrity.CustomerRow{
				RowNumber:         n,
				Action:            integrity.ParseAction(get("action")),
				Name:              get("name"),
				BCCustomerNumber:  get("bcCustomerNumber"),
				CustomerCategory:  get("customerCategory"),
				CustomerTypeGroup: get("customerTypeGroup"),
			}
		},
	},
	{
		sheet: integrity.SheetContacts,
		names: []string{"kontakter", "contacts"},
		columns: []column{
			{"action", []string{"action", "åtgärd"}, true},
			{"voyadoId", []string{"voyadoid"}, true},
			{"firstName", []string{"firstname", "förnamn"}, true},
			{"lastName", []string{"lastname", "efternamn"}, true},
			{"email", []string{"email", "epost", "epostadress"}, true},
			{"contactType", []string{"contacttype", "kontakttyp"}, true},
			{"isTeacher", []string{"isteacher", "lärare", "ärlärare"}, false},
			{"linkedBcCustomerNumbers", []string{"linkedbccustomernumbers", "koppladekunder", "kundnummer"}, false},
		},
		build: func(n int, get func(string) string) integrity.Row {
			return integrity.ContactRow{
				RowNumber:               n,
				Action:                  integrity.ParseAction(get("action")),
				VoyadoID:                get("voyadoId"),
				FirstName:               get("firstName"),
				LastName:                get("lastName"),
				Email:                   get("email"),
				ContactType:             get("contactType"),
				IsTeacher:               ParseBool(get("isTeacher")),
				LinkedBCCustomerNumbers: SplitList(get("linkedBcCustomerNumbers")),
			}
		},
	},
	{
		sheet: integrity.SheetPayers,
		names: []string{"betalare", "payers"},
		columns: []column{
			{"action", []string{"action", "åtgärd"}, true},
			{"customerBcNumber", []string{"customerbcnumber", "kundnummer"}, true},
			{"payerBcNumber", []string{"payerbcnumber", "betalarkundnummer", "betalare"}, true},
		},
		build: func(n int, get func(string) string) integrity.Row {
			return integrity.PayerRow{
				RowNumber:        n,
				Action:           integrity.ParseAction(get("action")),
				CustomerBCNumber: get("customerBcNumber"),
				PayerBCNumber:    get("payerBcNumber"),
			}
		},
	},
}

// Parse reads an .xlsx workbook from r.
//
// Sheets with unrecognised names are ignored; a workbook with none of the
// import sheets is rejected with ErrEmptyWorkbook. Row numbers are 1-based
// positions after the header row. Blank rows are skipped but still counted,
// so numbers match what the user sees below the header.
func Parse(r io.Reader) (integrity.ImportBatch, error) {
	var batch integrity.ImportBatch

	f, err := excelize.OpenReader(r)
	if err != nil {
		return batch, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	found := 0
	for _, name := range f.GetSheetList() {
		layout, ok := layoutFor(name)
		if !ok {
			continue
		}
		found++

		rows, err := f.GetRows(name)
		if err != nil {
			return batch, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if err := readSheet(&batch, name, layout, rows); err != nil {
			return batch, err
		}
	}

	if found == 0 {
		return batch, ErrEmptyWorkbook
	}
	return batch, nil
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string) (integrity.ImportBatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return integrity.ImportBatch{}, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

func layoutFor(sheetName string) (sheetLayout, bool) {
	key := NormalizeHeader(sheetName)
	for _, l := range layouts {
		for _, n := range l.names {
			if key == n {
				return l, true
			}
		}
	}
	return sheetLayout{}, false
}

func readSheet(batch *integrity.ImportBatch, name string, layout sheetLayout, rows [][]string) error {
	headerIdx := findHeader(rows)
	if headerIdx < 0 {
		// An empty sheet contributes no rows.
		return nil
	}

	positions, err := resolveColumns(name, layout.columns, rows[headerIdx])
	if err != nil {
		return err
	}

	for i, row := range rows[headerIdx+1:] {
		if isEmptyRow(row) {
			continue
		}
		get := func(field string) string {
			pos, ok := positions[field]
			if !ok || pos >= len(row) {
				return ""
			}
			return CleanCell(row[pos])
		}
		batch.Add(layout.build(i+1, get))
	}
	return nil
}

// findHeader returns the index of the first non-empty row within the search window.
func findHeader(rows [][]string) int {
	limit := min(len(rows), MaxHeaderSearchRows)
	for i := 0; i < limit; i++ {
		if !isEmptyRow(rows[i]) {
			return i
		}
	}
	return -1
}

// resolveColumns maps each logical field to its cell position. The first
// header matching any alias wins.
func resolveColumns(sheet string, columns []column, header []string) (map[string]int, error) {
	byHeader := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if _, dup := byHeader[key]; !dup && key != "" {
			byHeader[key] = i
		}
	}

	positions := make(map[string]int, len(columns))
	for _, c := range columns {
		for _, alias := range c.aliases {
			if pos, ok := byHeader[alias]; ok {
				positions[c.field] = pos
				break
			}
		}
		if _, ok := positions[c.field]; !ok && c.required {
			return nil, &MissingColumnError{Sheet: sheet, Column: c.field}
		}
	}
	return positions, nil
}

// NormalizeHeader lower-cases s and drops everything but letters and digits,
// so "BC Customer Number", "bc_customer_number" and "bcCustomerNumber" match.
func NormalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(CleanCell(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanCell trims whitespace and removes an Excel text-formula wrapper (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// ParseBool accepts ja/yes/true/1/x (and y/j) as true; anything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ja", "j", "yes", "y", "true", "t", "1", "x":
		return true
	default:
		return false
	}
}

// SplitList splits a comma- or semicolon-separated cell, dropping blanks.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
