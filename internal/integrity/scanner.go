package integrity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/logging"
)

// DuplicateType names the field a duplicate group was formed on.
type DuplicateType string

const (
	DupBCCustomerNumber DuplicateType = "bc_customer_number"
	DupVoyadoID         DuplicateType = "voyado_id"
	DupNorceCode        DuplicateType = "norce_code"
	DupSitooNumber      DuplicateType = "sitoo_number"
	DupSchoolName       DuplicateType = "school_name"
	DupCustomerName     DuplicateType = "customer_name"
	DupContactEmail     DuplicateType = "contact_email"
	DupTeacherEmail     DuplicateType = "teacher_email"
)

// AnomalyType names a cross-entity completeness rule.
type AnomalyType string

const (
	AnomalySchoolNoPayer   AnomalyType = "school_no_payer"
	AnomalyTeacherNoSchool AnomalyType = "teacher_no_school"
)

// Entity types used in ScanRecord.EntityType.
const (
	EntityCustomer = "customer"
	EntityContact  = "contact"
)

// ScanRecord is one live record as shown in scanner output.
type ScanRecord struct {
	ID               string `json:"id"`
	EntityType       string `json:"entityType"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	BCCustomerNumber string `json:"bcCustomerNumber,omitempty"`
	VoyadoID         string `json:"voyadoId,omitempty"`
	NorceCode        string `json:"norceCode,omitempty"`
	SitooNumber      string `json:"sitooNumber,omitempty"`
	Category         string `json:"category,omitempty"`
}

// DuplicateGroup is a set of two or more records sharing Value.
type DuplicateGroup struct {
	Value    string        `json:"value"`
	Type     DuplicateType `json:"type"`
	Severity Severity      `json:"severity"`
	Records  []ScanRecord  `json:"records"`
}

// AnomalyItem lists records failing a completeness rule.
type AnomalyItem struct {
	Type     AnomalyType  `json:"type"`
	Severity Severity     `json:"severity"`
	Records  []ScanRecord `json:"records"`
}

// ScanSummary counts scanner findings.
type ScanSummary struct {
	CustomersScanned int `json:"customersScanned"`
	ContactsScanned  int `json:"contactsScanned"`
	DuplicateGroups  int `json:"duplicateGroups"`
	ErrorGroups      int `json:"errorGroups"`
	WarningGroups    int `json:"warningGroups"`
	AnomalyRecords   int `json:"anomalyRecords"`
}

// ScanResult is the output of a scan or search.
type ScanResult struct {
	ScanID     string           `json:"scanId"`
	ScannedAt  time.Time        `json:"scannedAt"`
	Query      string           `json:"query,omitempty"`
	Duplicates []DuplicateGroup `json:"duplicates"`
	Anomalies  []AnomalyItem    `json:"anomalies"`
	Summary    ScanSummary      `json:"summary"`
}

// duplicateRule defines one duplicate check: which population is grouped,
// on which field, and the fixed severity of any resulting group.
type duplicateRule struct {
	typ      DuplicateType
	severity Severity
	records  func(d *scanData) []ScanRecord
	key      func(r ScanRecord) string
}

var duplicateRules = []duplicateRule{
	{DupBCCustomerNumber, SeverityError, allCustomers, func(r ScanRecord) string { return r.BCCustomerNumber }},
	{DupVoyadoID, SeverityError, allContacts, func(r ScanRecord) string { return r.VoyadoID }},
	{DupNorceCode, SeverityError, allCustomers, func(r ScanRecord) string { return r.NorceCode }},
	{DupSitooNumber, SeverityError, allCustomers, func(r ScanRecord) string { return r.SitooNumber }},
	{DupSchoolName, SeverityWarning, schoolCustomers, recordName},
	{DupCustomerName, SeverityWarning, businessCustomers, recordName},
	{DupContactEmail, SeverityWarning, nonTeacherContacts, recordEmail},
	{DupTeacherEmail, SeverityWarning, teacherContacts, recordEmail},
}

// scanData is everything one scan reads from the store.
type scanData struct {
	customers   []CustomerRecord
	contacts    []ContactRecord
	assignments []TeacherAssignment

	customerRecords []ScanRecord
	contactRecords  []ScanRecord
}

// Scan analyses the whole live dataset for duplicates and anomalies.
func (e *Engine) Scan(ctx context.Context) (*ScanResult, error) {
	return e.scan(ctx, "scan", "")
}

// Search runs the same analysis as Scan and keeps only findings that match
// query: duplicate groups whose value or any member matches, and anomaly
// records that match. Matching is a case-insensitive substring test over
// names, emails and identifiers.
func (e *Engine) Search(ctx context.Context, query string) (*ScanResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return e.scan(ctx, "search", query)
}

func (e *Engine) scan(ctx context.Context, mode, query string) (*ScanResult, error) {
	start := e.now()
	scanID := uuid.New().String()
	logger := logging.WithFields(ctx, "scan_id", scanID, "mode", mode)

	data, err := e.fetchScanData(ctx)
	if err != nil {
		logger.Error("scan aborted", "error", err)
		return nil, fmt.Errorf("%s: %w", mode, err)
	}

	res := analyze(data)
	if query != "" {
		res = res.filter(query)
	}
	res.ScanID = scanID
	res.ScannedAt = start
	res.Query = query

	for _, g := range res.Duplicates {
		e.metrics.IncrementFinding("duplicate", string(g.Type))
	}
	for _, a := range res.Anomalies {
		e.metrics.IncrementFinding("anomaly", string(a.Type))
	}
	e.metrics.ObserveScan(mode, e.now().Sub(start))

	logger.Info("scan finished",
		"duplicate_groups", res.Summary.DuplicateGroups,
		"error_groups", res.Summary.ErrorGroups,
		"anomaly_records", res.Summary.AnomalyRecords,
	)
	return res, nil
}

// fetchScanData reads customers and contacts concurrently. Teacher
// assignments are read after contacts, and only when there are teachers.
func (e *Engine) fetchScanData(ctx context.Context) (*scanData, error) {
	data := &scanData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		customers, err := e.store.CustomerIdentifiers(gctx)
		if err != nil {
			return fmt.Errorf("fetch customer identifiers: %w", err)
		}
		data.customers = customers
		return nil
	})

	g.Go(func() error {
		contacts, err := e.store.ScanContacts(gctx)
		if err != nil {
			return fmt.Errorf("fetch contacts: %w", err)
		}
		data.contacts = contacts

		if !hasTeacher(contacts) {
			return nil
		}
		assignments, err := e.store.TeacherAssignments(gctx, true)
		if err != nil {
			return fmt.Errorf("fetch teacher assignments: %w", err)
		}
		data.assignments = assignments
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.customerRecords = make([]ScanRecord, len(data.customers))
	for i, c := range data.customers {
		data.customerRecords[i] = customerScanRecord(c)
	}
	data.contactRecords = make([]ScanRecord, len(data.contacts))
	for i, c := range data.contacts {
		data.contactRecords[i] = contactScanRecord(c)
	}
	return data, nil
}

// analyze applies every duplicate rule and anomaly check to data.
func analyze(data *scanData) *ScanResult {
	res := &ScanResult{
		Duplicates: []DuplicateGroup{},
		Anomalies:  []AnomalyItem{},
	}

	for _, rule := range duplicateRules {
		res.Duplicates = append(res.Duplicates, groupDuplicates(rule.records(data), rule.key, rule.typ, rule.severity)...)
	}

	if recs := schoolsWithoutPayer(data); len(recs) > 0 {
		res.Anomalies = append(res.Anomalies, AnomalyItem{Type: AnomalySchoolNoPayer, Severity: SeverityWarning, Records: recs})
	}
	if recs := teachersWithoutSchool(data); len(recs) > 0 {
		res.Anomalies = append(res.Anomalies, AnomalyItem{Type: AnomalyTeacherNoSchool, Severity: SeverityWarning, Records: recs})
	}

	res.Summary = ScanSummary{
		CustomersScanned: len(data.customers),
		ContactsScanned:  len(data.contacts),
	}
	res.summarize()
	return res
}

// groupDuplicates groups records by exact, case-sensitive key. Blank keys
// (empty or whitespace only) are ignored and only groups with two or more members are returned, ordered
// by value. Members keep their input order.
func groupDuplicates(records []ScanRecord, key func(ScanRecord) string, typ DuplicateType, sev Severity) []DuplicateGroup {
	groups := make(map[string][]ScanRecord)
	for _, r := range records {
		k := key(r)
		if isBlank(k) {
			continue
		}
		groups[k] = append(groups[k], r)
	}

	var out []DuplicateGroup
	for value, members := range groups {
		if len(members) < 2 {
			continue
		}
		out = append(out, DuplicateGroup{Value: value, Type: typ, Severity: sev, Records: members})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func schoolsWithoutPayer(data *scanData) []ScanRecord {
	var out []ScanRecord
	for i, c := range data.customers {
		if c.Category == CategorySchool && (c.PayerCustomerID == nil || *c.PayerCustomerID == "") {
			out = append(out, data.customerRecords[i])
		}
	}
	return out
}

// teachersWithoutSchool is the set difference between all teacher IDs and
// the teacher IDs that appear in an active assignment.
func teachersWithoutSchool(data *scanData) []ScanRecord {
	assigned := make(stringSet)
	for _, a := range data.assignments {
		if a.Active {
			assigned.add(a.TeacherID)
		}
	}

	var out []ScanRecord
	for i, c := range data.contacts {
		if c.IsTeacher && !assigned.has(c.ID) {
			out = append(out, data.contactRecords[i])
		}
	}
	return out
}

func (r *ScanResult) summarize() {
	r.Summary.DuplicateGroups = len(r.Duplicates)
	r.Summary.ErrorGroups = 0
	r.Summary.WarningGroups = 0
	for _, g := range r.Duplicates {
		if g.Severity == SeverityError {
			r.Summary.ErrorGroups++
		} else {
			r.Summary.WarningGroups++
		}
	}
	r.Summary.AnomalyRecords = 0
	for _, a := range r.Anomalies {
		r.Summary.AnomalyRecords += len(a.Records)
	}
}

// filter narrows a full result to findings matching query.
func (r *ScanResult) filter(query string) *ScanResult {
	q := strings.ToLower(query)
	out := &ScanResult{
		Duplicates: []DuplicateGroup{},
		Anomalies:  []AnomalyItem{},
		Summary: ScanSummary{
			CustomersScanned: r.Summary.CustomersScanned,
			ContactsScanned:  r.Summary.ContactsScanned,
		},
	}

	for _, g := range r.Duplicates {
		if strings.Contains(strings.ToLower(g.Value), q) || anyMatches(g.Records, q) {
			out.Duplicates = append(out.Duplicates, g)
		}
	}
	for _, a := range r.Anomalies {
		var recs []ScanRecord
		for _, rec := range a.Records {
			if rec.matches(q) {
				recs = append(recs, rec)
			}
		}
		if len(recs) > 0 {
			out.Anomalies = append(out.Anomalies, AnomalyItem{Type: a.Type, Severity: a.Severity, Records: recs})
		}
	}

	out.summarize()
	return out
}

func anyMatches(records []ScanRecord, q string) bool {
	for _, rec := range records {
		if rec.matches(q) {
			return true
		}
	}
	return false
}

// matches reports whether any searchable field contains q (already lower-cased).
func (r ScanRecord) matches(q string) bool {
	for _, f := range []string{r.Name, r.Email, r.BCCustomerNumber, r.VoyadoID, r.NorceCode, r.SitooNumber} {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func customerScanRecord(c CustomerRecord) ScanRecord {
	return ScanRecord{
		ID:               c.ID,
		EntityType:       EntityCustomer,
		Name:             c.Name,
		BCCustomerNumber: c.BCCustomerNumber,
		NorceCode:        c.NorceCode,
		SitooNumber:      c.SitooNumber,
		Category:         c.Category,
	}
}

func contactScanRecord(c ContactRecord) ScanRecord {
	return ScanRecord{
		ID:         c.ID,
		EntityType: EntityContact,
		Name:       strings.TrimSpace(c.FirstName + " " + c.LastName),
		Email:      c.Email,
		VoyadoID:   c.VoyadoID,
	}
}

func hasTeacher(contacts []ContactRecord) bool {
	for _, c := range contacts {
		if c.IsTeacher {
			return true
		}
	}
	return false
}

func recordName(r ScanRecord) string  { return r.Name }
func recordEmail(r ScanRecord) string { return r.Email }

func allCustomers(d *scanData) []ScanRecord { return d.customerRecords }
func allContacts(d *scanData) []ScanRecord  { return d.contactRecords }

func schoolCustomers(d *scanData) []ScanRecord {
	var out []ScanRecord
	for i, c := range d.customers {
		if c.Category == CategorySchool {
			out = append(out, d.customerRecords[i])
		}
	}
	return out
}

func businessCustomers(d *scanData) []ScanRecord {
	var out []ScanRecord
	for i, c := range d.customers {
		if c.TypeGroup == TypeGroupB2B || c.TypeGroup == TypeGroupB2G {
			out = append(out, d.customerRecords[i])
		}
	}
	return out
}

func teacherContacts(d *scanData) []ScanRecord {
	var out []ScanRecord
	for i, c := range d.contacts {
		if c.IsTeacher {
			out = append(out, d.contactRecords[i])
		}
	}
	return out
}

func nonTeacherContacts(d *scanData) []ScanRecord {
	var out []ScanRecord
	for i, c := range d.contacts {
		if !c.IsTeacher {
			out = append(out, d.contactRecords[i])
		}
	}
	return out
}
