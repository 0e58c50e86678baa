package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/logging"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/metrics"
)

// Engine runs import validation and data-quality scans against a RecordStore.
// It holds no per-run state, so one Engine can serve concurrent runs.
type Engine struct {
	store   RecordStore
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine reading from store.
func NewEngine(store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = &instrumentedStore{next: e.store, metrics: e.metrics}
	return e
}

// ValidateImport validates a complete import batch.
//
// The reference index is built once and the business keys of customers
// created anywhere in the batch are collected before any sheet is checked.
// A non-nil error means the record store could not be read; validation
// findings are always returned in the result.
func (e *Engine) ValidateImport(ctx context.Context, batch ImportBatch) (*ValidationResult, error) {
	start := e.now()
	runID := uuid.New().String()
	logger := logging.WithFields(ctx,
		"run_id", runID,
		"customers", len(batch.Customers),
		"contacts", len(batch.Contacts),
		"payers", len(batch.Payers),
	)
	logger.Debug("validation started")

	idx, err := BuildReferenceIndex(ctx, e.store, start)
	if err != nil {
		logger.Error("validation aborted", "error", err)
		return nil, fmt.Errorf("validate import: %w", err)
	}

	newBC := NewBCNumbers(batch.Customers)

	result := &ValidationResult{
		RunID:       runID,
		ValidatedAt: start,
		Customers:   ValidateCustomers(batch.Customers, idx),
		Contacts:    ValidateContacts(batch.Contacts, idx, newBC),
		Payers:      ValidatePayers(batch.Payers, idx, newBC),
	}
	result.CanImport = canImport(result.Customers, result.Contacts, result.Payers)

	for sheet, res := range result.Sheets() {
		e.metrics.AddIssues(string(sheet), string(SeverityError), len(res.IssuesBySeverity(SeverityError)))
		e.metrics.AddIssues(string(sheet), string(SeverityWarning), len(res.IssuesBySeverity(SeverityWarning)))
	}
	e.metrics.ObserveValidation(result.CanImport, e.now().Sub(start))

	logger.Info("validation finished",
		"can_import", result.CanImport,
		"customer_errors", result.Customers.RowsWithErrors,
		"contact_errors", result.Contacts.RowsWithErrors,
		"payer_errors", result.Payers.RowsWithErrors,
		"indexed_customers", len(idx.CustomersByBC),
		"indexed_contacts", len(idx.ContactsByVoyado),
	)

	return result, nil
}

// instrumentedStore records read latency for every RecordStore call.
type instrumentedStore struct {
	next    RecordStore
	metrics *metrics.Metrics
}

func (s *instrumentedStore) ExistingCustomers(ctx context.Context) ([]CustomerRef, error) {
	defer s.observe("existing_customers", time.Now())
	return s.next.ExistingCustomers(ctx)
}

func (s *instrumentedStore) ExistingContacts(ctx context.Context) ([]ContactRef, error) {
	defer s.observe("existing_contacts", time.Now())
	return s.next.ExistingContacts(ctx)
}

func (s *instrumentedStore) TeacherAssignments(ctx context.Context, activeOnly bool) ([]TeacherAssignment, error) {
	defer s.observe("teacher_assignments", time.Now())
	return s.next.TeacherAssignments(ctx, activeOnly)
}

func (s *instrumentedStore) CustomerIdentifiers(ctx context.Context) ([]CustomerRecord, error) {
	defer s.observe("customer_identifiers", time.Now())
	return s.next.CustomerIdentifiers(ctx)
}

func (s *instrumentedStore) ScanContacts(ctx context.Context) ([]ContactRecord, error) {
	defer s.observe("scan_contacts", time.Now())
	return s.next.ScanContacts(ctx)
}

func (s *instrumentedStore) observe(read string, start time.Time) {
	s.metrics.ObserveStoreRead(read, time.Since(start))
}
