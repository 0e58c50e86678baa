package integrity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/metrics"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/store"
)

var errStoreDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")

// failingStore fails the read named by failOn and delegates the rest.
type failingStore struct {
	*store.Memory
	failOn string
}

func (f *failingStore) ExistingCustomers(ctx context.Context) ([]integrity.CustomerRef, error) {
	if f.failOn == "customers" {
		return nil, errStoreDown
	}
	return f.Memory.ExistingCustomers(ctx)
}

func (f *failingStore) ExistingContacts(ctx context.Context) ([]integrity.ContactRef, error) {
	if f.failOn == "contacts" {
		return nil, errStoreDown
	}
	return f.Memory.ExistingContacts(ctx)
}

func (f *failingStore) TeacherAssignments(ctx context.Context, activeOnly bool) ([]integrity.TeacherAssignment, error) {
	if f.failOn == "assignments" {
		return nil, errStoreDown
	}
	return f.Memory.TeacherAssignments(ctx, activeOnly)
}

func (f *failingStore) CustomerIdentifiers(ctx context.Context) ([]integrity.CustomerRecord, error) {
	if f.failOn == "identifiers" {
		return nil, errStoreDown
	}
	return f.Memory.CustomerIdentifiers(ctx)
}

type EngineSuite struct {
	suite.Suite
	store   *store.Memory
	metrics *metrics.Metrics
	engine  *integrity.Engine
	now     time.Time
	ctx     context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.store = store.NewMemory()
	s.store.AddCustomer(integrity.CustomerRecord{ID: "c-skola", Name: "Ekskolan", BCCustomerNumber: "BC-SKOLA", Category: "Skola", TypeGroup: "B2G"})
	s.store.AddCustomer(integrity.CustomerRecord{ID: "c-kommun", Name: "Ekby kommun", BCCustomerNumber: "BC-KOMMUN", Category: "Kommun", TypeGroup: "B2G"})
	s.store.AddContact(store.MemoryContact{ContactRecord: integrity.ContactRecord{ID: "k1", VoyadoID: "V-1", FirstName: "Anna", LastName: "Berg"}})
	s.store.AddContact(store.MemoryContact{
		ContactRecord: integrity.ContactRecord{ID: "k2", VoyadoID: "V-2", FirstName: "Anna", LastName: "Berg"},
		MergedIntoID:  "k1",
	})

	s.metrics = metrics.New(prometheus.NewRegistry())
	s.engine = integrity.NewEngine(s.store,
		integrity.WithMetrics(s.metrics),
		integrity.WithClock(func() time.Time { return s.now }),
	)
}

func (s *EngineSuite) validate(batch integrity.ImportBatch) *integrity.ValidationResult {
	res, err := s.engine.ValidateImport(s.ctx, batch)
	s.Require().NoError(err)
	s.Require().NotNil(res)
	for sheet, r := range res.Sheets() {
		s.Equal(r.RowsRead, r.RowsValid+r.RowsWithWarnings+r.RowsWithErrors, "tally of %s", sheet)
	}
	return res
}

func acmeRow() integrity.CustomerRow {
	return integrity.CustomerRow{
		RowNumber:         1,
		Action:            integrity.ActionCreate,
		Name:              "Acme",
		BCCustomerNumber:  "BC-ACME",
		CustomerCategory:  "Företag",
		CustomerTypeGroup: "B2B",
	}
}

func (s *EngineSuite) TestValidBatchCanImport() {
	res := s.validate(integrity.ImportBatch{Customers: []integrity.CustomerRow{acmeRow()}})

	s.True(res.CanImport)
	s.Equal(1, res.Customers.RowsValid)
	s.Equal(0, res.Contacts.RowsRead)
	s.NotEmpty(res.RunID)
	s.Equal(s.now, res.ValidatedAt)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ValidationRuns.WithLabelValues("true")))
}

func (s *EngineSuite) TestErrorBlocksImport() {
	row := acmeRow()
	row.CustomerCategory = "Unknown"

	res := s.validate(integrity.ImportBatch{Customers: []integrity.CustomerRow{row}})

	s.False(res.CanImport)
	s.Len(res.Customers.Issues, 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ValidationRuns.WithLabelValues("false")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ValidationIssues.WithLabelValues("customers", "ERROR")))
}

func (s *EngineSuite) TestWarningsDoNotBlockImport() {
	row := acmeRow()
	row.CustomerCategory = "Skola"
	row.CustomerTypeGroup = "B2C"

	res := s.validate(integrity.ImportBatch{Customers: []integrity.CustomerRow{row}})

	s.True(res.CanImport)
	s.Equal(1, res.Customers.RowsWithWarnings)
}

func (s *EngineSuite) TestReferencesResolveAcrossSheets() {
	batch := integrity.ImportBatch{
		Contacts: []integrity.ContactRow{{
			RowNumber:               1,
			Action:                  integrity.ActionCreate,
			VoyadoID:                "V-NEW",
			FirstName:               "Per",
			LastName:                "Ek",
			Email:                   "per@acme.se",
			ContactType:             "Inköpare",
			LinkedBCCustomerNumbers: []string{"BC-ACME"},
		}},
		Payers: []integrity.PayerRow{
			{RowNumber: 1, Action: integrity.ActionCreate, CustomerBCNumber: "BC-ACME", PayerBCNumber: "BC-KOMMUN"},
		},
	}
	// Customer rows are added last: the order of sheets in the batch must not matter.
	batch.Customers = []integrity.CustomerRow{acmeRow()}

	res := s.validate(batch)

	s.True(res.CanImport, "%+v", res)
}

func (s *EngineSuite) TestExistingKeysComeFromStore() {
	batch := integrity.ImportBatch{
		Customers: []integrity.CustomerRow{{
			RowNumber: 1, Action: integrity.ActionCreate, Name: "Ekskolan", BCCustomerNumber: "BC-SKOLA", CustomerCategory: "Skola",
		}},
		Contacts: []integrity.ContactRow{{
			RowNumber: 1, Action: integrity.ActionUpdate, VoyadoID: "V-2", FirstName: "Anna", LastName: "Berg",
			Email: "anna@ekskolan.se", ContactType: "Lärare",
		}},
	}

	res := s.validate(batch)

	s.False(res.CanImport)
	s.Require().Len(res.Customers.Issues, 1)
	s.Contains(res.Customers.Issues[0].Message, "finns redan")
	s.Require().Len(res.Contacts.Issues, 1)
	s.Contains(res.Contacts.Issues[0].Message, "hittades inte", "merged contacts are not updatable")
}

func (s *EngineSuite) TestPayerCycleBlocksImport() {
	batch := integrity.ImportBatch{Payers: []integrity.PayerRow{
		{RowNumber: 1, Action: integrity.ActionUpdate, CustomerBCNumber: "BC-SKOLA", PayerBCNumber: "BC-KOMMUN"},
		{RowNumber: 2, Action: integrity.ActionUpdate, CustomerBCNumber: "BC-KOMMUN", PayerBCNumber: "BC-SKOLA"},
	}}

	res := s.validate(batch)

	s.False(res.CanImport)
	s.Equal(2, res.Payers.RowsWithErrors)
	s.Require().Len(res.Payers.Issues, 1)
	s.Equal(0, res.Payers.Issues[0].RowNumber)
}

func (s *EngineSuite) TestStoreFailureAbortsValidation() {
	for _, failOn := range []string{"customers", "contacts"} {
		s.Run(failOn, func() {
			engine := integrity.NewEngine(&failingStore{Memory: s.store, failOn: failOn})

			res, err := engine.ValidateImport(s.ctx, integrity.ImportBatch{Customers: []integrity.CustomerRow{acmeRow()}})

			s.Nil(res)
			s.Require().Error(err)
			s.ErrorIs(err, errStoreDown)
			s.Equal("DB001", integrity.MapError(err).Code)
		})
	}
}

func (s *EngineSuite) TestConcurrentRuns() {
	done := make(chan *integrity.ValidationResult, 8)
	for i := 0; i < cap(done); i++ {
		go func() {
			res, err := s.engine.ValidateImport(s.ctx, integrity.ImportBatch{Customers: []integrity.CustomerRow{acmeRow()}})
			if err != nil {
				done <- nil
				return
			}
			done <- res
		}()
	}

	ids := make(map[string]bool)
	for i := 0; i < cap(done); i++ {
		res := <-done
		s.Require().NotNil(res)
		s.True(res.CanImport)
		ids[res.RunID] = true
	}
	s.Len(ids, cap(done))
}
