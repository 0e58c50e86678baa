package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
)

// fakeRows is a pgx.Rows over fixed values. A nil value scans as SQL NULL.
type fakeRows struct {
	values  [][]any
	pos     int
	scanErr error
	iterErr error
	closed  bool
}

var _ pgx.Rows = (*fakeRows)(nil)

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.iterErr }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.values[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.values[r.pos-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(row), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = row[i].(string)
		case *bool:
			*d = row[i].(bool)
		case **string:
			if row[i] == nil {
				*d = nil
			} else {
				v := row[i].(string)
				*d = &v
			}
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

// fakeDB records the last query and hands out rows.
type fakeDB struct {
	rows     *fakeRows
	queryErr error
	sql      string
	args     []any
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.sql = sql
	db.args = args
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return db.rows, nil
}

type PostgresStoreSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) TestExistingCustomers() {
	db := &fakeDB{rows: &fakeRows{values: [][]any{
		{"c1", "BC-1", "Ekskolan", "Skola"},
		{"c2", "BC-2", "Trä AB", ""},
	}}}

	got, err := NewPostgres(db).ExistingCustomers(s.ctx)

	s.Require().NoError(err)
	s.Equal([]integrity.CustomerRef{
		{ID: "c1", BCCustomerNumber: "BC-1", Name: "Ekskolan", Category: "Skola"},
		{ID: "c2", BCCustomerNumber: "BC-2", Name: "Trä AB"},
	}, got)
	s.Equal(existingCustomersSQL, db.sql)
	s.Contains(db.sql, "bc_customer_number <> ''")
	s.True(db.rows.closed)
}

func (s *PostgresStoreSuite) TestExistingContactsExcludesMerged() {
	db := &fakeDB{rows: &fakeRows{values: [][]any{{"k1", "V-1", "Anna", "Lind"}}}}

	got, err := NewPostgres(db).ExistingContacts(s.ctx)

	s.Require().NoError(err)
	s.Equal([]integrity.ContactRef{{ID: "k1", VoyadoID: "V-1", FirstName: "Anna", LastName: "Lind"}}, got)
	s.Contains(db.sql, "merged_into_id IS NULL")
	s.Contains(existingContactsSQL, "merged_into_id IS NULL")
}

func (s *PostgresStoreSuite) TestTeacherAssignmentsPassesActiveOnly() {
	for _, activeOnly := range []bool{true, false} {
		s.Run(fmt.Sprintf("activeOnly=%v", activeOnly), func() {
			db := &fakeDB{rows: &fakeRows{values: [][]any{{"t1", "s1", true}}}}

			got, err := NewPostgres(db).TeacherAssignments(s.ctx, activeOnly)

			s.Require().NoError(err)
			s.Equal([]any{activeOnly}, db.args)
			s.Equal([]integrity.TeacherAssignment{{TeacherID: "t1", SchoolID: "s1", Active: true}}, got)
		})
	}
}

func (s *PostgresStoreSuite) TestCustomerIdentifiersNullPayer() {
	db := &fakeDB{rows: &fakeRows{values: [][]any{
		{"s1", "Ekskolan", "BC-1", "Skola", "", "N-1", "", nil},
		{"s2", "Askskolan", "BC-2", "Skola", "", "", "S-2", "k1"},
	}}}

	got, err := NewPostgres(db).CustomerIdentifiers(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Nil(got[0].PayerCustomerID, "NULL payer scans to nil")
	s.Equal("N-1", got[0].NorceCode)
	s.Require().NotNil(got[1].PayerCustomerID)
	s.Equal("k1", *got[1].PayerCustomerID)
	s.Equal("S-2", got[1].SitooNumber)
}

func (s *PostgresStoreSuite) TestScanContacts() {
	db := &fakeDB{rows: &fakeRows{values: [][]any{{"k1", "V-1", "Anna", "Lind", "anna@example.se", true}}}}

	got, err := NewPostgres(db).ScanContacts(s.ctx)

	s.Require().NoError(err)
	s.Equal([]integrity.ContactRecord{{ID: "k1", VoyadoID: "V-1", FirstName: "Anna", LastName: "Lind", Email: "anna@example.se", IsTeacher: true}}, got)
	s.Contains(db.sql, "merged_into_id IS NULL")
}

func (s *PostgresStoreSuite) TestErrorsAreWrapped() {
	errDB := errors.New("connection refused")
	errScan := errors.New("cannot scan NULL into *string")
	errIter := errors.New("conn closed")

	reads := map[string]func(*Postgres) error{
		"customers": func(p *Postgres) error { _, err := p.ExistingCustomers(s.ctx); return err },
		"contacts":  func(p *Postgres) error { _, err := p.ExistingContacts(s.ctx); return err },
		"assignments": func(p *Postgres) error {
			_, err := p.TeacherAssignments(s.ctx, true)
			return err
		},
		"identifiers":   func(p *Postgres) error { _, err := p.CustomerIdentifiers(s.ctx); return err },
		"scan contacts": func(p *Postgres) error { _, err := p.ScanContacts(s.ctx); return err },
	}

	for name, read := range reads {
		s.Run(name+"/query", func() {
			err := read(NewPostgres(&fakeDB{queryErr: errDB}))
			s.ErrorIs(err, errDB)
			s.Contains(err.Error(), "query")
		})
		s.Run(name+"/scan", func() {
			err := read(NewPostgres(&fakeDB{rows: &fakeRows{values: [][]any{{}}, scanErr: errScan}}))
			s.ErrorIs(err, errScan)
			s.Contains(err.Error(), "scan")
		})
		s.Run(name+"/iterate", func() {
			err := read(NewPostgres(&fakeDB{rows: &fakeRows{iterErr: errIter}}))
			s.ErrorIs(err, errIter)
			s.Contains(err.Error(), "iterate")
		})
	}
}
