// Package store provides RecordStore implementations for the integrity engine.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
)

// DBTX is the query interface used by Postgres.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// Postgres reads CRM records from PostgreSQL. It never writes.
type Postgres struct {
	db DBTX
}

var _ integrity.RecordStore = (*Postgres)(nil)

// NewPostgres creates a Postgres store on top of db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

const existingCustomersSQL = `
SELECT id::text, bc_customer_number, name, COALESCE(customer_category, '')
FROM customers
WHERE bc_customer_number IS NOT NULL AND bc_customer_number <> ''`

// ExistingCustomers returns every customer that has a BC customer number.
func (p *Postgres) ExistingCustomers(ctx context.Context) ([]integrity.CustomerRef, error) {
	rows, err := p.db.Query(ctx, existingCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("query existing customers: %w", err)
	}
	defer rows.Close()

	var out []integrity.CustomerRef
	for rows.Next() {
		var c integrity.CustomerRef
		if err := rows.Scan(&c.ID, &c.BCCustomerNumber, &c.Name, &c.Category); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

const existingContactsSQL = `
SELECT id::text, voyado_id, COALESCE(first_name, ''), COALESCE(last_name, '')
FROM contacts
WHERE merged_into_id IS NULL
  AND voyado_id IS NOT NULL AND voyado_id <> ''`

// ExistingContacts returns contacts with a Voyado ID. Contacts merged into
// another contact are excluded.
func (p *Postgres) ExistingContacts(ctx context.Context) ([]integrity.ContactRef, error) {
	rows, err := p.db.Query(ctx, existingContactsSQL)
	if err != nil {
		return nil, fmt.Errorf("query existing contacts: %w", err)
	}
	defer rows.Close()

	var out []integrity.ContactRef
	for rows.Next() {
		var c integrity.ContactRef
		if err := rows.Scan(&c.ID, &c.VoyadoID, &c.FirstName, &c.LastName); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

const teacherAssignmentsSQL = `
SELECT teacher_contact_id::text, school_customer_id::text, is_active
FROM teacher_school_assignments
WHERE NOT $1 OR is_active`

// TeacherAssignments returns teacher-school assignments, optionally only active ones.
func (p *Postgres) TeacherAssignments(ctx context.Context, activeOnly bool) ([]integrity.TeacherAssignment, error) {
	rows, err := p.db.Query(ctx, teacherAssignmentsSQL, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query teacher assignments: %w", err)
	}
	defer rows.Close()

	var out []integrity.TeacherAssignment
	for rows.Next() {
		var a integrity.TeacherAssignment
		if err := rows.Scan(&a.TeacherID, &a.SchoolID, &a.Active); err != nil {
			return nil, fmt.Errorf("scan teacher assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teacher assignments: %w", err)
	}
	return out, nil
}

const customerIdentifiersSQL = `
SELECT id::text,
       COALESCE(name, ''),
       COALESCE(bc_customer_number, ''),
       COALESCE(customer_category, ''),
       COALESCE(customer_type_group, ''),
       COALESCE(norce_code, ''),
       COALESCE(sitoo_customer_number, ''),
       payer_customer_id::text
FROM customers
ORDER BY created_at, id`

// CustomerIdentifiers returns every customer with all externally visible identifiers.
func (p *Postgres) CustomerIdentifiers(ctx context.Context) ([]integrity.CustomerRecord, error) {
	rows, err := p.db.Query(ctx, customerIdentifiersSQL)
	if err != nil {
		return nil, fmt.Errorf("query customer identifiers: %w", err)
	}
	defer rows.Close()

	var out []integrity.CustomerRecord
	for rows.Next() {
		var c integrity.CustomerRecord
		if err := rows.Scan(&c.ID, &c.Name, &c.BCCustomerNumber, &c.Category, &c.TypeGroup,
			&c.NorceCode, &c.SitooNumber, &c.PayerCustomerID); err != nil {
			return nil, fmt.Errorf("scan customer identifiers: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer identifiers: %w", err)
	}
	return out, nil
}

const scanContactsSQL = `
SELECT id::text,
       COALESCE(voyado_id, ''),
       COALESCE(first_name, ''),
       COALESCE(last_name, ''),
       COALESCE(email, ''),
       is_teacher
FROM contacts
WHERE merged_into_id IS NULL
ORDER BY created_at, id`

// ScanContacts returns every non-merged contact.
func (p *Postgres) ScanContacts(ctx context.Context) ([]integrity.ContactRecord, error) {
	rows, err := p.db.Query(ctx, scanContactsSQL)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var out []integrity.ContactRecord
	for rows.Next() {
		var c integrity.ContactRecord
		if err := rows.Scan(&c.ID, &c.VoyadoID, &c.FirstName, &c.LastName, &c.Email, &c.IsTeacher); err != nil {
			return nil, fmt.Errorf("scan contact record: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact records: %w", err)
	}
	return out, nil
}
