package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
)

// MemoryContact is a contact row as held by Memory.
type MemoryContact struct {
	integrity.ContactRecord
	// MergedIntoID is set when the contact was merged into another contact.
	MergedIntoID string `json:"mergedIntoId,omitempty"`
}

// Fixture is the JSON document loaded by LoadFixture.
type Fixture struct {
	Customers   []integrity.CustomerRecord    `json:"customers"`
	Contacts    []MemoryContact               `json:"contacts"`
	Assignments []integrity.TeacherAssignment `json:"assignments"`
}

// Memory is an in-memory RecordStore used by tests and fixture-driven CLI runs.
type Memory struct {
	mu          sync.RWMutex
	customers   []integrity.CustomerRecord
	contacts    []MemoryContact
	assignments []integrity.TeacherAssignment
}

var _ integrity.RecordStore = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryFromFixture creates a store holding the records of f.
func NewMemoryFromFixture(f Fixture) *Memory {
	m := NewMemory()
	for _, c := range f.Customers {
		m.AddCustomer(c)
	}
	for _, c := range f.Contacts {
		m.AddContact(c)
	}
	for _, a := range f.Assignments {
		m.AddAssignment(a)
	}
	return m
}

// LoadFixture reads a JSON fixture file into a new Memory store.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return NewMemoryFromFixture(f), nil
}

// AddCustomer stores a customer and returns its ID, generating one if empty.
func (m *Memory) AddCustomer(c integrity.CustomerRecord) string {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = append(m.customers, c)
	return c.ID
}

// AddContact stores a contact and returns its ID, generating one if empty.
func (m *Memory) AddContact(c MemoryContact) string {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, c)
	return c.ID
}

// AddAssignment stores a teacher-school assignment.
func (m *Memory) AddAssignment(a integrity.TeacherAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, a)
}

// SetPayer sets the payer of a customer by ID. An empty payerID clears it.
func (m *Memory) SetPayer(customerID, payerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].ID == customerID {
			if payerID == "" {
				m.customers[i].PayerCustomerID = nil
			} else {
				p := payerID
				m.customers[i].PayerCustomerID = &p
			}
			return true
		}
	}
	return false
}

func (m *Memory) ExistingCustomers(ctx context.Context) ([]integrity.CustomerRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []integrity.CustomerRef
	for _, c := range m.customers {
		if c.BCCustomerNumber == "" {
			continue
		}
		out = append(out, integrity.CustomerRef{
			ID:               c.ID,
			BCCustomerNumber: c.BCCustomerNumber,
			Name:             c.Name,
			Category:         c.Category,
		})
	}
	return out, nil
}

func (m *Memory) ExistingContacts(ctx context.Context) ([]integrity.ContactRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []integrity.ContactRef
	for _, c := range m.contacts {
		if c.MergedIntoID != "" || c.VoyadoID == "" {
			continue
		}
		out = append(out, integrity.ContactRef{
			ID:        c.ID,
			VoyadoID:  c.VoyadoID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
		})
	}
	return out, nil
}

func (m *Memory) TeacherAssignments(ctx context.Context, activeOnly bool) ([]integrity.TeacherAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []integrity.TeacherAssignment
	for _, a := range m.assignments {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) CustomerIdentifiers(ctx context.Context) ([]integrity.CustomerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]integrity.CustomerRecord, len(m.customers))
	copy(out, m.customers)
	return out, nil
}

func (m *Memory) ScanContacts(ctx context.Context) ([]integrity.ContactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []integrity.ContactRecord
	for _, c := range m.contacts {
		if c.MergedIntoID != "" {
			continue
		}
		out = append(out, c.ContactRecord)
	}
	return out, nil
}
