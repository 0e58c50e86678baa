package integrity

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReferenceIndex is a read-only snapshot of existing business keys.
// It is built fresh for every validation run and passed explicitly to the
// validators; it is never shared between runs.
type ReferenceIndex struct {
	CustomersByBC    map[string]CustomerRef
	ContactsByVoyado map[string]ContactRef
	BuiltAt          time.Time
}

// NewReferenceIndex builds an index from already fetched records.
// Customers without a business key and merged contacts are skipped.
func NewReferenceIndex(customers []CustomerRef, contacts []ContactRef, builtAt time.Time) *ReferenceIndex {
	idx := &ReferenceIndex{
		CustomersByBC:    make(map[string]CustomerRef, len(customers)),
		ContactsByVoyado: make(map[string]ContactRef, len(contacts)),
		BuiltAt:          builtAt,
	}
	for _, c := range customers {
		if isBlank(c.BCCustomerNumber) {
			continue
		}
		idx.CustomersByBC[c.BCCustomerNumber] = c
	}
	for _, c := range contacts {
		if c.Merged || isBlank(c.VoyadoID) {
			continue
		}
		idx.ContactsByVoyado[c.VoyadoID] = c
	}
	return idx
}

// Customer looks up an existing customer by business key.
func (idx *ReferenceIndex) Customer(bc string) (CustomerRef, bool) {
	c, ok := idx.CustomersByBC[bc]
	return c, ok
}

// HasCustomer reports whether bc belongs to an existing customer.
func (idx *ReferenceIndex) HasCustomer(bc string) bool {
	_, ok := idx.CustomersByBC[bc]
	return ok
}

// HasContact reports whether voyadoID belongs to an existing, non-merged contact.
func (idx *ReferenceIndex) HasContact(voyadoID string) bool {
	_, ok := idx.ContactsByVoyado[voyadoID]
	return ok
}

// resolvesCustomer reports whether bc exists in the database or is created
// earlier or later in the same batch.
func (idx *ReferenceIndex) resolvesCustomer(bc string, newBC stringSet) bool {
	return idx.HasCustomer(bc) || newBC.has(bc)
}

// BuildReferenceIndex reads existing customers and contacts concurrently and
// indexes them by business key. Any read failure aborts the build.
func BuildReferenceIndex(ctx context.Context, rs RecordStore, now time.Time) (*ReferenceIndex, error) {
	var (
		customers []CustomerRef
		contacts  []ContactRef
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		customers, err = rs.ExistingCustomers(gctx)
		if err != nil {
			return fmt.Errorf("fetch existing customers: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		contacts, err = rs.ExistingContacts(gctx)
		if err != nil {
			return fmt.Errorf("fetch existing contacts: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build reference index: %w", err)
	}

	return NewReferenceIndex(customers, contacts, now), nil
}

// NewBCNumbers returns the business keys of customers created in the batch.
func NewBCNumbers(rows []CustomerRow) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range rows {
		if r.Action == ActionCreate && !isBlank(r.BCCustomerNumber) {
			set[r.BCCustomerNumber] = struct{}{}
		}
	}
	return set
}
