/*
store.go - Persistence interface for customer ledger documents

PURPOSE:
  Defines the boundary between the ledger engine and the database. The
  engine treats persistence as a document store keyed by customer id: reads
  return the whole customer (records embedded), and every ledger mutation
  writes the entire updated record list plus the recomputed total in ONE
  call. There is no partial-field merge of records.

OPTIMISTIC CONCURRENCY:
  The original system did whole-document read-modify-write with no version
  check, so two concurrent operations on the same customer could silently
  lose one update. SaveLedger takes the version the caller read; a stale
  version fails with ErrVersionConflict and the caller re-reads and
  re-applies.

IMPLEMENTATIONS:
  - store/memory: mutex-guarded maps, used by tests and dev
  - store/sqlite: records as a JSON document column, CAS on a version column

SEE ALSO:
  - store/memory/memory.go
  - store/sqlite/sqlite.go
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// CustomerFields is the mutable contact portion of a customer document.
// Ledger state (records, totals, credit) is written only through SaveLedger.
type CustomerFields struct {
	Name        string
	Address     string
	Phone       string
	Email       string
	Description string
}

// Validate enforces the required fields of the customer form.
func (f CustomerFields) Validate() error {
	if f.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if f.Phone == "" {
		return &ValidationError{Field: "phone", Reason: "phone is required"}
	}
	return nil
}

// CustomerStore persists customer documents.
type CustomerStore interface {
	// ListCustomers returns all customers with their records.
	ListCustomers(ctx context.Context) ([]Customer, error)

	// GetCustomer returns one customer. Missing id yields a NotFoundError.
	GetCustomer(ctx context.Context, id CustomerID) (Customer, error)

	// CreateCustomer creates a customer with no records and zero dues,
	// returning the store-assigned id.
	CreateCustomer(ctx context.Context, fields CustomerFields) (CustomerID, error)

	// UpdateCustomerFields updates contact fields only.
	UpdateCustomerFields(ctx context.Context, id CustomerID, fields CustomerFields) error

	// SaveLedger atomically replaces the record list, the cached total
	// due, and the carried credit. expectedVersion is the version the
	// caller read; a mismatch fails with ErrVersionConflict and nothing
	// is written.
	SaveLedger(ctx context.Context, id CustomerID, records []Record, totalDue, credit decimal.Decimal, expectedVersion int64) error
}
