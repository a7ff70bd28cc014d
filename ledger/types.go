/*
Package ledger provides the core customer-ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking what a
  customer owes: purchase records, installment payments, deterministic
  FIFO allocation of overflow payments, and total-dues aggregation. It has
  no knowledge of HTTP or of any concrete database.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: A single purchase on a customer's ledger. Tagged variant -
    either a simple one-bill purchase or a legacy multi-line record.
  - LineItem: One line of a multi-line record (name, quantity, unit price)
  - Customer: The document root - owns its records exclusively
  - Timestamp: The document store's native timestamp export form

DESIGN PRINCIPLES:
  1. Precision: All money is decimal.Decimal, never float64
  2. Stable identity: Every record gets a uuid at creation. Payments target
     records by ID, never by matching date+total+balance.
  3. Conservation: AmountPaid + Balance == bill total on every record,
     maintained by construction and by the pay() helper.
  4. Derived totals: Customer.TotalDue is a cache of TotalDue(records),
     recomputed after every mutation before persisting.

SEE ALSO:
  - allocate.go: Purchase-with-payment and FIFO overflow allocation
  - payment.go: Direct payments against existing records
  - normalize.go: Date and amount coercion
  - errors.go: Error types
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type RecordID string

// NewRecordID generates a stable identifier for a new record.
func NewRecordID() RecordID {
	return RecordID(uuid.NewString())
}

// =============================================================================
// TIMESTAMP - Document store native timestamp form
// =============================================================================

// Timestamp is the shape the document store uses when exporting dates
// (epoch seconds plus nanos). NormalizeDate resolves this form before any
// generic parsing; a Timestamp is never a valid input to time.Parse.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int64 `json:"nanos,omitempty"`
}

func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, ts.Nanos).UTC()
}

// =============================================================================
// RECORD - Tagged purchase variant
// =============================================================================

type RecordKind string

const (
	// KindPurchase is the simple model: one item, one bill.
	KindPurchase RecordKind = "purchase"
	// KindMultiItem is the legacy model: a list of line items totalled
	// into a single bill.
	KindMultiItem RecordKind = "record"
)

// LineItem is one line of a multi-item record.
type LineItem struct {
	Name        string          `json:"itemName"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
}

// Total returns quantity x unit price for this line.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Record is a single entry on a customer's ledger.
//
// Exactly one of the two shapes is populated, selected by Kind:
//   - KindPurchase:  Item / ItemDescription / BillAmount
//   - KindMultiItem: Lines / TotalBill
//
// The payment state (AmountPaid, Balance, Paid) is shared and obeys the
// conservation invariant AmountPaid + Balance == Bill() at all times.
type Record struct {
	ID   RecordID   `json:"id"`
	Kind RecordKind `json:"kind"`

	// Simple purchase fields.
	Item            string          `json:"item,omitempty"`
	ItemDescription string          `json:"itemDescription,omitempty"`
	BillAmount      decimal.Decimal `json:"billAmount"`

	// Multi-item fields.
	Lines     []LineItem      `json:"items,omitempty"`
	TotalBill decimal.Decimal `json:"totalBill"`

	// Payment state.
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	Balance     decimal.Decimal `json:"balance"`
	Paid        bool            `json:"paid"`
	Date        time.Time       `json:"date"`
	PaymentDate *time.Time      `json:"paymentDate,omitempty"`
}

// Bill returns the full bill amount regardless of record shape.
func (r *Record) Bill() decimal.Decimal {
	if r.Kind == KindMultiItem {
		return r.TotalBill
	}
	return r.BillAmount
}

// Outstanding returns the unpaid portion of the bill. Paid records
// contribute zero.
func (r *Record) Outstanding() decimal.Decimal {
	return r.Balance
}

// pay applies amount against this record's balance and stamps the payment
// date. The caller guarantees 0 < amount <= Balance; conservation holds
// because the same amount moves from Balance to AmountPaid.
func (r *Record) pay(amount decimal.Decimal, date time.Time) {
	r.AmountPaid = r.AmountPaid.Add(amount)
	r.Balance = r.Balance.Sub(amount)
	r.Paid = r.Balance.IsZero()
	d := date
	r.PaymentDate = &d
}

// NewPurchase builds a simple-model record. billAmount must be positive;
// amountPaid must be within [0, billAmount]. The balance is derived and
// the record gets a fresh ID.
func NewPurchase(item, description string, billAmount, amountPaid decimal.Decimal, date time.Time) (Record, error) {
	if item == "" {
		return Record{}, &ValidationError{Field: "item", Reason: "item is required"}
	}
	if !billAmount.IsPositive() {
		return Record{}, &ValidationError{Field: "billAmount", Reason: "bill amount must be > 0"}
	}
	if amountPaid.IsNegative() {
		return Record{}, &ValidationError{Field: "amountPaid", Reason: "amount paid must be >= 0"}
	}
	if amountPaid.GreaterThan(billAmount) {
		return Record{}, &ValidationError{Field: "amountPaid", Reason: "amount paid exceeds bill amount"}
	}
	balance := billAmount.Sub(amountPaid)
	return Record{
		ID:              NewRecordID(),
		Kind:            KindPurchase,
		Item:            item,
		ItemDescription: description,
		BillAmount:      billAmount,
		AmountPaid:      amountPaid,
		Balance:         balance,
		Paid:            balance.IsZero(),
		Date:            date,
	}, nil
}

// =============================================================================
// CUSTOMER - Document root
// =============================================================================

// Customer is the unit of persistence: one document per customer, owning
// its records. Version supports optimistic concurrency on whole-document
// writes; a save with a stale version is rejected by the store.
type Customer struct {
	ID          CustomerID      `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address,omitempty"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	Description string          `json:"description,omitempty"`
	TotalDue    decimal.Decimal `json:"totalDue"`
	Credit      decimal.Decimal `json:"credit"`
	Records     []Record        `json:"records"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RecordByID returns a pointer into Records, or nil.
func (c *Customer) RecordByID(id RecordID) *Record {
	for i := range c.Records {
		if c.Records[i].ID == id {
			return &c.Records[i]
		}
	}
	return nil
}
