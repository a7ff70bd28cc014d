/*
allocate.go - Purchase recording with FIFO overflow allocation

PURPOSE:
  The hard part of the ledger. When a customer makes a new multi-item
  purchase and hands over a payment, the payment first settles the new
  purchase itself; anything beyond the new bill overflows onto the
  customer's prior outstanding records, oldest first.

ALGORITHM:
  1. Validate every line (quantity >= 1, price >= 0) and the payment
     amount BEFORE touching any state.
  2. totalBill = sum of line totals
     selfPaid  = min(amountPaidNow, totalBill)
     overflow  = amountPaidNow - selfPaid
  3. Sort the customer's other unpaid records by date ascending (stable,
     ties keep insertion order) and drain overflow into them FIFO.
  4. Residual overflow after every record is settled is governed by an
     explicit OverflowPolicy. The legacy system silently dropped it; here
     the default rejects the whole operation, and a credit policy carries
     it forward on the customer instead.
  5. Return the rebuilt record list (prior records keep their positions,
     new record appended) together with the recomputed total due. The
     caller persists list + total in a single versioned write.

INVARIANTS:
  - Conservation: pre-op dues + totalBill == post-op dues + selfPaid +
    distributed overflow (+ credited residue under OverflowCredit).
  - Monotonicity: no prior record's balance increases; no AmountPaid
    decreases.
  - Determinism: identical inputs produce identical allocation, including
    the order of AppliedPayment entries.

SEE ALSO:
  - payment.go: Direct payments against a specific record
  - dues.go: Total-due aggregation
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERFLOW POLICY
// =============================================================================

// OverflowPolicy decides what happens to payment that exceeds everything
// it could settle (the new bill plus all outstanding records).
type OverflowPolicy string

const (
	// OverflowReject fails the operation with ExcessPaymentError.
	// Nothing is mutated. This is the default.
	OverflowReject OverflowPolicy = "reject"

	// OverflowCredit carries the residue forward as customer credit.
	OverflowCredit OverflowPolicy = "credit"

	// OverflowAbsorb silently drops the residue. This reproduces the
	// legacy behavior and exists so the boundary case stays testable;
	// do not use it for new flows.
	OverflowAbsorb OverflowPolicy = "absorb"
)

// =============================================================================
// ALLOCATION
// =============================================================================

// AppliedPayment records one slice of the overflow distribution.
type AppliedPayment struct {
	RecordID RecordID
	Amount   decimal.Decimal
}

// AllocationResult is the atomic outcome of RecordPurchaseWithPayment.
// Records and NewTotalDue must be persisted together in one write.
type AllocationResult struct {
	Records     []Record
	NewRecord   Record
	NewTotalDue decimal.Decimal
	SelfPaid    decimal.Decimal
	Applied     []AppliedPayment
	Credit      decimal.Decimal // non-zero only under OverflowCredit
}

// RecordPurchaseWithPayment adds a multi-item purchase paid with
// amountPaidNow and distributes any overflow across the customer's prior
// outstanding records, oldest first. The input slice is not modified.
func RecordPurchaseWithPayment(records []Record, lines []LineItem, amountPaidNow decimal.Decimal, purchaseDate time.Time, policy OverflowPolicy) (AllocationResult, error) {
	if err := validateLines(lines); err != nil {
		return AllocationResult{}, err
	}
	if amountPaidNow.IsNegative() {
		return AllocationResult{}, &ValidationError{Field: "amountPaid", Reason: "amount paid must be >= 0"}
	}
	if policy == "" {
		policy = OverflowReject
	}

	totalBill := decimal.Zero
	for _, li := range lines {
		totalBill = totalBill.Add(li.Total())
	}

	selfPaid := decimal.Min(amountPaidNow, totalBill)
	selfBalance := totalBill.Sub(selfPaid)
	overflow := amountPaidNow.Sub(selfPaid)

	newRecord := Record{
		ID:         NewRecordID(),
		Kind:       KindMultiItem,
		Lines:      append([]LineItem(nil), lines...),
		TotalBill:  totalBill,
		AmountPaid: selfPaid,
		Balance:    selfBalance,
		Paid:       selfBalance.IsZero(),
		Date:       purchaseDate,
	}

	// Work on a copy so a rejected overflow leaves the caller's state
	// untouched.
	updated := append([]Record(nil), records...)

	applied, residue := drainOverflow(updated, overflow, purchaseDate)

	credit := decimal.Zero
	if residue.IsPositive() {
		switch policy {
		case OverflowCredit:
			credit = residue
		case OverflowAbsorb:
			// Legacy gap: the residue vanishes.
		default:
			outstanding := TotalDue(records).Add(totalBill)
			return AllocationResult{}, &ExcessPaymentError{Excess: residue, Outstanding: outstanding}
		}
	}

	updated = append(updated, newRecord)

	return AllocationResult{
		Records:     updated,
		NewRecord:   newRecord,
		NewTotalDue: TotalDue(updated),
		SelfPaid:    selfPaid,
		Applied:     applied,
		Credit:      credit,
	}, nil
}

// drainOverflow applies overflow FIFO across the unpaid records in updated,
// mutating them in place. Returns the distribution and whatever is left.
func drainOverflow(updated []Record, overflow decimal.Decimal, date time.Time) ([]AppliedPayment, decimal.Decimal) {
	if !overflow.IsPositive() {
		return nil, overflow
	}

	// Indices of unpaid records, ordered by date ascending. sort.SliceStable
	// keeps insertion order for same-day records.
	order := make([]int, 0, len(updated))
	for i := range updated {
		if updated[i].Outstanding().IsPositive() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return CanonicalDate(updated[order[a]].Date).Before(CanonicalDate(updated[order[b]].Date))
	})

	var applied []AppliedPayment
	for _, i := range order {
		if !overflow.IsPositive() {
			break
		}
		rec := &updated[i]
		pay := decimal.Min(overflow, rec.Outstanding())
		rec.pay(pay, date)
		overflow = overflow.Sub(pay)
		applied = append(applied, AppliedPayment{RecordID: rec.ID, Amount: pay})
	}
	return applied, overflow
}

func validateLines(lines []LineItem) error {
	if len(lines) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one line item is required"}
	}
	for _, li := range lines {
		if li.Name == "" {
			return &ValidationError{Field: "itemName", Reason: "line item name is required"}
		}
		if li.Quantity < 1 {
			return &ValidationError{Field: "quantity", Reason: "quantity must be >= 1"}
		}
		if li.UnitPrice.IsNegative() {
			return &ValidationError{Field: "price", Reason: "unit price must be >= 0"}
		}
	}
	return nil
}
