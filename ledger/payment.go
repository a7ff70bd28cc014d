/*
payment.go - Direct payments against existing records

PURPOSE:
  Applies a payment straight to a specific, already-existing record (not
  tied to a new purchase). Used by the simple single-bill model and by the
  installment-payment screen of the legacy model.

  Single-record payments target a record by index (simple-model API parity)
  or by stable ID. Batch payments take a map of record ID to amount and
  apply all-or-nothing, matching the legacy payment form which capped each
  entry at the record's balance.

OVERPAYMENT:
  Paying more than the record's outstanding balance follows the same
  OverflowPolicy as allocation: reject (default), credit the residue to the
  customer, or legacy absorb where AmountPaid silently retains the excess
  while the balance floors at zero.

SEE ALSO:
  - allocate.go: Overflow allocation for new purchases
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentResult is the atomic outcome of a direct payment. Records and
// NewTotalDue must be persisted together in one write.
type PaymentResult struct {
	Records     []Record
	NewTotalDue decimal.Decimal
	Applied     decimal.Decimal
	Credit      decimal.Decimal // non-zero only under OverflowCredit
}

// ApplyPayment applies amount against the record at index. The input slice
// is not modified; the updated list is returned.
func ApplyPayment(records []Record, index int, amount decimal.Decimal, paymentDate time.Time, policy OverflowPolicy) (PaymentResult, error) {
	if index < 0 || index >= len(records) {
		return PaymentResult{}, &NotFoundError{Kind: "record", Key: fmt.Sprintf("index %d", index)}
	}
	return applyPaymentAt(records, index, amount, paymentDate, policy)
}

// ApplyPaymentByID is ApplyPayment keyed by the record's stable identifier.
func ApplyPaymentByID(records []Record, id RecordID, amount decimal.Decimal, paymentDate time.Time, policy OverflowPolicy) (PaymentResult, error) {
	for i := range records {
		if records[i].ID == id {
			return applyPaymentAt(records, i, amount, paymentDate, policy)
		}
	}
	return PaymentResult{}, &NotFoundError{Kind: "record", Key: string(id)}
}

func applyPaymentAt(records []Record, index int, amount decimal.Decimal, paymentDate time.Time, policy OverflowPolicy) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, &ValidationError{Field: "amount", Reason: "payment amount must be > 0"}
	}
	if policy == "" {
		policy = OverflowReject
	}

	updated := append([]Record(nil), records...)
	rec := &updated[index]

	outstanding := rec.Outstanding()
	excess := amount.Sub(outstanding)

	credit := decimal.Zero
	applied := amount
	if excess.IsPositive() {
		switch policy {
		case OverflowCredit:
			applied = outstanding
			credit = excess
		case OverflowAbsorb:
			// Legacy gap: AmountPaid keeps the excess, balance floors
			// at zero, conservation breaks by exactly the excess.
			rec.AmountPaid = rec.AmountPaid.Add(amount)
			rec.Balance = decimal.Zero
			rec.Paid = true
			d := paymentDate
			rec.PaymentDate = &d
			return PaymentResult{
				Records:     updated,
				NewTotalDue: TotalDue(updated),
				Applied:     amount,
			}, nil
		default:
			return PaymentResult{}, &ExcessPaymentError{Excess: excess, Outstanding: outstanding}
		}
	}

	rec.pay(applied, paymentDate)

	return PaymentResult{
		Records:     updated,
		NewTotalDue: TotalDue(updated),
		Applied:     applied,
		Credit:      credit,
	}, nil
}

// ApplyPayments applies several payments, keyed by record ID, in one
// atomic pass. Every entry is validated first: unknown IDs, non-positive
// amounts, and amounts above the record's outstanding balance fail the
// whole batch before anything is mutated.
func ApplyPayments(records []Record, payments map[RecordID]decimal.Decimal, paymentDate time.Time) (PaymentResult, error) {
	if len(payments) == 0 {
		return PaymentResult{}, &ValidationError{Field: "payments", Reason: "at least one payment is required"}
	}

	index := make(map[RecordID]int, len(records))
	for i := range records {
		index[records[i].ID] = i
	}

	// Validate everything up front.
	for id, amount := range payments {
		i, ok := index[id]
		if !ok {
			return PaymentResult{}, &NotFoundError{Kind: "record", Key: string(id)}
		}
		if !amount.IsPositive() {
			return PaymentResult{}, &ValidationError{Field: "amount", Reason: "payment amount must be > 0"}
		}
		if amount.GreaterThan(records[i].Outstanding()) {
			return PaymentResult{}, &ExcessPaymentError{
				Excess:      amount.Sub(records[i].Outstanding()),
				Outstanding: records[i].Outstanding(),
			}
		}
	}

	updated := append([]Record(nil), records...)
	total := decimal.Zero
	for id, amount := range payments {
		rec := &updated[index[id]]
		rec.pay(amount, paymentDate)
		total = total.Add(amount)
	}

	return PaymentResult{
		Records:     updated,
		NewTotalDue: TotalDue(updated),
		Applied:     total,
	}, nil
}
