package ledger

import "github.com/shopspring/decimal"

// TotalDue recomputes a customer's outstanding balance as the sum of
// Outstanding() over all records. Paid records contribute zero. Pure and
// idempotent; call after every mutation to the record list, before
// persisting.
func TotalDue(records []Record) decimal.Decimal {
	total := decimal.Zero
	for i := range records {
		total = total.Add(records[i].Outstanding())
	}
	return total
}
