/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the domain
  model from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - JSON keys are camelCase, matching the persisted document shape
    (billAmount, itemName, totalDue) so the API and the stored records
    speak one contract

MONEY ON THE WIRE:
  Monetary fields are decimal.Decimal, which marshals as a quoted decimal
  string and unmarshals from either a string or a JSON number. Amounts
  survive the round trip exactly; nothing passes through float64.

DATES ON THE WIRE:
  Responses use RFC3339. Requests accept anything the normalizer does
  ("2006-01-02", RFC3339, epoch seconds, store-native {seconds}); optional
  dates fall back to now.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/normalize.go: Input coercion rules
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/karat/ledger-engine/inventory"
	"github.com/karat/ledger-engine/ledger"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// =============================================================================
// CUSTOMERS
// =============================================================================

type CustomerDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address,omitempty"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	Description string          `json:"description,omitempty"`
	TotalDue    decimal.Decimal `json:"totalDue"`
	Credit      decimal.Decimal `json:"credit"`
	Records     []RecordDTO     `json:"records"`
	CreatedAt   string          `json:"createdAt,omitempty"`
}

type CustomerRequest struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

// =============================================================================
// RECORDS
// =============================================================================

type LineItemDTO struct {
	Name        string          `json:"itemName"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
}

type RecordDTO struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Item        string          `json:"item,omitempty"`
	Description string          `json:"description,omitempty"`
	Lines       []LineItemDTO   `json:"items,omitempty"`
	Bill        decimal.Decimal `json:"billAmount"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	Balance     decimal.Decimal `json:"balance"`
	Paid        bool            `json:"paid"`
	Date        string          `json:"date"`
	PaymentDate string          `json:"paymentDate,omitempty"`
}

// AddPurchaseRequest is the simple model: one item, one bill.
type AddPurchaseRequest struct {
	Item        string `json:"item"`
	Description string `json:"description"`
	BillAmount  any    `json:"billAmount"` // normalized, must be > 0
	AmountPaid  any    `json:"amountPaid"` // normalized, >= 0, defaults 0
	Date        any    `json:"date"`       // optional
}

// AddRecordRequest is the legacy model: line items plus a payment that may
// overflow onto prior dues.
type AddRecordRequest struct {
	Items      []LineItemDTO `json:"items"`
	AmountPaid any           `json:"amountPaid"`
	Date       any           `json:"date"` // optional
}

// AllocationDTO reports one slice of the overflow distribution.
type AllocationDTO struct {
	RecordID string          `json:"recordId"`
	Amount   decimal.Decimal `json:"amount"`
}

// AddRecordResponse returns the updated customer plus how the payment
// was distributed.
type AddRecordResponse struct {
	Customer CustomerDTO     `json:"customer"`
	SelfPaid decimal.Decimal `json:"selfPaid"`
	Applied  []AllocationDTO `json:"applied"`
	Credit   decimal.Decimal `json:"credit"`
}

// PaymentRequest records a payment against existing records. Exactly one
// of RecordID, Index, or Payments is used; Payments settles several
// records in one atomic batch.
type PaymentRequest struct {
	RecordID string                     `json:"recordId,omitempty"`
	Index    *int                       `json:"index,omitempty"`
	Amount   any                        `json:"amount,omitempty"`
	Payments map[string]decimal.Decimal `json:"payments,omitempty"`
	Date     any                        `json:"date,omitempty"`
}

// =============================================================================
// ITEMS
// =============================================================================

type ItemDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Purity      string `json:"purity"`
	Weight      int    `json:"weight"`
	WeightRange string `json:"weightRange"`
	Quantity    int    `json:"quantity"`
}

type UpsertItemRequest struct {
	Name     string  `json:"name"`
	Purity   string  `json:"purity"`
	Weight   float64 `json:"weight"`
	Quantity int     `json:"quantity"` // defaults to 1
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRecordDTO(r ledger.Record) RecordDTO {
	dto := RecordDTO{
		ID:          string(r.ID),
		Kind:        string(r.Kind),
		Item:        r.Item,
		Description: r.ItemDescription,
		Bill:        r.Bill(),
		AmountPaid:  r.AmountPaid,
		Balance:     r.Balance,
		Paid:        r.Paid,
		Date:        r.Date.Format(time.RFC3339),
	}
	if r.PaymentDate != nil {
		dto.PaymentDate = r.PaymentDate.Format(time.RFC3339)
	}
	for _, li := range r.Lines {
		dto.Lines = append(dto.Lines, LineItemDTO{
			Name:        li.Name,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
		})
	}
	return dto
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	dto := CustomerDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Address:     c.Address,
		Phone:       c.Phone,
		Email:       c.Email,
		Description: c.Description,
		TotalDue:    c.TotalDue,
		Credit:      c.Credit,
		Records:     make([]RecordDTO, 0, len(c.Records)),
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	for _, r := range c.Records {
		dto.Records = append(dto.Records, toRecordDTO(r))
	}
	return dto
}

func toItemDTO(it inventory.Item) ItemDTO {
	return ItemDTO{
		ID:          string(it.ID),
		Name:        it.Name,
		Purity:      it.Purity,
		Weight:      it.Weight,
		WeightRange: it.WeightRange,
		Quantity:    it.Quantity,
	}
}

func fromLineItemDTOs(in []LineItemDTO) []ledger.LineItem {
	lines := make([]ledger.LineItem, 0, len(in))
	for _, li := range in {
		lines = append(lines, ledger.LineItem{
			Name:        li.Name,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
		})
	}
	return lines
}
