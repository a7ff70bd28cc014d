/*
handlers.go - HTTP API handlers for the jewellery ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/login                        Login, returns JWT
    POST   /api/password                     Change own password

  Customers:
    GET    /api/customers                    List all customers
    GET    /api/customers/search?q=          Substring search (name/address/phone)
    POST   /api/customers                    Create customer
    GET    /api/customers/{id}               Customer with records
    PUT    /api/customers/{id}               Update contact fields
    POST   /api/customers/{id}/purchases     Add simple purchase
    POST   /api/customers/{id}/records       Add multi-item record + allocation
    POST   /api/customers/{id}/payments      Record payment(s)

  Items:
    GET    /api/items                        List inventory buckets
    POST   /api/items                        Upsert item
    GET    /api/items/summary                Totals per (name, purity)

REQUEST FLOW:
  parse -> validate -> domain call -> versioned save -> JSON response.
  Ledger mutations re-read and re-apply once on a version conflict; a
  second conflict surfaces as 409.

ERROR HANDLING:
  - 400: validation / normalization failures
  - 401: missing or invalid credentials
  - 403: authenticated but not admin
  - 404: customer / record / item not found
  - 409: version conflict, rejected excess payment
  - 500: persistence failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/karat/ledger-engine/auth"
	"github.com/karat/ledger-engine/inventory"
	"github.com/karat/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Customers ledger.CustomerStore
	Inventory *inventory.Service
	Auth      *auth.Service

	// Overflow governs what happens to payment that exceeds everything
	// it could settle. Defaults to ledger.OverflowReject.
	Overflow ledger.OverflowPolicy
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(customers ledger.CustomerStore, inv *inventory.Service, authSvc *auth.Service) *Handler {
	return &Handler{
		Customers: customers,
		Inventory: inv,
		Auth:      authSvc,
		Overflow:  ledger.OverflowReject,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login verifies credentials and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required", nil)
		return
	}

	token, ident, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Email: ident.Email, Admin: ident.Admin})
}

// ChangePassword reauthenticates and updates the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Both old and new password are required", nil)
		return
	}

	err := h.Auth.ChangePassword(r.Context(), ident.Email, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Old password is incorrect", nil)
			return
		}
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Customers.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SearchCustomers performs case-insensitive substring matching over
// name, address and phone.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusOK, []CustomerDTO{})
		return
	}

	customers, err := h.Customers.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search customers", err)
		return
	}

	lower := strings.ToLower(term)
	dtos := make([]CustomerDTO, 0)
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), lower) ||
			strings.Contains(strings.ToLower(c.Address), lower) ||
			strings.Contains(strings.ToLower(c.Phone), lower) {
			dtos = append(dtos, toCustomerDTO(c))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a customer with an empty ledger.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Customers.CreateCustomer(r.Context(), ledger.CustomerFields{
		Name:        strings.TrimSpace(req.Name),
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	customer, err := h.Customers.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(customer))
}

// GetCustomer returns a single customer with records.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	customer, err := h.Customers.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// UpdateCustomer updates contact fields only; the ledger is untouched.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	var req CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Customers.UpdateCustomerFields(r.Context(), id, ledger.CustomerFields{
		Name:        strings.TrimSpace(req.Name),
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	customer, err := h.Customers.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// AddPurchase appends a simple-model purchase to the customer's ledger.
func (h *Handler) AddPurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	var req AddPurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	billAmount, err := ledger.NormalizeBillAmount(req.BillAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	amountPaid := decimal.Zero
	if req.AmountPaid != nil {
		if amountPaid, err = ledger.NormalizeAmount(req.AmountPaid); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	date := ledger.DateOrNow(req.Date)

	customer, err := h.mutateLedger(r, id, func(c ledger.Customer) ([]ledger.Record, decimal.Decimal, decimal.Decimal, error) {
		rec, err := ledger.NewPurchase(strings.TrimSpace(req.Item), req.Description, billAmount, amountPaid, date)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, err
		}
		records := append(append([]ledger.Record(nil), c.Records...), rec)
		return records, ledger.TotalDue(records), c.Credit, nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(customer))
}

// AddRecord adds a multi-item record and distributes any overflow payment
// across the customer's prior outstanding records, oldest first.
func (h *Handler) AddRecord(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	var req AddRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amountPaid := decimal.Zero
	if req.AmountPaid != nil {
		var err error
		if amountPaid, err = ledger.NormalizeAmount(req.AmountPaid); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	date := ledger.DateOrNow(req.Date)
	lines := fromLineItemDTOs(req.Items)

	var result ledger.AllocationResult
	customer, err := h.mutateLedger(r, id, func(c ledger.Customer) ([]ledger.Record, decimal.Decimal, decimal.Decimal, error) {
		var err error
		result, err = ledger.RecordPurchaseWithPayment(c.Records, lines, amountPaid, date, h.Overflow)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, err
		}
		return result.Records, result.NewTotalDue, c.Credit.Add(result.Credit), nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := AddRecordResponse{
		Customer: toCustomerDTO(customer),
		SelfPaid: result.SelfPaid,
		Credit:   result.Credit,
		Applied:  make([]AllocationDTO, 0, len(result.Applied)),
	}
	for _, ap := range result.Applied {
		resp.Applied = append(resp.Applied, AllocationDTO{RecordID: string(ap.RecordID), Amount: ap.Amount})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// RecordPayment applies a payment to existing records: a single record by
// stable id or index, or several records in one atomic batch.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date := ledger.DateOrNow(req.Date)

	customer, err := h.mutateLedger(r, id, func(c ledger.Customer) ([]ledger.Record, decimal.Decimal, decimal.Decimal, error) {
		var (
			res ledger.PaymentResult
			err error
		)
		switch {
		case len(req.Payments) > 0:
			payments := make(map[ledger.RecordID]decimal.Decimal, len(req.Payments))
			for rid, amount := range req.Payments {
				payments[ledger.RecordID(rid)] = amount
			}
			res, err = ledger.ApplyPayments(c.Records, payments, date)
		case req.RecordID != "":
			amount, aerr := ledger.NormalizeAmount(req.Amount)
			if aerr != nil {
				return nil, decimal.Zero, decimal.Zero, aerr
			}
			res, err = ledger.ApplyPaymentByID(c.Records, ledger.RecordID(req.RecordID), amount, date, h.Overflow)
		case req.Index != nil:
			amount, aerr := ledger.NormalizeAmount(req.Amount)
			if aerr != nil {
				return nil, decimal.Zero, decimal.Zero, aerr
			}
			res, err = ledger.ApplyPayment(c.Records, *req.Index, amount, date, h.Overflow)
		default:
			return nil, decimal.Zero, decimal.Zero,
				&ledger.ValidationError{Field: "payment", Reason: "recordId, index, or payments is required"}
		}
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, err
		}
		return res.Records, res.NewTotalDue, c.Credit.Add(res.Credit), nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// mutateLedger runs a read-modify-write against one customer document.
// On a version conflict the read and the mutation are replayed once; a
// second conflict propagates to the caller.
func (h *Handler) mutateLedger(r *http.Request, id ledger.CustomerID, fn func(ledger.Customer) ([]ledger.Record, decimal.Decimal, decimal.Decimal, error)) (ledger.Customer, error) {
	ctx := r.Context()
	for attempt := 0; ; attempt++ {
		customer, err := h.Customers.GetCustomer(ctx, id)
		if err != nil {
			return ledger.Customer{}, err
		}
		records, totalDue, credit, err := fn(customer)
		if err != nil {
			return ledger.Customer{}, err
		}
		err = h.Customers.SaveLedger(ctx, id, records, totalDue, credit, customer.Version)
		if err == nil {
			return h.Customers.GetCustomer(ctx, id)
		}
		if !ledger.IsConflict(err) || attempt > 0 {
			return ledger.Customer{}, err
		}
	}
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns all inventory buckets.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Inventory.ListItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertItem adds stock, deduplicating on (name, purity, weight range).
func (h *Handler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.Inventory.UpsertItem(r.Context(), strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Purity), req.Weight, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// ItemSummary returns stock totals per (name, purity).
func (h *Handler) ItemSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Inventory.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize items", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON decodes with UseNumber so monetary inputs reach the
// normalizer as json.Number, not float64.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Error = fmt.Sprintf("%s: %v", msg, err)
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsConflict(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, ledger.ErrExcessPayment):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "excess_payment"})
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case ledger.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
