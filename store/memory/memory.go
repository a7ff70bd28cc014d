// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karat/ledger-engine/auth"
	"github.com/karat/ledger-engine/inventory"
	"github.com/karat/ledger-engine/ledger"
)

// Store implements ledger.CustomerStore, inventory.ItemStore and
// auth.UserStore with mutex-guarded maps. Versioning semantics match the
// sqlite store so tests exercise the same conflict paths.
type Store struct {
	mu         sync.RWMutex
	customers  map[ledger.CustomerID]*ledger.Customer
	items      map[inventory.ItemID]*inventory.Item
	users      map[string]auth.User
	nextCustID int
	nextItemID int
}

func New() *Store {
	return &Store{
		customers: make(map[ledger.CustomerID]*ledger.Customer),
		items:     make(map[inventory.ItemID]*inventory.Item),
		users:     make(map[string]auth.User),
	}
}

// =============================================================================
// CUSTOMER STORE
// =============================================================================

func (s *Store) ListCustomers(_ context.Context) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		result = append(result, cloneCustomer(c))
	}
	return result, nil
}

func (s *Store) GetCustomer(_ context.Context, id ledger.CustomerID) (ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return ledger.Customer{}, &ledger.NotFoundError{Kind: "customer", Key: string(id)}
	}
	return cloneCustomer(c), nil
}

func (s *Store) CreateCustomer(_ context.Context, fields ledger.CustomerFields) (ledger.CustomerID, error) {
	if err := fields.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCustID++
	id := ledger.CustomerID(fmt.Sprintf("cust-%d", s.nextCustID))
	s.customers[id] = &ledger.Customer{
		ID:          id,
		Name:        fields.Name,
		Address:     fields.Address,
		Phone:       fields.Phone,
		Email:       fields.Email,
		Description: fields.Description,
		TotalDue:    decimal.Zero,
		Credit:      decimal.Zero,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (s *Store) UpdateCustomerFields(_ context.Context, id ledger.CustomerID, fields ledger.CustomerFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "customer", Key: string(id)}
	}
	c.Name = fields.Name
	c.Address = fields.Address
	c.Phone = fields.Phone
	c.Email = fields.Email
	c.Description = fields.Description
	return nil
}

func (s *Store) SaveLedger(_ context.Context, id ledger.CustomerID, records []ledger.Record, totalDue, credit decimal.Decimal, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "customer", Key: string(id)}
	}
	if c.Version != expectedVersion {
		return ledger.ErrVersionConflict
	}
	c.Records = append([]ledger.Record(nil), records...)
	c.TotalDue = totalDue
	c.Credit = credit
	c.Version++
	return nil
}

func cloneCustomer(c *ledger.Customer) ledger.Customer {
	out := *c
	out.Records = append([]ledger.Record(nil), c.Records...)
	return out
}

// =============================================================================
// ITEM STORE
// =============================================================================

func (s *Store) ListItems(_ context.Context) ([]inventory.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]inventory.Item, 0, len(s.items))
	for _, it := range s.items {
		result = append(result, *it)
	}
	return result, nil
}

func (s *Store) FindItem(_ context.Context, key inventory.Key) (inventory.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items {
		if it.Key() == key {
			return *it, true, nil
		}
	}
	return inventory.Item{}, false, nil
}

func (s *Store) InsertItem(_ context.Context, item inventory.Item) (inventory.ItemID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	id := inventory.ItemID(fmt.Sprintf("item-%d", s.nextItemID))
	item.ID = id
	s.items[id] = &item
	return id, nil
}

func (s *Store) AddQuantity(_ context.Context, id inventory.ItemID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "item", Key: string(id)}
	}
	it.Quantity += delta
	return nil
}

// =============================================================================
// USER STORE
// =============================================================================

func (s *Store) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return auth.User{}, &ledger.NotFoundError{Kind: "user", Key: email}
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, user auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Email]; exists {
		return &ledger.ValidationError{Field: "email", Reason: "user already exists"}
	}
	s.users[user.Email] = user
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return &ledger.NotFoundError{Kind: "user", Key: email}
	}
	u.PasswordHash = passwordHash
	s.users[email] = u
	return nil
}
