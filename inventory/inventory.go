/*
Package inventory tracks shop stock as deduplicated item buckets.

PURPOSE:
  Inventory items are not individual pieces: a 5.7g ring and a 5.3g ring of
  the same name and purity land in the same bucket. The identity key is
  (name, purity, weightRange), where weightRange is the continuous weight
  floored to an integer and paired with the next one ("5-6"). Adding an
  item that matches an existing key increments its quantity instead of
  creating a new row.

SEE ALSO:
  - store/memory, store/sqlite: ItemStore implementations
*/
package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/karat/ledger-engine/ledger"
)

// =============================================================================
// ITEM - Deduplicated stock bucket
// =============================================================================

type ItemID string

type Item struct {
	ID          ItemID `json:"id"`
	Name        string `json:"name"`
	Purity      string `json:"purity"`
	Weight      int    `json:"weight"`      // floor of the continuous weight
	WeightRange string `json:"weightRange"` // "{weight}-{weight+1}"
	Quantity    int    `json:"quantity"`
}

// Key is the dedup identity of an item bucket.
type Key struct {
	Name        string
	Purity      string
	WeightRange string
}

func (i Item) Key() Key {
	return Key{Name: i.Name, Purity: i.Purity, WeightRange: i.WeightRange}
}

// WeightRange buckets a continuous weight: floor to an integer, pair with
// the next one. 5.7 -> "5-6".
func WeightRange(rawWeight float64) (string, error) {
	if math.IsNaN(rawWeight) || math.IsInf(rawWeight, 0) || rawWeight <= 0 {
		return "", &ledger.ValidationError{Field: "weight", Reason: "weight must be a positive number"}
	}
	w := int(math.Floor(rawWeight))
	return fmt.Sprintf("%d-%d", w, w+1), nil
}

// =============================================================================
// STORE
// =============================================================================

// ItemStore persists item buckets. FindItem is an equality query on the
// dedup key.
type ItemStore interface {
	ListItems(ctx context.Context) ([]Item, error)
	FindItem(ctx context.Context, key Key) (Item, bool, error)
	InsertItem(ctx context.Context, item Item) (ItemID, error)
	AddQuantity(ctx context.Context, id ItemID, delta int) error
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store ItemStore
}

func NewService(store ItemStore) *Service {
	return &Service{Store: store}
}

// UpsertItem adds quantityDelta pieces to the bucket matching (name,
// purity, floor(rawWeight)), creating the bucket if absent. Returns the
// bucket after the update.
func (s *Service) UpsertItem(ctx context.Context, name, purity string, rawWeight float64, quantityDelta int) (Item, error) {
	if name == "" {
		return Item{}, &ledger.ValidationError{Field: "name", Reason: "name is required"}
	}
	if purity == "" {
		return Item{}, &ledger.ValidationError{Field: "purity", Reason: "purity is required"}
	}
	if quantityDelta <= 0 {
		return Item{}, &ledger.ValidationError{Field: "quantity", Reason: "quantity must be >= 1"}
	}
	weightRange, err := WeightRange(rawWeight)
	if err != nil {
		return Item{}, err
	}

	key := Key{Name: name, Purity: purity, WeightRange: weightRange}
	existing, found, err := s.Store.FindItem(ctx, key)
	if err != nil {
		return Item{}, err
	}
	if found {
		if err := s.Store.AddQuantity(ctx, existing.ID, quantityDelta); err != nil {
			return Item{}, err
		}
		existing.Quantity += quantityDelta
		return existing, nil
	}

	item := Item{
		Name:        name,
		Purity:      purity,
		Weight:      int(math.Floor(rawWeight)),
		WeightRange: weightRange,
		Quantity:    quantityDelta,
	}
	id, err := s.Store.InsertItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	item.ID = id
	return item, nil
}

// ListItems returns all buckets.
func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	return s.Store.ListItems(ctx)
}

// SummaryRow aggregates stock per (name, purity) across weight buckets.
type SummaryRow struct {
	Name     string `json:"name"`
	Purity   string `json:"purity"`
	Quantity int    `json:"quantity"`
}

// Summary totals quantity per (name, purity), sorted by name then purity.
func (s *Service) Summary(ctx context.Context) ([]SummaryRow, error) {
	items, err := s.Store.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	type groupKey struct{ name, purity string }
	totals := make(map[groupKey]int)
	for _, it := range items {
		totals[groupKey{it.Name, it.Purity}] += it.Quantity
	}

	rows := make([]SummaryRow, 0, len(totals))
	for k, qty := range totals {
		rows = append(rows, SummaryRow{Name: k.name, Purity: k.purity, Quantity: qty})
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].Name != rows[b].Name {
			return rows[a].Name < rows[b].Name
		}
		return rows[a].Purity < rows[b].Purity
	})
	return rows, nil
}
