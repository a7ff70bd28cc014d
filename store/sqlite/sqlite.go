/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.CustomerStore, inventory.ItemStore and auth.UserStore
  using SQLite. Customer records are stored the way the hosted document
  store held them: the whole record list as one JSON document column on the
  customer row, written atomically together with the cached total.

KEY TABLES:
  customers: contact fields + records JSON document + total_due + version
  items:     deduplicated stock buckets, UNIQUE(name, purity, weight_range)
  users:     admin accounts (bcrypt hashes)

OPTIMISTIC CONCURRENCY:
  SaveLedger compares-and-swaps on the version column:

    UPDATE customers SET records_json=?, total_due=?, credit=?,
           version=version+1 WHERE id=? AND version=?

  Zero rows affected means either the customer is gone (NotFoundError) or
  someone else wrote first (ErrVersionConflict). This closes the lost-update
  race of the original whole-document overwrite.

WAL MODE:
  Opened with WAL so readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: CustomerStore contract
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/karat/ledger-engine/auth"
	"github.com/karat/ledger-engine/inventory"
	"github.com/karat/ledger-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT NOT NULL,
		email TEXT,
		description TEXT,
		total_due TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		records_json TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);
	CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		purity TEXT NOT NULL,
		weight INTEGER NOT NULL,
		weight_range TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0
	);

	-- Dedup key: adding a matching item increments quantity instead of
	-- inserting a second bucket.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_dedup
		ON items(name, purity, weight_range);

	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CUSTOMER STORE
// =============================================================================

func (s *Store) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, email, description,
		       total_due, credit, records_json, version, created_at
		FROM customers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id ledger.CustomerID) (ledger.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, phone, email, description,
		       total_due, credit, records_json, version, created_at
		FROM customers WHERE id = ?`, string(id))

	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return ledger.Customer{}, &ledger.NotFoundError{Kind: "customer", Key: string(id)}
	}
	if err != nil {
		return ledger.Customer{}, err
	}
	return c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, fields ledger.CustomerFields) (ledger.CustomerID, error) {
	if err := fields.Validate(); err != nil {
		return "", err
	}

	id := ledger.CustomerID(uuid.NewString())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, address, phone, email, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(id), fields.Name, fields.Address, fields.Phone, fields.Email,
		fields.Description, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateCustomerFields(ctx context.Context, id ledger.CustomerID, fields ledger.CustomerFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name = ?, address = ?, phone = ?, email = ?, description = ?
		WHERE id = ?`,
		fields.Name, fields.Address, fields.Phone, fields.Email, fields.Description,
		string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "customer", Key: string(id)}
	}
	return nil
}

func (s *Store) SaveLedger(ctx context.Context, id ledger.CustomerID, records []ledger.Record, totalDue, credit decimal.Decimal, expectedVersion int64) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET records_json = ?, total_due = ?, credit = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(recordsJSON), totalDue.String(), credit.String(),
		string(id), expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the customer is gone or the version is stale.
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM customers WHERE id = ?`, string(id)).Scan(&exists)
		if err == sql.ErrNoRows {
			return &ledger.NotFoundError{Kind: "customer", Key: string(id)}
		}
		if err != nil {
			return err
		}
		return ledger.ErrVersionConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (ledger.Customer, error) {
	var (
		c                          ledger.Customer
		id                         string
		address, email, desc       sql.NullString
		totalDue, credit, recsJSON string
		createdAt                  string
	)
	err := row.Scan(&id, &c.Name, &address, &c.Phone, &email, &desc,
		&totalDue, &credit, &recsJSON, &c.Version, &createdAt)
	if err != nil {
		return ledger.Customer{}, err
	}

	c.ID = ledger.CustomerID(id)
	c.Address = address.String
	c.Email = email.String
	c.Description = desc.String

	if c.TotalDue, err = decimal.NewFromString(totalDue); err != nil {
		return ledger.Customer{}, fmt.Errorf("corrupt total_due for %s: %w", id, err)
	}
	if c.Credit, err = decimal.NewFromString(credit); err != nil {
		return ledger.Customer{}, fmt.Errorf("corrupt credit for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(recsJSON), &c.Records); err != nil {
		return ledger.Customer{}, fmt.Errorf("corrupt records for %s: %w", id, err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		c.CreatedAt = t
	}
	return c, nil
}

// =============================================================================
// ITEM STORE
// =============================================================================

func (s *Store) ListItems(ctx context.Context) ([]inventory.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, purity, weight, weight_range, quantity
		FROM items ORDER BY name, purity, weight`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Item
	for rows.Next() {
		var it inventory.Item
		var id string
		if err := rows.Scan(&id, &it.Name, &it.Purity, &it.Weight, &it.WeightRange, &it.Quantity); err != nil {
			return nil, err
		}
		it.ID = inventory.ItemID(id)
		result = append(result, it)
	}
	return result, rows.Err()
}

func (s *Store) FindItem(ctx context.Context, key inventory.Key) (inventory.Item, bool, error) {
	var it inventory.Item
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, purity, weight, weight_range, quantity
		FROM items WHERE name = ? AND purity = ? AND weight_range = ?`,
		key.Name, key.Purity, key.WeightRange).
		Scan(&id, &it.Name, &it.Purity, &it.Weight, &it.WeightRange, &it.Quantity)
	if err == sql.ErrNoRows {
		return inventory.Item{}, false, nil
	}
	if err != nil {
		return inventory.Item{}, false, err
	}
	it.ID = inventory.ItemID(id)
	return it, true, nil
}

func (s *Store) InsertItem(ctx context.Context, item inventory.Item) (inventory.ItemID, error) {
	id := inventory.ItemID(uuid.NewString())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, purity, weight, weight_range, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(id), item.Name, item.Purity, item.Weight, item.WeightRange, item.Quantity)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) AddQuantity(ctx context.Context, id inventory.ItemID, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET quantity = quantity + ? WHERE id = ?`, delta, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "item", Key: string(id)}
	}
	return nil
}

// =============================================================================
// USER STORE
// =============================================================================

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	var u auth.User
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT email, password_hash, admin, created_at
		FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.PasswordHash, &u.Admin, &createdAt)
	if err == sql.ErrNoRows {
		return auth.User{}, &ledger.NotFoundError{Kind: "user", Key: email}
	}
	if err != nil {
		return auth.User{}, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, user auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, admin, created_at)
		VALUES (?, ?, ?, ?)`,
		user.Email, user.PasswordHash, user.Admin,
		user.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, email)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "user", Key: email}
	}
	return nil
}
