// Package postgres provides bun-backed OrderStore and StockStore
// implementations. The stock reservation runs check-then-reserve inside a
// single database transaction so concurrent reservations against the same
// unit cannot both succeed.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/barefootzenith/supportmesh/store"
)

// Config holds the Postgres connection settings.
type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	ConnTimeout  time.Duration `envconfig:"CONN_TIMEOUT" split_words:"true" default:"10s"`
}

// Open connects to Postgres and returns a bun handle.
func Open(cfg Config) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithTimeout(cfg.ConnTimeout),
	))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID       string    `bun:"order_id,pk"`
	UserID        string    `bun:"user_id"`
	PurchaseDate  time.Time `bun:"purchase_date"`
	Status        string    `bun:"status"`
	RefundTxnID   string    `bun:"refund_transaction_id,nullzero"`
	RefundDate    time.Time `bun:"refund_date,nullzero"`
	RefundAmount  float64   `bun:"refund_amount,nullzero"`
}

type orderItemRow struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID      int64   `bun:"id,pk,autoincrement"`
	OrderID string  `bun:"order_id"`
	Name    string  `bun:"name"`
	Price   float64 `bun:"price"`
	SKU     string  `bun:"sku,nullzero"`
}

type stockRow struct {
	bun.BaseModel `bun:"table:stock,alias:s"`

	SKU      string `bun:"sku,pk"`
	Quantity int    `bun:"quantity"`
	Reserved int    `bun:"reserved"`
}

// OrderStore implements store.OrderStore on Postgres.
type OrderStore struct {
	db *bun.DB
}

// NewOrderStore constructs an OrderStore over an open bun handle.
func NewOrderStore(db *bun.DB) *OrderStore { return &OrderStore{db: db} }

// Get implements store.OrderStore.
func (s *OrderStore) Get(ctx context.Context, orderID string) (store.Order, error) {
	var row orderRow
	err := s.db.NewSelect().Model(&row).Where("o.order_id = ?", orderID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Order{}, store.ErrNotFound
		}
		return store.Order{}, fmt.Errorf("select order: %w", err)
	}

	var items []orderItemRow
	if err := s.db.NewSelect().Model(&items).Where("oi.order_id = ?", orderID).Order("oi.id ASC").Scan(ctx); err != nil {
		return store.Order{}, fmt.Errorf("select order items: %w", err)
	}

	return toOrder(row, items), nil
}

// UpdateStatus implements store.OrderStore. The transition is guarded by a
// conditional update: orders already in a terminal refund state are left
// untouched and reported as a conflict.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, newStatus store.OrderStatus, transactionID string) error {
	res, err := s.db.NewUpdate().
		Model((*orderRow)(nil)).
		Set("status = ?", string(newStatus)).
		Set("refund_transaction_id = ?", transactionID).
		Set("refund_date = ?", time.Now().UTC()).
		Where("order_id = ?", orderID).
		Where("status NOT IN (?)", bun.In([]string{string(store.StatusReturned), string(store.StatusCancelled)})).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := s.db.NewSelect().Model((*orderRow)(nil)).Where("order_id = ?", orderID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	return nil
}

func toOrder(row orderRow, items []orderItemRow) store.Order {
	o := store.Order{
		ID:           row.OrderID,
		UserID:       row.UserID,
		PurchaseDate: row.PurchaseDate,
		Status:       store.OrderStatus(row.Status),
	}
	for _, it := range items {
		o.Items = append(o.Items, store.OrderItem{Name: it.Name, Price: it.Price, SKU: it.SKU})
	}
	if row.RefundTxnID != "" {
		o.Refund = &store.RefundRecord{
			TransactionID: row.RefundTxnID,
			Date:          row.RefundDate,
			Amount:        row.RefundAmount,
		}
	}
	return o
}

// StockStore implements store.StockStore on Postgres.
type StockStore struct {
	db *bun.DB
}

// NewStockStore constructs a StockStore over an open bun handle.
func NewStockStore(db *bun.DB) *StockStore { return &StockStore{db: db} }

// Available implements store.StockStore.
func (s *StockStore) Available(ctx context.Context, sku string) (int, error) {
	var row stockRow
	err := s.db.NewSelect().
		Model(&row).
		Where("sku = ?", sku).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("select stock: %w", err)
	}
	n := row.Quantity - row.Reserved
	if n < 0 {
		n = 0
	}
	return n, nil
}

// Reserve implements store.StockStore. The conditional update increments the
// reserved count only while units remain, so the database serializes racing
// reservations and at most `quantity` of them ever succeed.
func (s *StockStore) Reserve(ctx context.Context, sku string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*stockRow)(nil)).
			Set("reserved = reserved + 1").
			Where("sku = ?", sku).
			Where("reserved < quantity").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return store.ErrOutOfStock
		}
		return nil
	})
}
