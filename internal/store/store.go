// Package store provides swappable persistence for tracked items. The file
// backend is the default; sqlite and postgres add durable price history.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricewatch/internal/config"
	"github.com/sells-group/pricewatch/internal/model"
)

// Store defines the persistence interface for the tracked-item map. The map
// is keyed by item ID. Load and Save move the whole map; per-item updates go
// through the caller's copy.
type Store interface {
	Load(ctx context.Context) (map[string]*model.TrackedItem, error)
	Save(ctx context.Context, items map[string]*model.TrackedItem) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// PriceObservation is one durable price-history row.
type PriceObservation struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// HistoryRecorder is implemented by backends that keep an append-only price
// history alongside the item map. Callers discover it by type assertion.
// History returns newest-first; a limit of zero or less means no limit.
type HistoryRecorder interface {
	RecordObservation(ctx context.Context, itemID string, price float64, observedAt time.Time) error
	History(ctx context.Context, itemID string, limit int) ([]PriceObservation, error)
}

// Pool is the subset of pgxpool.Pool the postgres backend uses. pgxmock
// satisfies it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// NewFromConfig builds the backend named by cfg.Driver and runs its
// migration.
func NewFromConfig(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "file":
		st = NewFile(cfg.Path)
	case "sqlite":
		st, err = NewSQLite(cfg.Path)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
