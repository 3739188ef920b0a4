package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricewatch/internal/model"
)

// PostgresStore implements Store using pgxpool and keeps an append-only
// price history.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	url            TEXT NOT NULL,
	previous_url   TEXT,
	current_price  DOUBLE PRECISION,
	previous_price DOUBLE PRECISION,
	last_checked   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS price_history (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item_id     TEXT NOT NULL REFERENCES items(id),
	price       DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_price_history_item_id ON price_history(item_id);
CREATE INDEX IF NOT EXISTS idx_price_history_observed_at ON price_history(observed_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (map[string]*model.TrackedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, previous_url, current_price, previous_price, last_checked FROM items`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: select items")
	}
	defer rows.Close()

	items := make(map[string]*model.TrackedItem)
	for rows.Next() {
		var (
			item        model.TrackedItem
			previousURL *string
			checked     *time.Time
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.URL, &previousURL, &item.CurrentPrice, &item.PreviousPrice, &checked); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		if previousURL != nil {
			item.PreviousURL = *previousURL
		}
		item.LastChecked = checked
		items[item.ID] = &item
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate items")
}

// Save upserts the current item set and prunes items no longer tracked,
// inside one transaction. History rows go before their item so the foreign
// key holds; upserting keeps the history of surviving items intact.
func (s *PostgresStore) Save(ctx context.Context, items map[string]*model.TrackedItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT id FROM items`)
	if err != nil {
		return eris.Wrap(err, "postgres: select item ids")
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan item id")
		}
		if _, keep := items[id]; !keep {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: iterate item ids")
	}
	sort.Strings(stale)

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		item := items[id]
		_, err := tx.Exec(ctx,
			`INSERT INTO items (id, name, url, previous_url, current_price, previous_price, last_checked)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				url = excluded.url,
				previous_url = excluded.previous_url,
				current_price = excluded.current_price,
				previous_price = excluded.previous_price,
				last_checked = excluded.last_checked`,
			item.ID, item.Name, item.URL,
			emptyToNil(item.PreviousURL), item.CurrentPrice, item.PreviousPrice, item.LastChecked,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert item %s", item.ID)
		}
	}

	for _, id := range stale {
		if _, err := tx.Exec(ctx, `DELETE FROM price_history WHERE item_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: delete history for %s", id)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: delete item %s", id)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) RecordObservation(ctx context.Context, itemID string, price float64, observedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (id, item_id, price, observed_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), itemID, price, observedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record observation for %s", itemID)
}

func (s *PostgresStore) History(ctx context.Context, itemID string, limit int) ([]PriceObservation, error) {
	query := `SELECT id, item_id, price, observed_at FROM price_history WHERE item_id = $1 ORDER BY observed_at DESC`
	args := []any{itemID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: select history for %s", itemID)
	}
	defer rows.Close()

	var obs []PriceObservation
	for rows.Next() {
		var o PriceObservation
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Price, &o.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
