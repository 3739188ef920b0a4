package store

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pricewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite and keeps an
// append-only price history.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	url            TEXT NOT NULL,
	previous_url   TEXT,
	current_price  REAL,
	previous_price REAL,
	last_checked   DATETIME
);

CREATE TABLE IF NOT EXISTS price_history (
	id          TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL REFERENCES items(id),
	price       REAL NOT NULL,
	observed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_item_id ON price_history(item_id);
CREATE INDEX IF NOT EXISTS idx_price_history_observed_at ON price_history(observed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]*model.TrackedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, previous_url, current_price, previous_price, last_checked FROM items`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select items")
	}
	defer rows.Close()

	items := make(map[string]*model.TrackedItem)
	for rows.Next() {
		var (
			item        model.TrackedItem
			previousURL sql.NullString
			current     sql.NullFloat64
			previous    sql.NullFloat64
			checked     sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.URL, &previousURL, &current, &previous, &checked); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		if previousURL.Valid {
			item.PreviousURL = previousURL.String
		}
		if current.Valid {
			v := current.Float64
			item.CurrentPrice = &v
		}
		if previous.Valid {
			v := previous.Float64
			item.PreviousPrice = &v
		}
		if checked.Valid {
			t := checked.Time
			item.LastChecked = &t
		}
		items[item.ID] = &item
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate items")
}

// Save upserts the current item set and prunes items no longer tracked,
// inside one transaction. History rows must go before their item so the
// foreign key holds; upserting (rather than clearing the table) keeps the
// history of surviving items intact.
func (s *SQLiteStore) Save(ctx context.Context, items map[string]*model.TrackedItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	stale, err := staleIDs(ctx, tx, items)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		item := items[id]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, name, url, previous_url, current_price, previous_price, last_checked)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				url = excluded.url,
				previous_url = excluded.previous_url,
				current_price = excluded.current_price,
				previous_price = excluded.previous_price,
				last_checked = excluded.last_checked`,
			item.ID, item.Name, item.URL,
			nullString(item.PreviousURL), nullFloat(item.CurrentPrice), nullFloat(item.PreviousPrice), nullTime(item.LastChecked),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert item %s", item.ID)
		}
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM price_history WHERE item_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete history for %s", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete item %s", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// staleIDs returns the stored item ids missing from the new map, sorted.
func staleIDs(ctx context.Context, tx *sql.Tx, items map[string]*model.TrackedItem) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM items`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select item ids")
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item id")
		}
		if _, keep := items[id]; !keep {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate item ids")
	}
	sort.Strings(stale)
	return stale, nil
}

func (s *SQLiteStore) RecordObservation(ctx context.Context, itemID string, price float64, observedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (id, item_id, price, observed_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), itemID, price, observedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record observation for %s", itemID)
}

func (s *SQLiteStore) History(ctx context.Context, itemID string, limit int) ([]PriceObservation, error) {
	query := `SELECT id, item_id, price, observed_at FROM price_history WHERE item_id = ? ORDER BY observed_at DESC`
	args := []any{itemID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: select history for %s", itemID)
	}
	defer rows.Close()

	var obs []PriceObservation
	for rows.Next() {
		var o PriceObservation
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Price, &o.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
