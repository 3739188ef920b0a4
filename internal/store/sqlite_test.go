package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLite_SaveThenLoad(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	current := 79.99
	previous := 99.99
	checked := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	items := map[string]*model.TrackedItem{
		"https://shop.example.com/p/1": {
			ID:            "https://shop.example.com/p/1",
			Name:          "Cordless Drill",
			URL:           "https://shop.example.com/ip/new-slug/1",
			PreviousURL:   "https://shop.example.com/p/1",
			CurrentPrice:  &current,
			PreviousPrice: &previous,
			LastChecked:   &checked,
		},
	}
	require.NoError(t, st.Save(ctx, items))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded["https://shop.example.com/p/1"]
	require.NotNil(t, got)
	assert.Equal(t, "https://shop.example.com/ip/new-slug/1", got.URL)
	assert.Equal(t, "https://shop.example.com/p/1", got.PreviousURL)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 79.99, *got.CurrentPrice)
	require.NotNil(t, got.PreviousPrice)
	assert.Equal(t, 99.99, *got.PreviousPrice)
	require.NotNil(t, got.LastChecked)
	assert.True(t, checked.Equal(*got.LastChecked))
}

func TestSQLite_LoadPreservesNilOptionals(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	items := map[string]*model.TrackedItem{
		"fresh": {ID: "fresh", Name: "Fresh Item", URL: "https://shop.example.com/p/2"},
	}
	require.NoError(t, st.Save(ctx, items))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)

	got := loaded["fresh"]
	require.NotNil(t, got)
	assert.Nil(t, got.CurrentPrice)
	assert.Nil(t, got.PreviousPrice)
	assert.Nil(t, got.LastChecked)
	assert.Empty(t, got.PreviousURL)
}

func TestSQLite_SaveReplacesRemovedItems(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, map[string]*model.TrackedItem{
		"a": {ID: "a", Name: "A", URL: "https://a.example.com"},
		"b": {ID: "b", Name: "B", URL: "https://b.example.com"},
	}))
	require.NoError(t, st.Save(ctx, map[string]*model.TrackedItem{
		"a": {ID: "a", Name: "A", URL: "https://a.example.com"},
	}))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.NotContains(t, loaded, "b")
}

func TestSQLite_SaveAfterHistoryRecorded(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	price := 99.99
	items := map[string]*model.TrackedItem{
		"item-1": {ID: "item-1", Name: "Item", URL: "https://shop.example.com/p/1", CurrentPrice: &price},
	}
	require.NoError(t, st.Save(ctx, items))
	require.NoError(t, st.RecordObservation(ctx, "item-1", 99.99, time.Now()))

	// Saving again with history present must not trip the foreign key.
	dropped := 79.99
	items["item-1"].CurrentPrice = &dropped
	require.NoError(t, st.Save(ctx, items))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded["item-1"].CurrentPrice)
	assert.Equal(t, 79.99, *loaded["item-1"].CurrentPrice)

	obs, err := st.History(ctx, "item-1", 0)
	require.NoError(t, err)
	assert.Len(t, obs, 1, "history of surviving items must be kept")
}

func TestSQLite_RemovingItemDropsItsHistory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	items := map[string]*model.TrackedItem{
		"a": {ID: "a", Name: "A", URL: "https://a.example.com"},
		"b": {ID: "b", Name: "B", URL: "https://b.example.com"},
	}
	require.NoError(t, st.Save(ctx, items))
	require.NoError(t, st.RecordObservation(ctx, "a", 10.0, time.Now()))
	require.NoError(t, st.RecordObservation(ctx, "b", 20.0, time.Now()))

	delete(items, "b")
	require.NoError(t, st.Save(ctx, items))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	obsA, err := st.History(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, obsA, 1)

	obsB, err := st.History(ctx, "b", 0)
	require.NoError(t, err)
	assert.Empty(t, obsB)
}

func TestSQLite_History(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, map[string]*model.TrackedItem{
		"item-1": {ID: "item-1", Name: "Item", URL: "https://shop.example.com/p/1"},
	}))

	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordObservation(ctx, "item-1", 100.0, base))
	require.NoError(t, st.RecordObservation(ctx, "item-1", 90.0, base.Add(time.Hour)))
	require.NoError(t, st.RecordObservation(ctx, "item-1", 80.0, base.Add(2*time.Hour)))

	obs, err := st.History(ctx, "item-1", 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	// Newest first.
	assert.Equal(t, 80.0, obs[0].Price)
	assert.Equal(t, 90.0, obs[1].Price)

	// Zero limit returns everything.
	all, err := st.History(ctx, "item-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_HistoryEmptyForUnknownItem(t *testing.T) {
	st := newTestSQLiteStore(t)

	obs, err := st.History(context.Background(), "no-such-item", 10)
	require.NoError(t, err)
	assert.Empty(t, obs)
}
