package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/store"
)

type stubRecorder struct {
	history map[string][]store.PriceObservation
}

func (s *stubRecorder) RecordObservation(_ context.Context, itemID string, price float64, observedAt time.Time) error {
	s.history[itemID] = append(s.history[itemID], store.PriceObservation{ItemID: itemID, Price: price, ObservedAt: observedAt})
	return nil
}

func (s *stubRecorder) History(_ context.Context, itemID string, _ int) ([]store.PriceObservation, error) {
	return s.history[itemID], nil
}

func exportItems() map[string]*model.TrackedItem {
	price := 79.99
	checked := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return map[string]*model.TrackedItem{
		"https://shop.example.com/p/1": {
			ID:           "https://shop.example.com/p/1",
			Name:         "Cordless Drill",
			URL:          "https://shop.example.com/p/1",
			CurrentPrice: &price,
			LastChecked:  &checked,
		},
		"https://shop.example.com/p/2": {
			ID:   "https://shop.example.com/p/2",
			Name: "Fresh Item",
			URL:  "https://shop.example.com/p/2",
		},
	}
}

func TestBuildWorkbook_ItemsSheet(t *testing.T) {
	f, err := buildWorkbook(context.Background(), exportItems(), nil)
	require.NoError(t, err)

	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Items", sheet.Name)

	// Header plus two item rows, sorted by ID.
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Cordless Drill", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Fresh Item", sheet.Rows[2].Cells[0].String())

	got, err := sheet.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.Equal(t, 79.99, got)
	// Unchecked item has empty price and timestamp cells.
	assert.Equal(t, "", sheet.Rows[2].Cells[3].String())
	assert.Equal(t, "", sheet.Rows[2].Cells[5].String())
}

func TestBuildWorkbook_HistorySheet(t *testing.T) {
	recorder := &stubRecorder{history: map[string][]store.PriceObservation{
		"https://shop.example.com/p/1": {
			{ItemID: "https://shop.example.com/p/1", Price: 99.99, ObservedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)},
			{ItemID: "https://shop.example.com/p/1", Price: 79.99, ObservedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)},
		},
	}}

	f, err := buildWorkbook(context.Background(), exportItems(), recorder)
	require.NoError(t, err)

	require.Len(t, f.Sheets, 2)
	hist := f.Sheets[1]
	assert.Equal(t, "History", hist.Name)
	require.Len(t, hist.Rows, 3)
	assert.Equal(t, "Cordless Drill", hist.Rows[1].Cells[0].String())

	got, err := hist.Rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.Equal(t, 99.99, got)
}
