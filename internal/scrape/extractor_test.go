package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExtractor implements Extractor for testing.
type mockExtractor struct {
	name  string
	price float64
	err   error
	calls int
}

func (m *mockExtractor) Name() string { return m.name }
func (m *mockExtractor) Extract(_ context.Context, _ string) (float64, error) {
	m.calls++
	return m.price, m.err
}

func TestChain_FirstSuccess(t *testing.T) {
	e1 := &mockExtractor{name: "static", price: 19.99}
	e2 := &mockExtractor{name: "rendered", price: 24.99}

	chain := NewChain(e1, e2)
	got, err := chain.Extract(context.Background(), "https://shop.example.com/p/1")

	require.NoError(t, err)
	assert.Equal(t, 19.99, got)
	assert.Equal(t, 1, e1.calls)
	// Fallback must not run when the first stage succeeds.
	assert.Equal(t, 0, e2.calls)
}

func TestChain_FallbackOnError(t *testing.T) {
	e1 := &mockExtractor{name: "static", err: errors.New("status 403")}
	e2 := &mockExtractor{name: "rendered", price: 24.99}

	chain := NewChain(e1, e2)
	got, err := chain.Extract(context.Background(), "https://shop.example.com/p/1")

	require.NoError(t, err)
	assert.Equal(t, 24.99, got)
	assert.Equal(t, 1, e1.calls)
	assert.Equal(t, 1, e2.calls)
}

func TestChain_AllFail(t *testing.T) {
	e1 := &mockExtractor{name: "static", err: errors.New("no selector matched")}
	e2 := &mockExtractor{name: "rendered", err: errors.New("timeout")}

	chain := NewChain(e1, e2)
	_, err := chain.Extract(context.Background(), "https://shop.example.com/p/1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all extractors failed")
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain()
	_, err := chain.Extract(context.Background(), "https://shop.example.com/p/1")
	assert.Error(t, err)
}
