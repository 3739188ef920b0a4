// Package model defines the tracked-item data model shared across the tool.
package model

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// TrackedItem is one product under price tracking. ID is the URL the item
// was added with and never changes, even when redirect detection rewrites
// URL.
type TrackedItem struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	PreviousURL   string     `json:"previous_url,omitempty"`
	CurrentPrice  *float64   `json:"current_price"`
	PreviousPrice *float64   `json:"previous_price"`
	LastChecked   *time.Time `json:"last_checked"`
}

// NewTrackedItem validates the URL and builds a fresh item. The URL must
// carry both a scheme and a host. When name is empty it is derived from the
// URL host.
func NewTrackedItem(rawURL, name string) (*TrackedItem, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "model: parse url %q", rawURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, eris.Errorf("model: invalid url (scheme and host required): %q", rawURL)
	}
	if name == "" {
		name = fmt.Sprintf("Item from %s", u.Host)
	}
	return &TrackedItem{
		ID:   rawURL,
		Name: name,
		URL:  rawURL,
	}, nil
}

// ChangeKind discriminates the two reportable change types.
type ChangeKind string

const (
	ChangePrice ChangeKind = "price"
	ChangeURL   ChangeKind = "url"
)

// ChangeEvent records one detected difference for notification. Events are
// produced per check cycle and never persisted.
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	ItemName   string     `json:"item_name"`
	ItemURL    string     `json:"item_url"`
	OldPrice   float64    `json:"old_price"`
	NewPrice   float64    `json:"new_price"`
	OldURL     string     `json:"old_url,omitempty"`
	NewURL     string     `json:"new_url,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
}

// NewPriceChange builds a price-kind event for the given item.
func NewPriceChange(item *TrackedItem, oldPrice, newPrice float64, at time.Time) ChangeEvent {
	return ChangeEvent{
		Kind:       ChangePrice,
		ItemName:   item.Name,
		ItemURL:    item.URL,
		OldPrice:   oldPrice,
		NewPrice:   newPrice,
		ObservedAt: at,
	}
}

// NewURLChange builds a url-kind event for the given item.
func NewURLChange(item *TrackedItem, oldURL, newURL string, at time.Time) ChangeEvent {
	return ChangeEvent{
		Kind:       ChangeURL,
		ItemName:   item.Name,
		ItemURL:    oldURL,
		OldURL:     oldURL,
		NewURL:     newURL,
		ObservedAt: at,
	}
}

// OldValue renders the prior value for display, typed per kind.
func (e ChangeEvent) OldValue() string {
	if e.Kind == ChangeURL {
		return e.OldURL
	}
	return strconv.FormatFloat(e.OldPrice, 'f', 2, 64)
}

// NewValue renders the observed value for display, typed per kind.
func (e ChangeEvent) NewValue() string {
	if e.Kind == ChangeURL {
		return e.NewURL
	}
	return strconv.FormatFloat(e.NewPrice, 'f', 2, 64)
}

// Observation is the outcome of running the extraction chain for one item.
// Resolved is false when every extraction stage was exhausted without a
// numeric price.
type Observation struct {
	Price    float64
	Resolved bool
}
