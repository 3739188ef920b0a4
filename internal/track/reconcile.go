// Package track runs the per-item check cycle: redirect probing, price
// extraction, reconciliation against stored state, and change collection.
package track

import (
	"time"

	"github.com/sells-group/pricewatch/internal/model"
)

// Reconcile folds one observation into the item's stored state and returns
// the resulting change event, or nil when nothing reportable happened.
//
// An unresolved observation leaves the item untouched, including its check
// timestamp, so stale state is never mistaken for a fresh confirmation. A
// first resolved observation records the baseline silently. A repeat of the
// current price only refreshes the timestamp. Any other price shifts the
// previous/current pair and reports a change; equality is exact, so a
// one-cent move is a change.
func Reconcile(item *model.TrackedItem, obs model.Observation, now time.Time) *model.ChangeEvent {
	if !obs.Resolved {
		return nil
	}

	if item.CurrentPrice == nil {
		p := obs.Price
		item.CurrentPrice = &p
		item.LastChecked = &now
		return nil
	}

	if *item.CurrentPrice == obs.Price {
		item.LastChecked = &now
		return nil
	}

	old := *item.CurrentPrice
	item.PreviousPrice = &old
	p := obs.Price
	item.CurrentPrice = &p
	item.LastChecked = &now

	event := model.NewPriceChange(item, old, obs.Price, now)
	return &event
}
