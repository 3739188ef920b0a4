package track

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/scrape"
	"github.com/sells-group/pricewatch/internal/store"
)

// Prober detects URL moves before extraction. Satisfied by
// scrape.RedirectProber.
type Prober interface {
	Probe(ctx context.Context, url string) (string, bool, error)
}

// Notifier delivers the collected change events for one cycle.
type Notifier interface {
	Notify(ctx context.Context, events []model.ChangeEvent) error
}

// Checker orchestrates one full check cycle over every tracked item.
type Checker struct {
	store     store.Store
	prober    Prober
	extractor scrape.Extractor
	notifier  Notifier

	mu sync.Mutex
}

// NewChecker wires a Checker. notifier may be nil, in which case events are
// collected and persisted but never delivered.
func NewChecker(st store.Store, prober Prober, extractor scrape.Extractor, notifier Notifier) *Checker {
	return &Checker{
		store:     st,
		prober:    prober,
		extractor: extractor,
		notifier:  notifier,
	}
}

// Run executes one cycle: probe redirects, extract prices, reconcile, save,
// notify. Items are visited in sorted-ID order so event order is stable.
// Per-item failures are logged and never abort the cycle; the state map is
// saved exactly once at the end regardless of what happened inside the loop.
// Overlapping invocations serialize on an internal lock — the load-save pair
// is a read-modify-write, and two interleaved cycles would erase each
// other's results.
func (c *Checker) Run(ctx context.Context) ([]model.ChangeEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.store.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "track: load items")
	}
	if len(items) == 0 {
		zap.L().Info("track: no items to check")
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recorder, _ := c.store.(store.HistoryRecorder)

	var events []model.ChangeEvent
	for _, id := range ids {
		item := items[id]
		now := time.Now().UTC()

		if event := c.probeRedirect(ctx, item, now); event != nil {
			events = append(events, *event)
		}

		obs := c.extract(ctx, item)
		if event := Reconcile(item, obs, now); event != nil {
			events = append(events, *event)
		}

		if obs.Resolved && recorder != nil {
			if err := recorder.RecordObservation(ctx, item.ID, obs.Price, now); err != nil {
				zap.L().Warn("track: record observation failed",
					zap.String("item", item.ID),
					zap.Error(err),
				)
			}
		}
	}

	// A failed save loses this cycle's results for future runs but must not
	// stop notification or the daemon.
	if err := c.store.Save(ctx, items); err != nil {
		zap.L().Error("track: save items failed", zap.Error(err))
	}

	if len(events) > 0 && c.notifier != nil {
		if err := c.notifier.Notify(ctx, events); err != nil {
			// Delivery failure never rolls back saved state.
			zap.L().Error("track: notify failed", zap.Error(err))
		}
	}

	zap.L().Info("track: cycle complete",
		zap.Int("items", len(items)),
		zap.Int("events", len(events)),
	)
	return events, nil
}

// probeRedirect checks whether the origin moved the item's URL. On a move it
// rewrites the item in place and returns a url event. Probe failures are
// logged and the current URL stays in use.
func (c *Checker) probeRedirect(ctx context.Context, item *model.TrackedItem, now time.Time) *model.ChangeEvent {
	if c.prober == nil {
		return nil
	}

	target, moved, err := c.prober.Probe(ctx, item.URL)
	if err != nil {
		zap.L().Warn("track: redirect probe failed",
			zap.String("item", item.ID),
			zap.Error(err),
		)
		return nil
	}
	if !moved || target == item.URL {
		return nil
	}

	oldURL := item.URL
	item.PreviousURL = oldURL
	item.URL = target
	zap.L().Info("track: item url moved",
		zap.String("item", item.ID),
		zap.String("from", oldURL),
		zap.String("to", target),
	)

	event := model.NewURLChange(item, oldURL, target, now)
	return &event
}

// extract runs the extraction chain against the item's current URL.
func (c *Checker) extract(ctx context.Context, item *model.TrackedItem) model.Observation {
	price, err := c.extractor.Extract(ctx, item.URL)
	if err != nil {
		zap.L().Warn("track: extraction exhausted",
			zap.String("item", item.ID),
			zap.String("url", item.URL),
			zap.Error(err),
		)
		return model.Observation{}
	}
	return model.Observation{Price: price, Resolved: true}
}
