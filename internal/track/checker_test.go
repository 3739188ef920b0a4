package track

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/model"
)

// memStore is an in-memory Store for checker tests.
type memStore struct {
	items     map[string]*model.TrackedItem
	loadErr   error
	saveErr   error
	saveCalls int
}

func (m *memStore) Load(_ context.Context) (map[string]*model.TrackedItem, error) {
	return m.items, m.loadErr
}

func (m *memStore) Save(_ context.Context, items map[string]*model.TrackedItem) error {
	m.saveCalls++
	m.items = items
	return m.saveErr
}

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

// stubProber returns a fixed probe outcome per URL.
type stubProber struct {
	moves map[string]string
	err   error
}

func (p *stubProber) Probe(_ context.Context, url string) (string, bool, error) {
	if p.err != nil {
		return "", false, p.err
	}
	if target, ok := p.moves[url]; ok {
		return target, true, nil
	}
	return "", false, nil
}

// stubExtractor returns a fixed price per URL; URLs absent from the map fail.
type stubExtractor struct {
	prices map[string]float64
	seen   []string
}

func (e *stubExtractor) Name() string { return "stub" }
func (e *stubExtractor) Extract(_ context.Context, url string) (float64, error) {
	e.seen = append(e.seen, url)
	if price, ok := e.prices[url]; ok {
		return price, nil
	}
	return 0, errors.New("all extractors failed")
}

// spyNotifier records every delivery.
type spyNotifier struct {
	calls  int
	events []model.ChangeEvent
	err    error
}

func (n *spyNotifier) Notify(_ context.Context, events []model.ChangeEvent) error {
	n.calls++
	n.events = events
	return n.err
}

func itemWithPrice(id string, price float64) *model.TrackedItem {
	item := &model.TrackedItem{ID: id, Name: "Item " + id, URL: id}
	if price > 0 {
		item.CurrentPrice = &price
	}
	return item
}

func TestChecker_PriceDropNotifiesOnce(t *testing.T) {
	url := "https://shop.example.com/p/1"
	st := &memStore{items: map[string]*model.TrackedItem{url: itemWithPrice(url, 100.0)}}
	notifier := &spyNotifier{}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{prices: map[string]float64{url: 80.0}}, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, model.ChangePrice, events[0].Kind)
	assert.Equal(t, "100.00", events[0].OldValue())
	assert.Equal(t, "80.00", events[0].NewValue())

	assert.Equal(t, 1, st.saveCalls)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, 80.0, *st.items[url].CurrentPrice)
	assert.Equal(t, 100.0, *st.items[url].PreviousPrice)
}

func TestChecker_FirstObservationSavesWithoutNotify(t *testing.T) {
	url := "https://shop.example.com/p/1"
	st := &memStore{items: map[string]*model.TrackedItem{url: itemWithPrice(url, 0)}}
	notifier := &spyNotifier{}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{prices: map[string]float64{url: 49.99}}, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, events)
	assert.Equal(t, 1, st.saveCalls)
	assert.Equal(t, 0, notifier.calls)
	assert.Equal(t, 49.99, *st.items[url].CurrentPrice)
}

func TestChecker_UnresolvedLeavesStateUntouched(t *testing.T) {
	url := "https://shop.example.com/p/1"
	st := &memStore{items: map[string]*model.TrackedItem{url: itemWithPrice(url, 20.0)}}
	notifier := &spyNotifier{}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{}, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, events)
	assert.Equal(t, 1, st.saveCalls)
	assert.Equal(t, 0, notifier.calls)
	assert.Equal(t, 20.0, *st.items[url].CurrentPrice)
	assert.Nil(t, st.items[url].LastChecked)
}

func TestChecker_RedirectRewritesURLAndExtractsFromTarget(t *testing.T) {
	oldURL := "https://shop.example.com/p/1"
	newURL := "https://shop.example.com/ip/new-slug/1"
	st := &memStore{items: map[string]*model.TrackedItem{oldURL: itemWithPrice(oldURL, 50.0)}}
	extractor := &stubExtractor{prices: map[string]float64{newURL: 50.0}}
	notifier := &spyNotifier{}
	checker := NewChecker(st, &stubProber{moves: map[string]string{oldURL: newURL}}, extractor, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeURL, events[0].Kind)
	assert.Equal(t, oldURL, events[0].OldValue())
	assert.Equal(t, newURL, events[0].NewValue())

	// Extraction must run against the rewritten URL.
	assert.Equal(t, []string{newURL}, extractor.seen)

	item := st.items[oldURL]
	assert.Equal(t, oldURL, item.ID, "ID never changes")
	assert.Equal(t, newURL, item.URL)
	assert.Equal(t, oldURL, item.PreviousURL)
	assert.Equal(t, 1, notifier.calls)
}

func TestChecker_ProbeFailureIsNonFatal(t *testing.T) {
	url := "https://shop.example.com/p/1"
	st := &memStore{items: map[string]*model.TrackedItem{url: itemWithPrice(url, 50.0)}}
	checker := NewChecker(st,
		&stubProber{err: errors.New("connection refused")},
		&stubExtractor{prices: map[string]float64{url: 50.0}},
		&spyNotifier{},
	)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, st.saveCalls)
	assert.Equal(t, url, st.items[url].URL)
}

func TestChecker_StableEventOrder(t *testing.T) {
	a := "https://a.example.com/p"
	b := "https://b.example.com/p"
	st := &memStore{items: map[string]*model.TrackedItem{
		b: itemWithPrice(b, 10.0),
		a: itemWithPrice(a, 10.0),
	}}
	extractor := &stubExtractor{prices: map[string]float64{a: 5.0, b: 5.0}}
	checker := NewChecker(st, &stubProber{}, extractor, &spyNotifier{})

	events, err := checker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, a, events[0].ItemURL)
	assert.Equal(t, b, events[1].ItemURL)
	assert.Equal(t, []string{a, b}, extractor.seen)
}

func TestChecker_NotifyFailureDoesNotFailRun(t *testing.T) {
	url := "https://shop.example.com/p/1"
	st := &memStore{items: map[string]*model.TrackedItem{url: itemWithPrice(url, 100.0)}}
	notifier := &spyNotifier{err: errors.New("smtp: connection reset")}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{prices: map[string]float64{url: 80.0}}, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, st.saveCalls)
}

func TestChecker_EmptyStoreIsNoop(t *testing.T) {
	st := &memStore{items: map[string]*model.TrackedItem{}}
	notifier := &spyNotifier{}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{}, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, st.saveCalls)
	assert.Equal(t, 0, notifier.calls)
}

func TestChecker_SaveFailureStillNotifies(t *testing.T) {
	url := "https://shop.example.com/p/1"
	st := &memStore{
		items:   map[string]*model.TrackedItem{url: itemWithPrice(url, 100.0)},
		saveErr: errors.New("disk full"),
	}
	notifier := &spyNotifier{}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{prices: map[string]float64{url: 80.0}}, notifier)

	events, err := checker.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, notifier.calls)
}

// overlapExtractor flags any concurrent Extract invocations.
type overlapExtractor struct {
	active     atomic.Int32
	overlapped atomic.Bool
}

func (e *overlapExtractor) Name() string { return "overlap" }
func (e *overlapExtractor) Extract(_ context.Context, _ string) (float64, error) {
	if e.active.Add(1) > 1 {
		e.overlapped.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	e.active.Add(-1)
	return 10.0, nil
}

func TestChecker_ConcurrentRunsSerialize(t *testing.T) {
	a := "https://a.example.com/p"
	b := "https://b.example.com/p"
	st := &memStore{items: map[string]*model.TrackedItem{
		a: itemWithPrice(a, 10.0),
		b: itemWithPrice(b, 10.0),
	}}
	ext := &overlapExtractor{}
	checker := NewChecker(st, &stubProber{}, ext, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = checker.Run(context.Background())
		}()
	}
	wg.Wait()

	assert.False(t, ext.overlapped.Load(), "cycles must not interleave")
	assert.Equal(t, 3, st.saveCalls)
}

func TestChecker_LoadErrorAborts(t *testing.T) {
	st := &memStore{loadErr: errors.New("disk gone")}
	checker := NewChecker(st, &stubProber{}, &stubExtractor{}, &spyNotifier{})

	_, err := checker.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load items")
	assert.Equal(t, 0, st.saveCalls)
}
