// Package tab implements the View/Tab model: a filtered, scrolled
// consumer over a Store, with backfill-on-open and lag recovery per the
// Store's broadcast contract.
package tab

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/store"
)

// Kind distinguishes the three view variants. Their behavior is
// identical; only how their filter is constructed differs.
type Kind int

const (
	Main Kind = iota
	Freeze
	Correlate
)

func (k Kind) String() string {
	switch k {
	case Main:
		return "main"
	case Freeze:
		return "freeze"
	case Correlate:
		return "correlate"
	default:
		return "unknown"
	}
}

// ErrMainTabCannotBeClosed is returned by Close on the main tab, which is
// never destroyed for the lifetime of the process.
var ErrMainTabCannotBeClosed = errors.New("tab: the main tab cannot be closed")

// ErrClosed is returned by Next once the tab's subscription has been
// closed.
var ErrClosed = errors.New("tab: closed")

// Tab is a single consumer's state: an immutable filter, a cursor into
// the Store's sequence space, a scroll position, and a paused flag. It is
// safe for concurrent use; Next is intended to be called from a single
// loop per tab, but the accessors may be called from any goroutine (e.g.
// a render loop reading ScrollOffset while Next runs on its own task).
type Tab struct {
	s      *store.Store
	kind   Kind
	filter store.Filter
	sub    *store.Subscription

	mu           sync.Mutex
	lastSeenSeq  uint64
	hasSeen      bool
	scrollOffset int

	paused atomic.Bool
	closed atomic.Bool
}

// open subscribes to s, performs the initial backfill over the window
// resident at subscribe time, and returns the tab plus that backfill.
func open(s *store.Store, kind Kind, filter store.Filter) (*Tab, []model.LogEntry) {
	minSeq, sub := s.Subscribe()
	_, nextSeq := s.Bounds()

	var initial []model.LogEntry
	s.Range(minSeq, nextSeq, filter, func(e model.LogEntry) bool {
		initial = append(initial, e)
		return true
	})

	t := &Tab{s: s, kind: kind, filter: filter, sub: sub}
	if nextSeq > 0 {
		t.hasSeen = true
		t.lastSeenSeq = nextSeq - 1
	}
	return t, initial
}

// NewMain opens the main tab. Its filter is the producer selection and
// active query the caller has already resolved into a store.Filter.
func NewMain(s *store.Store, filter store.Filter) (*Tab, []model.LogEntry) {
	return open(s, Main, filter)
}

// NewFreeze opens a freeze tab pinned to a single producer.
func NewFreeze(s *store.Store, producer string) (*Tab, []model.LogEntry) {
	return open(s, Freeze, store.Filter{Producers: store.ProducerSet(producer)})
}

// NewCorrelate opens a correlate tab that ignores producer membership
// entirely and constrains on one field key/value pair.
func NewCorrelate(s *store.Store, key, value string) (*Tab, []model.LogEntry) {
	return open(s, Correlate, store.Filter{FieldKey: key, FieldValue: value})
}

// Kind reports which of the three variants this tab is.
func (t *Tab) Kind() Kind { return t.kind }

// Filter returns this tab's immutable filter.
func (t *Tab) Filter() store.Filter { return t.filter }

// Next blocks until a notification arrives, ctx is cancelled, or the tab
// is closed. On a normal notification it returns the newly-visible
// matching entries in sequence order (an empty, non-nil slice when none
// match). On a lag signal it returns (nil,
// nil) — the caller should treat this as "catching up" and may re-issue
// its own full re-scan of the current window if it wants to rebuild
// display state rather than appending.
func (t *Tab) Next(ctx context.Context) ([]model.LogEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case seq, ok := <-t.sub.Chan():
		if !ok {
			return nil, ErrClosed
		}
		if t.sub.ClearLagged() {
			t.mu.Lock()
			t.hasSeen = false
			t.mu.Unlock()
			return nil, nil
		}
		return t.advance(seq), nil
	}
}

func (t *Tab) advance(newSeq uint64) []model.LogEntry {
	t.mu.Lock()
	minSeq, _ := t.s.Bounds()
	from := minSeq
	if t.hasSeen {
		from = t.lastSeenSeq + 1
	}
	t.mu.Unlock()

	if !t.hasSeen && from > newSeq {
		// Nothing resident yet that's old enough to matter; just advance.
		t.mu.Lock()
		t.hasSeen = true
		t.lastSeenSeq = newSeq
		t.mu.Unlock()
		return []model.LogEntry{}
	}

	out := []model.LogEntry{}
	t.s.Range(from, newSeq+1, t.filter, func(e model.LogEntry) bool {
		out = append(out, e)
		return true
	})

	t.mu.Lock()
	t.hasSeen = true
	t.lastSeenSeq = newSeq
	t.mu.Unlock()
	return out
}

// Backfill re-scans the tab's current catch-up point through the present
// and returns the matching window. Useful after a lag signal, when the
// caller wants to rebuild its visible entries rather than rely on the
// incremental deltas Next would otherwise deliver.
func (t *Tab) Backfill() []model.LogEntry {
	t.mu.Lock()
	minSeq, nextSeq := t.s.Bounds()
	from := minSeq
	if t.hasSeen && t.lastSeenSeq+1 > from {
		from = t.lastSeenSeq + 1
	}
	t.mu.Unlock()

	var out []model.LogEntry
	t.s.Range(from, nextSeq, t.filter, func(e model.LogEntry) bool {
		out = append(out, e)
		return true
	})

	t.mu.Lock()
	t.hasSeen = true
	if nextSeq > 0 {
		t.lastSeenSeq = nextSeq - 1
	}
	t.mu.Unlock()
	return out
}

// Paused reports whether the tab is currently paused.
func (t *Tab) Paused() bool { return t.paused.Load() }

// SetPaused toggles the paused flag. Next continues to consume
// notifications while paused so the subscription never lags on account of
// the UI simply not wanting new rows rendered; it is up to the caller to
// decide whether to apply or buffer what Next returns.
func (t *Tab) SetPaused(p bool) { t.paused.Store(p) }

// ScrollOffset returns the tab's current scroll position.
func (t *Tab) ScrollOffset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollOffset
}

// SetScrollOffset updates the tab's scroll position.
func (t *Tab) SetScrollOffset(n int) {
	t.mu.Lock()
	t.scrollOffset = n
	t.mu.Unlock()
}

// LastSeenSeq returns the sequence number up to which this tab has
// processed notifications, and whether it has seen any at all.
func (t *Tab) LastSeenSeq() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeenSeq, t.hasSeen
}

// Close releases the tab's subscription. The main tab cannot be closed.
func (t *Tab) Close() error {
	if t.kind == Main {
		return ErrMainTabCannotBeClosed
	}
	if t.closed.CompareAndSwap(false, true) {
		t.sub.Close()
	}
	return nil
}
