package permits

import (
	"context"
	"sync"

	"permitkeeper/models"
)

// HistoryFeed accumulates successive history pages into one aggregate view.
// Appends are dedupe-by-ID only, so a repeated fetch (or a page overlapping
// after a concurrent transition) never produces duplicate entries, and a
// pending-watch delivery arriving mid-fetch cannot corrupt it: the feed
// only ever grows.
type HistoryFeed struct {
	store *Store

	mu        sync.Mutex
	permits   []models.Permit
	seen      map[string]struct{}
	cursor    string
	exhausted bool
}

// NewHistoryFeed creates an empty feed positioned at the top of history.
func (s *Store) NewHistoryFeed() *HistoryFeed {
	return &HistoryFeed{store: s, seen: make(map[string]struct{})}
}

// LoadMore fetches the next page and appends it. Once the listing is
// exhausted further calls are no-ops.
func (f *HistoryFeed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.exhausted {
		f.mu.Unlock()
		return nil
	}
	cursor := f.cursor
	f.mu.Unlock()

	// Fetch outside the lock; a superseding call simply wins the append
	// race and the loser's duplicates are dropped by ID.
	page, err := f.store.ListHistory(ctx, cursor)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, permit := range page.Permits {
		if _, dup := f.seen[permit.ID]; dup {
			continue
		}
		f.seen[permit.ID] = struct{}{}
		f.permits = append(f.permits, permit)
	}
	if page.Cursor == "" {
		f.exhausted = true
	} else {
		f.cursor = page.Cursor
	}
	return nil
}

// Permits returns a copy of the aggregate view in fetch order.
func (f *HistoryFeed) Permits() []models.Permit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Permit, len(f.permits))
	copy(out, f.permits)
	return out
}

// Exhausted reports whether the listing has been read to the end.
func (f *HistoryFeed) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted
}

// Reset drops the aggregate and repositions the feed at the top.
func (f *HistoryFeed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permits = nil
	f.seen = make(map[string]struct{})
	f.cursor = ""
	f.exhausted = false
}
