package feed

import (
	"sync"
	"time"

	"vestigia/internal/core/clock"
	interactionPort "vestigia/internal/ports/interaction"
	postPort "vestigia/internal/ports/post"
)

// Snapshot is the resumable state of one timeline view: the loaded posts,
// the page position, cached interaction counts and the scroll offset. It is
// only valid for the virtual date it was captured at.
type Snapshot struct {
	View         string                                `json:"view"`
	ClockDate    time.Time                             `json:"clock_date"`
	Posts        []*postPort.PostDTO                   `json:"posts"`
	Page         int                                   `json:"page"`
	Cursor       string                                `json:"cursor,omitempty"`
	HasMore      bool                                  `json:"has_more"`
	Counts       map[string]*interactionPort.CountsDTO `json:"counts,omitempty"`
	ScrollOffset int                                   `json:"scroll_offset"`
	CapturedAt   time.Time                             `json:"captured_at"`
}

// ValidFor reports whether the snapshot was captured at the virtual date.
func (s *Snapshot) ValidFor(date time.Time) bool {
	return s != nil && clock.Truncate(s.ClockDate).Equal(clock.Truncate(date))
}

// Capture copies the loader state into a snapshot for view.
func (l *Loader) Capture(view string) *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	posts := make([]*postPort.PostDTO, len(l.posts))
	copy(posts, l.posts)
	return &Snapshot{
		View:       view,
		ClockDate:  l.date,
		Posts:      posts,
		Page:       l.page,
		Cursor:     l.cursor,
		HasMore:    l.hasMore,
		CapturedAt: time.Now(),
	}
}

// Restore replaces the loader state with s. A snapshot captured at another
// virtual date is rejected and the loader is left unchanged.
func (l *Loader) Restore(s *Snapshot) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !s.ValidFor(l.date) {
		return false
	}
	l.gen++
	l.posts = nil
	l.index = make(map[string]int)
	l.loading = false
	l.mergeLocked(s.Posts)
	l.page = s.Page
	l.cursor = s.Cursor
	l.hasMore = s.HasMore
	return true
}

// SnapshotCache keeps snapshots per view name across view instances. A
// lookup at a different virtual date drops the stale entry.
type SnapshotCache struct {
	mu      sync.Mutex
	entries map[string]*Snapshot
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{entries: make(map[string]*Snapshot)}
}

// Get returns the snapshot for view if it is valid at date.
func (c *SnapshotCache) Get(view string, date time.Time) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[view]
	if !ok {
		return nil, false
	}
	if !s.ValidFor(date) {
		delete(c.entries, view)
		return nil, false
	}
	return s, true
}

// Put stores s under its view name.
func (c *SnapshotCache) Put(s *Snapshot) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.entries[s.View] = s
	c.mu.Unlock()
}

// Invalidate drops the snapshot for view.
func (c *SnapshotCache) Invalidate(view string) {
	c.mu.Lock()
	delete(c.entries, view)
	c.mu.Unlock()
}
