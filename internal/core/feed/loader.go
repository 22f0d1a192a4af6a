// Package feed pages through the posts visible at a virtual date and keeps
// them in one de-duplicated list ordered by original date, newest first.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"vestigia/internal/core/clock"
	postPort "vestigia/internal/ports/post"
)

// Fetcher retrieves one page of posts.
type Fetcher interface {
	FetchPosts(ctx context.Context, q postPort.Query) ([]*postPort.PostDTO, error)
}

// Mode selects how the next page is addressed.
type Mode int

const (
	// Cursor pages by the id of the last post of the previous page. It does
	// not skip or repeat rows when posts are inserted between fetches.
	Cursor Mode = iota
	// Offset pages by page number times page size.
	Offset
)

// Option configures a Loader.
type Option func(*Loader)

// WithFigure restricts the loader to one figure's posts.
func WithFigure(figureID string) Option {
	return func(l *Loader) { l.figureID = figureID }
}

// WithMode selects cursor or offset pagination.
func WithMode(m Mode) Option {
	return func(l *Loader) { l.mode = m }
}

// WithPageSize overrides postPort.PageSize.
func WithPageSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.size = n
		}
	}
}

// Loader holds the posts of one timeline view.
type Loader struct {
	fetcher  Fetcher
	figureID string
	mode     Mode
	size     int

	mu      sync.Mutex
	date    time.Time
	posts   []*postPort.PostDTO
	index   map[string]int
	page    int
	cursor  string
	hasMore bool
	loading bool
	gen     int
}

// NewLoader creates an empty loader for the virtual date.
func NewLoader(fetcher Fetcher, date time.Time, opts ...Option) *Loader {
	l := &Loader{
		fetcher: fetcher,
		size:    postPort.PageSize,
		date:    clock.Truncate(date),
		index:   make(map[string]int),
		hasMore: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadMore fetches the next page and merges it. A failed fetch leaves the
// loaded posts untouched. Results of a fetch that started before a Reset
// are dropped.
func (l *Loader) LoadMore(ctx context.Context) (int, error) {
	l.mu.Lock()
	if l.loading || !l.hasMore {
		l.mu.Unlock()
		return 0, nil
	}
	l.loading = true
	q := postPort.Query{FigureID: l.figureID, Limit: l.size}
	if l.mode == Cursor {
		q.Before = l.cursor
	} else {
		q.Offset = l.page * l.size
	}
	gen := l.gen
	l.mu.Unlock()

	page, err := l.fetcher.FetchPosts(ctx, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return 0, nil
	}
	l.loading = false
	if err != nil {
		return 0, err
	}

	added := l.mergeLocked(page)
	l.page++
	if n := len(page); n > 0 {
		l.cursor = page[n-1].ID
	}
	l.hasMore = len(page) == l.size
	return added, nil
}

// Refresh re-fetches the already loaded head of the timeline and merges it.
// It backs up the change feed and never moves the page cursor.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	pages := l.page
	gen := l.gen
	l.mu.Unlock()

	if pages == 0 {
		_, err := l.LoadMore(ctx)
		return err
	}

	limit := pages * l.size
	if limit > 100 {
		limit = 100
	}
	page, err := l.fetcher.FetchPosts(ctx, postPort.Query{FigureID: l.figureID, Limit: limit})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.gen {
		l.mergeLocked(page)
	}
	return nil
}

// Merge adds or replaces posts by id and restores the order. Posts past the
// loader's date are not added, and a loaded copy of one is dropped. It
// returns the number of new ids.
func (l *Loader) Merge(posts ...*postPort.PostDTO) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mergeLocked(posts)
}

// Insert merges a post delivered out of band, e.g. by the change feed. It
// reports false when the post is not visible at the loader's date.
func (l *Loader) Insert(p *postPort.PostDTO) bool {
	if p == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mergeLocked([]*postPort.PostDTO{p})
	return l.visibleLocked(p)
}

// Visible reports whether p's original date is on or before the loader's date.
func (l *Loader) Visible(p *postPort.PostDTO) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visibleLocked(p)
}

func (l *Loader) visibleLocked(p *postPort.PostDTO) bool {
	return !clock.Truncate(p.OriginalDate).After(l.date)
}

// Remove drops the post with id.
func (l *Loader) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return false
	}
	l.posts = append(l.posts[:i], l.posts[i+1:]...)
	l.reindexLocked()
	return true
}

func (l *Loader) mergeLocked(posts []*postPort.PostDTO) int {
	added, dropped := 0, false
	for _, p := range posts {
		if p == nil || p.ID == "" {
			continue
		}
		i, loaded := l.index[p.ID]
		if !l.visibleLocked(p) {
			if loaded {
				l.posts[i] = nil
				delete(l.index, p.ID)
				dropped = true
			}
			continue
		}
		if loaded {
			l.posts[i] = p
			continue
		}
		l.index[p.ID] = len(l.posts)
		l.posts = append(l.posts, p)
		added++
	}
	if dropped {
		kept := l.posts[:0]
		for _, p := range l.posts {
			if p != nil {
				kept = append(kept, p)
			}
		}
		l.posts = kept
	}
	sortPosts(l.posts)
	l.reindexLocked()
	return added
}

func (l *Loader) reindexLocked() {
	l.index = make(map[string]int, len(l.posts))
	for i, p := range l.posts {
		l.index[p.ID] = i
	}
}

// sortPosts orders by original date descending, then id descending so that
// posts sharing a date keep a stable order.
func sortPosts(posts []*postPort.PostDTO) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.OriginalDate.Equal(b.OriginalDate) {
			return a.OriginalDate.After(b.OriginalDate)
		}
		return a.ID > b.ID
	})
}

// Reset empties the loader and moves it to date. In-flight fetches are
// discarded when they complete.
func (l *Loader) Reset(date time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked(date)
}

func (l *Loader) resetLocked(date time.Time) {
	l.gen++
	l.date = clock.Truncate(date)
	l.posts = nil
	l.index = make(map[string]int)
	l.page = 0
	l.cursor = ""
	l.hasMore = true
	l.loading = false
}

// SetDate resets the loader when date differs from its current one.
func (l *Loader) SetDate(date time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if clock.Truncate(date).Equal(l.date) {
		return false
	}
	l.resetLocked(date)
	return true
}

// Posts returns a copy of the loaded posts in display order.
func (l *Loader) Posts() []*postPort.PostDTO {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*postPort.PostDTO, len(l.posts))
	copy(out, l.posts)
	return out
}

// IDs returns the loaded post ids in display order.
func (l *Loader) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, len(l.posts))
	for i, p := range l.posts {
		ids[i] = p.ID
	}
	return ids
}

// Get returns the loaded post with id.
func (l *Loader) Get(id string) (*postPort.PostDTO, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return l.posts[i], true
}

// Len returns the number of loaded posts.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posts)
}

// HasMore reports whether the last page was full.
func (l *Loader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Date returns the virtual date the loader filters by.
func (l *Loader) Date() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.date
}
