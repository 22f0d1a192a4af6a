package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	postPort "vestigia/internal/ports/post"
)

func TestSnapshot_CaptureRestore(t *testing.T) {
	today := date(t, "1789-07-14")
	f := &mockFetcher{fetchPostsFunc: func(context.Context, postPort.Query) ([]*postPort.PostDTO, error) {
		return posts("p", today, 10), nil
	}}
	l := NewLoader(f, today)
	_, err := l.LoadMore(context.Background())
	require.NoError(t, err)

	snap := l.Capture("timeline")
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, "p09", snap.Cursor)
	assert.True(t, snap.ValidFor(today))

	restored := NewLoader(f, today)
	require.True(t, restored.Restore(snap))
	assert.Equal(t, l.IDs(), restored.IDs())
	assert.True(t, restored.HasMore())

	_, err = restored.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p09", f.queries[len(f.queries)-1].Before, "paging resumes after the snapshot")
}

func TestSnapshot_RestoreRejectsOtherDate(t *testing.T) {
	today := date(t, "1789-07-14")
	l := NewLoader(&mockFetcher{}, today)
	l.Merge(post("a", today))
	snap := l.Capture("timeline")

	next := NewLoader(&mockFetcher{}, today.AddDate(0, 0, 1))
	assert.False(t, next.Restore(snap))
	assert.Zero(t, next.Len())
}

func TestSnapshotCache_InvalidatesOnDateMismatch(t *testing.T) {
	today := date(t, "1789-07-14")
	c := NewSnapshotCache()
	c.Put(&Snapshot{View: "timeline", ClockDate: today})
	c.Put(&Snapshot{View: "figure:1", ClockDate: today})

	_, ok := c.Get("timeline", today)
	assert.True(t, ok)

	_, ok = c.Get("timeline", today.AddDate(0, 0, 1))
	assert.False(t, ok)
	_, ok = c.Get("timeline", today)
	assert.False(t, ok, "a stale entry is dropped, not kept for later")

	c.Invalidate("figure:1")
	_, ok = c.Get("figure:1", today)
	assert.False(t, ok)
}
