// Package changefeed delivers row-level change notifications to handlers.
//
// Notifications are hints, not an ordered log: a handler should re-fetch or
// merge the given row by id, so duplicates and reordering are harmless. A
// periodic poll backs up the push channel with the same merge path.
package changefeed

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Tables that publish changes.
const (
	TablePosts        = "historical_posts"
	TableFigures      = "historical_figures"
	TableInteractions = "user_interactions"
	TableProfiles     = "profiles"
)

// KnownTable reports whether table publishes changes.
func KnownTable(table string) bool {
	switch table {
	case TablePosts, TableFigures, TableInteractions, TableProfiles:
		return true
	}
	return false
}

// Event is one row change. Record holds the new row, Old the previous one
// for updates and deletes.
type Event struct {
	Table  string         `json:"table"`
	Type   EventType      `json:"type"`
	Record map[string]any `json:"record,omitempty"`
	Old    map[string]any `json:"old,omitempty"`
	At     time.Time      `json:"at"`
}

// Value returns column from Record, falling back to Old.
func (e Event) Value(column string) (string, bool) {
	if v, ok := e.Record[column]; ok && v != nil {
		return fmt.Sprint(v), true
	}
	if v, ok := e.Old[column]; ok && v != nil {
		return fmt.Sprint(v), true
	}
	return "", false
}

// Filter restricts a subscription to rows whose column equals a value. The
// zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "column=eq.value". An empty string yields the zero Filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || value == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: only eq. is supported", s)
	}
	return Filter{Column: column, Value: value}, nil
}

// Eq builds a column=eq.value filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// String renders the filter in the form ParseFilter accepts.
func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if f.Column == "" {
		return true
	}
	v, ok := ev.Value(f.Column)
	return ok && v == f.Value
}

// Source opens push subscriptions. The returned channel is closed when ctx
// ends or the underlying connection drops.
type Source interface {
	Subscribe(ctx context.Context, table string, filter Filter) (<-chan Event, error)
}
