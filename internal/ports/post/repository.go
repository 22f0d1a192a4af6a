package post

import (
	"context"
	"errors"
	"time"

	"vestigia/internal/core/post"
	figurePort "vestigia/internal/ports/figure"
)

// ErrNotFound is returned when no post row matches, or the post lies beyond
// the viewer's virtual date.
var ErrNotFound = errors.New("post not found")

// PageSize is the fixed number of posts per page.
const PageSize = 10

// Query selects one page of visible posts. Before is a cursor: the id of the
// last post already loaded. When Before is empty Offset applies.
type Query struct {
	FigureID string
	Before   string
	Offset   int
	Limit    int
}

// PostRepository reads posts visible at a virtual date and upserts them
// when seeding.
type PostRepository interface {
	FindVisible(ctx context.Context, date time.Time, q Query) ([]*post.Post, error)
	FindByID(ctx context.Context, id string) (*post.Post, error)
	Search(ctx context.Context, date time.Time, term string, q Query) ([]*post.Post, error)
	Upsert(ctx context.Context, p *post.Post) error
}

// DTOs for the use cases

type PostDTO struct {
	ID           string                `json:"id"`
	FigureID     string                `json:"figure_id"`
	Figure       *figurePort.FigureDTO `json:"figure,omitempty"`
	OriginalDate time.Time             `json:"original_date"`
	DisplayDate  string                `json:"display_date"`
	Content      string                `json:"content"`
	MediaURL     string                `json:"media_url,omitempty"`
	Source       string                `json:"source,omitempty"`
	Significant  bool                  `json:"significant"`
}

type PageDTO struct {
	Posts      []*PostDTO `json:"posts"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor,omitempty"`
	Date       string     `json:"date"`
}
