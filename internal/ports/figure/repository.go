package figure

import (
	"context"
	"errors"

	"vestigia/internal/core/figure"
)

// ErrNotFound is returned when no figure row matches.
var ErrNotFound = errors.New("figure not found")

// FigureRepository reads historical figures and upserts them when seeding.
type FigureRepository interface {
	FindByID(ctx context.Context, id string) (*figure.Figure, error)
	List(ctx context.Context, offset, limit int) ([]*figure.Figure, error)
	Search(ctx context.Context, term string, limit int) ([]*figure.Figure, error)
	Upsert(ctx context.Context, f *figure.Figure) error
}

// FigureDTO is a figure with its localized fields resolved for one viewer.
type FigureDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Biography string `json:"biography,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Verified  bool   `json:"verified"`
}
