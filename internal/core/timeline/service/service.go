package timelineapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vestigia/internal/core/clock"
	figureapp "vestigia/internal/core/figure/service"
	"vestigia/internal/core/locale"
	postEntity "vestigia/internal/core/post"
	figurePort "vestigia/internal/ports/figure"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrFigureNotFound = figureapp.ErrFigureNotFound
	ErrEmptySearch    = errors.New("search term is empty")
)

// TimelineService serves the posts a viewer's virtual clock has reached.
type TimelineService struct {
	PostRepository   postPort.PostRepository
	FigureRepository figurePort.FigureRepository
}

func NewTimelineService(postRepo postPort.PostRepository, figureRepo figurePort.FigureRepository) *TimelineService {
	return &TimelineService{
		PostRepository:   postRepo,
		FigureRepository: figureRepo,
	}
}

// Timeline returns one page of the global timeline.
func (s *TimelineService) Timeline(ctx context.Context, v profilePort.Viewer, q postPort.Query) (*postPort.PageDTO, error) {
	q = normalize(q)
	posts, err := s.PostRepository.FindVisible(ctx, v.Date, q)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return page(posts, v, q.Limit), nil
}

// FigureTimeline returns one page of a single figure's posts.
func (s *TimelineService) FigureTimeline(ctx context.Context, v profilePort.Viewer, figureID string, q postPort.Query) (*postPort.PageDTO, error) {
	if _, err := s.FigureRepository.FindByID(ctx, figureID); err != nil {
		if errors.Is(err, figurePort.ErrNotFound) {
			return nil, ErrFigureNotFound
		}
		return nil, err
	}
	q.FigureID = figureID
	return s.Timeline(ctx, v, q)
}

// GetPost returns a post only once the viewer's clock has reached it.
func (s *TimelineService) GetPost(ctx context.Context, v profilePort.Viewer, id string) (*postPort.PostDTO, error) {
	p, err := s.PostRepository.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err)
	}
	if clock.Truncate(p.OriginalDate).After(clock.Truncate(v.Date)) {
		return nil, ErrPostNotFound
	}
	return ToPostDTO(p, v.Language), nil
}

// Search matches term against visible posts.
func (s *TimelineService) Search(ctx context.Context, v profilePort.Viewer, term string, q postPort.Query) (*postPort.PageDTO, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptySearch
	}
	q = normalize(q)
	posts, err := s.PostRepository.Search(ctx, v.Date, term, q)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return page(posts, v, q.Limit), nil
}

func (s *TimelineService) mapErr(err error) error {
	if errors.Is(err, postPort.ErrNotFound) {
		return ErrPostNotFound
	}
	return fmt.Errorf("load posts: %w", err)
}

func normalize(q postPort.Query) postPort.Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = postPort.PageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func page(posts []*postEntity.Post, v profilePort.Viewer, limit int) *postPort.PageDTO {
	out := &postPort.PageDTO{
		Posts:   make([]*postPort.PostDTO, 0, len(posts)),
		HasMore: len(posts) == limit,
		Date:    clock.FormatDate(v.Date),
	}
	for _, p := range posts {
		out.Posts = append(out.Posts, ToPostDTO(p, v.Language))
	}
	if n := len(out.Posts); n > 0 {
		out.NextCursor = out.Posts[n-1].ID
	}
	return out
}

// ToPostDTO resolves the localized fields of p for lang.
func ToPostDTO(p *postEntity.Post, lang string) *postPort.PostDTO {
	dto := &postPort.PostDTO{
		ID:           p.ID.String(),
		FigureID:     p.FigureID.String(),
		OriginalDate: clock.Truncate(p.OriginalDate),
		DisplayDate:  locale.FormatDate(p.OriginalDate, lang),
		Content:      p.Content.Data().Resolve(lang),
		MediaURL:     p.MediaURL,
		Source:       p.Source.Data().Resolve(lang),
		Significant:  p.Significant,
	}
	if p.Figure.ID == p.FigureID && p.Figure.Name != "" {
		dto.Figure = figureapp.ToDTO(&p.Figure, lang, false)
	}
	return dto
}
