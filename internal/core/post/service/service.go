package postapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/clock"
	postEntity "vestigia/internal/core/post"
	figurePort "vestigia/internal/ports/figure"
	postPort "vestigia/internal/ports/post"
	realtimePort "vestigia/internal/ports/realtime"
)

var (
	ErrUnknownFigure = errors.New("post references an unknown figure")
	ErrEmptyContent  = errors.New("post content is empty")
	ErrMissingDate   = errors.New("post has no original date")
)

// PostService writes historical posts. Users never create posts; they come
// from the seed data.
type PostService struct {
	PostRepository   postPort.PostRepository
	FigureRepository figurePort.FigureRepository
	Publisher        realtimePort.Publisher
	logger           *zap.Logger
}

func NewPostService(
	postRepo postPort.PostRepository,
	figureRepo figurePort.FigureRepository,
	publisher realtimePort.Publisher,
	logger *zap.Logger,
) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		PostRepository:   postRepo,
		FigureRepository: figureRepo,
		Publisher:        publisher,
		logger:           logger,
	}
}

// Import upserts p by id and announces it. It reports whether the post was
// new.
func (s *PostService) Import(ctx context.Context, p *postEntity.Post) (bool, error) {
	if len(p.Content.Data()) == 0 {
		return false, ErrEmptyContent
	}
	if p.OriginalDate.IsZero() {
		return false, ErrMissingDate
	}
	if _, err := s.FigureRepository.FindByID(ctx, p.FigureID.String()); err != nil {
		if errors.Is(err, figurePort.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", ErrUnknownFigure, p.FigureID)
		}
		return false, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.Must(uuid.NewV4())
	}
	p.OriginalDate = clock.Truncate(p.OriginalDate)

	created := false
	if _, err := s.PostRepository.FindByID(ctx, p.ID.String()); errors.Is(err, postPort.ErrNotFound) {
		created = true
	} else if err != nil {
		return false, fmt.Errorf("load post %s: %w", p.ID, err)
	}

	if err := s.PostRepository.Upsert(ctx, p); err != nil {
		return false, fmt.Errorf("upsert post %s: %w", p.ID, err)
	}

	evType := changefeed.Update
	if created {
		evType = changefeed.Insert
	}
	s.publish(ctx, evType, p)
	return created, nil
}

func (s *PostService) publish(ctx context.Context, t changefeed.EventType, p *postEntity.Post) {
	if s.Publisher == nil {
		return
	}
	err := s.Publisher.Publish(ctx, changefeed.Event{
		Table: changefeed.TablePosts,
		Type:  t,
		Record: map[string]any{
			"id":            p.ID.String(),
			"figure_id":     p.FigureID.String(),
			"original_date": clock.FormatDate(p.OriginalDate),
		},
	})
	if err != nil {
		s.logger.Warn("Could not publish post change", zap.String("post_id", p.ID.String()), zap.Error(err))
	}
}
