package figureapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	figureEntity "vestigia/internal/core/figure"
	figurePort "vestigia/internal/ports/figure"
	realtimePort "vestigia/internal/ports/realtime"
)

var (
	ErrFigureNotFound = errors.New("figure not found")
	ErrEmptySearch    = errors.New("search term is empty")
)

const maxPage = 100

type FigureService struct {
	FigureRepository figurePort.FigureRepository
	Publisher        realtimePort.Publisher
	logger           *zap.Logger
}

func NewFigureService(repo figurePort.FigureRepository, publisher realtimePort.Publisher, logger *zap.Logger) *FigureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FigureService{FigureRepository: repo, Publisher: publisher, logger: logger}
}

func (s *FigureService) List(ctx context.Context, lang string, offset, limit int) ([]*figurePort.FigureDTO, error) {
	figures, err := s.FigureRepository.List(ctx, max(offset, 0), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list figures: %w", err)
	}
	return toDTOs(figures, lang), nil
}

func (s *FigureService) Get(ctx context.Context, lang, id string) (*figurePort.FigureDTO, error) {
	f, err := s.FigureRepository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, figurePort.ErrNotFound) {
			return nil, ErrFigureNotFound
		}
		return nil, err
	}
	return ToDTO(f, lang, true), nil
}

func (s *FigureService) Search(ctx context.Context, lang, term string, limit int) ([]*figurePort.FigureDTO, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptySearch
	}
	figures, err := s.FigureRepository.Search(ctx, term, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search figures: %w", err)
	}
	return toDTOs(figures, lang), nil
}

// Upsert writes f and announces the change.
func (s *FigureService) Upsert(ctx context.Context, f *figureEntity.Figure) error {
	if err := s.FigureRepository.Upsert(ctx, f); err != nil {
		return fmt.Errorf("upsert figure %s: %w", f.ID, err)
	}
	if s.Publisher == nil {
		return nil
	}
	err := s.Publisher.Publish(ctx, changefeed.Event{
		Table: changefeed.TableFigures,
		Type:  changefeed.Update,
		Record: map[string]any{
			"id":       f.ID.String(),
			"name":     f.Name,
			"verified": f.Verified,
		},
	})
	if err != nil {
		s.logger.Warn("Could not publish figure change", zap.String("figure_id", f.ID.String()), zap.Error(err))
	}
	return nil
}

// ToDTO resolves the localized fields of f for lang. The biography is only
// included when withBio is set.
func ToDTO(f *figureEntity.Figure, lang string, withBio bool) *figurePort.FigureDTO {
	dto := &figurePort.FigureDTO{
		ID:        f.ID.String(),
		Name:      f.Name,
		Title:     f.Title.Data().Resolve(lang),
		AvatarURL: f.AvatarURL,
		Verified:  f.Verified,
	}
	if withBio {
		dto.Biography = f.Biography.Data().Resolve(lang)
	}
	return dto
}

func toDTOs(figures []*figureEntity.Figure, lang string) []*figurePort.FigureDTO {
	out := make([]*figurePort.FigureDTO, 0, len(figures))
	for _, f := range figures {
		out = append(out, ToDTO(f, lang, false))
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, maxPage)
}
