package figureapp

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"vestigia/internal/core/changefeed"
	figureEntity "vestigia/internal/core/figure"
	"vestigia/internal/core/locale"
	figurePort "vestigia/internal/ports/figure"
)

type mockFigureRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*figureEntity.Figure, error)
	listFunc     func(ctx context.Context, offset, limit int) ([]*figureEntity.Figure, error)
	searchFunc   func(ctx context.Context, term string, limit int) ([]*figureEntity.Figure, error)
	upsertFunc   func(ctx context.Context, f *figureEntity.Figure) error
}

func (m *mockFigureRepo) FindByID(ctx context.Context, id string) (*figureEntity.Figure, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockFigureRepo) List(ctx context.Context, offset, limit int) ([]*figureEntity.Figure, error) {
	return m.listFunc(ctx, offset, limit)
}

func (m *mockFigureRepo) Search(ctx context.Context, term string, limit int) ([]*figureEntity.Figure, error) {
	return m.searchFunc(ctx, term, limit)
}

func (m *mockFigureRepo) Upsert(ctx context.Context, f *figureEntity.Figure) error {
	return m.upsertFunc(ctx, f)
}

type mockPublisher struct {
	events []changefeed.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, ev changefeed.Event) error {
	m.events = append(m.events, ev)
	return m.err
}

func lafayette() *figureEntity.Figure {
	return &figureEntity.Figure{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      "Lafayette",
		Title:     datatypes.NewJSONType(locale.Localized{"en": "Marquis", "fr": "Marquis de La Fayette"}),
		Biography: datatypes.NewJSONType(locale.Localized{"en": "Hero of two worlds"}),
		Verified:  true,
	}
}

func TestFigureService_GetResolvesLanguage(t *testing.T) {
	f := lafayette()
	repo := &mockFigureRepo{findByIDFunc: func(_ context.Context, id string) (*figureEntity.Figure, error) {
		if id == f.ID.String() {
			return f, nil
		}
		return nil, figurePort.ErrNotFound
	}}
	svc := NewFigureService(repo, nil, nil)

	dto, err := svc.Get(context.Background(), "fr-CA", f.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Marquis de La Fayette", dto.Title)
	assert.Equal(t, "Hero of two worlds", dto.Biography, "missing variants fall back to English")

	_, err = svc.Get(context.Background(), "en", "missing")
	assert.ErrorIs(t, err, ErrFigureNotFound)
}

func TestFigureService_ListAndSearch(t *testing.T) {
	var gotLimit int
	repo := &mockFigureRepo{
		listFunc: func(_ context.Context, offset, limit int) ([]*figureEntity.Figure, error) {
			gotLimit = limit
			return []*figureEntity.Figure{lafayette()}, nil
		},
		searchFunc: func(_ context.Context, term string, limit int) ([]*figureEntity.Figure, error) {
			assert.Equal(t, "lafa", term)
			return nil, errors.New("db down")
		},
	}
	svc := NewFigureService(repo, nil, nil)

	list, err := svc.List(context.Background(), "en", -5, 1000)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Biography)
	assert.Equal(t, maxPage, gotLimit)

	_, err = svc.Search(context.Background(), "en", "  ", 10)
	assert.ErrorIs(t, err, ErrEmptySearch)
	_, err = svc.Search(context.Background(), "en", " lafa ", 10)
	assert.ErrorContains(t, err, "db down")
}

func TestFigureService_UpsertPublishes(t *testing.T) {
	f := lafayette()
	pub := &mockPublisher{err: errors.New("redis down")}
	repo := &mockFigureRepo{upsertFunc: func(context.Context, *figureEntity.Figure) error { return nil }}
	svc := NewFigureService(repo, pub, nil)

	require.NoError(t, svc.Upsert(context.Background(), f), "a failed publish does not fail the write")
	require.Len(t, pub.events, 1)
	assert.Equal(t, changefeed.TableFigures, pub.events[0].Table)
	assert.Equal(t, f.ID.String(), pub.events[0].Record["id"])
}
