package database

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vestigia/internal/core/figure"
	figurePort "vestigia/internal/ports/figure"
)

type FigureRepositoryDatabase struct {
	DB *gorm.DB
}

func NewFigureRepositoryDatabase(db *gorm.DB) *FigureRepositoryDatabase {
	return &FigureRepositoryDatabase{DB: db}
}

func (repo *FigureRepositoryDatabase) FindByID(ctx context.Context, id string) (*figure.Figure, error) {
	var f figure.Figure
	if err := repo.DB.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		if isNotFound(err) {
			return nil, figurePort.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (repo *FigureRepositoryDatabase) List(ctx context.Context, offset, limit int) ([]*figure.Figure, error) {
	var figures []*figure.Figure
	err := repo.DB.WithContext(ctx).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&figures).Error
	return figures, err
}

// Search matches term against the name and the localized titles.
func (repo *FigureRepositoryDatabase) Search(ctx context.Context, term string, limit int) ([]*figure.Figure, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	var figures []*figure.Figure
	err := repo.DB.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER("+textExpr(repo.DB, "title")+") LIKE ?", pattern, pattern).
		Order("name ASC, id ASC").
		Limit(limit).
		Find(&figures).Error
	return figures, err
}

// Upsert inserts f or overwrites the row with the same id.
func (repo *FigureRepositoryDatabase) Upsert(ctx context.Context, f *figure.Figure) error {
	return repo.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "title", "biography", "avatar_url", "verified", "updated_at"}),
	}).Create(f).Error
}
