package database

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vestigia/internal/core/post"
	postPort "vestigia/internal/ports/post"
)

// PostRepositoryDatabase implements postPort.PostRepository. Every read
// filters by original_date so posts past the viewer's date never leave the
// database.
type PostRepositoryDatabase struct {
	DB *gorm.DB
}

func NewPostRepositoryDatabase(db *gorm.DB) *PostRepositoryDatabase {
	return &PostRepositoryDatabase{DB: db}
}

func (repo *PostRepositoryDatabase) FindVisible(ctx context.Context, date time.Time, q postPort.Query) ([]*post.Post, error) {
	tx, err := repo.page(ctx, date, q)
	if err != nil {
		return nil, err
	}
	var posts []*post.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (repo *PostRepositoryDatabase) FindByID(ctx context.Context, id string) (*post.Post, error) {
	var p post.Post
	if err := repo.DB.WithContext(ctx).Preload("Figure").Where("id = ?", id).First(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, postPort.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Search matches term against the localized content of visible posts.
func (repo *PostRepositoryDatabase) Search(ctx context.Context, date time.Time, term string, q postPort.Query) ([]*post.Post, error) {
	tx, err := repo.page(ctx, date, q)
	if err != nil {
		return nil, err
	}
	pattern := "%" + strings.ToLower(term) + "%"
	var posts []*post.Post
	err = tx.Where("LOWER("+textExpr(repo.DB, "content")+") LIKE ?", pattern).Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Upsert inserts p or overwrites the row with the same id. The figure
// association is never written.
func (repo *PostRepositoryDatabase) Upsert(ctx context.Context, p *post.Post) error {
	return repo.DB.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"figure_id", "original_date", "content", "media_url", "source", "significant", "updated_at",
		}),
	}).Create(p).Error
}

// page builds the visibility filter, ordering and pagination of q. A cursor
// is resolved to its (original_date, id) key.
func (repo *PostRepositoryDatabase) page(ctx context.Context, date time.Time, q postPort.Query) (*gorm.DB, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = postPort.PageSize
	}

	tx := repo.DB.WithContext(ctx).
		Preload("Figure").
		Where("original_date <= ?", date)
	if q.FigureID != "" {
		tx = tx.Where("figure_id = ?", q.FigureID)
	}

	if q.Before != "" {
		var cursor post.Post
		err := repo.DB.WithContext(ctx).Select("id", "original_date").Where("id = ?", q.Before).First(&cursor).Error
		if err != nil {
			if isNotFound(err) {
				return nil, postPort.ErrNotFound
			}
			return nil, err
		}
		tx = tx.Where("(original_date < ? OR (original_date = ? AND id < ?))",
			cursor.OriginalDate, cursor.OriginalDate, cursor.ID)
	} else if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	return tx.Order("original_date DESC, id DESC").Limit(limit), nil
}
