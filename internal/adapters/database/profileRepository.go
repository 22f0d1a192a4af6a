package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"vestigia/internal/core/profile"
	profilePort "vestigia/internal/ports/profile"
)

// ProfileRepositoryDatabase implements profilePort.ProfileRepository on gorm.
type ProfileRepositoryDatabase struct {
	DB *gorm.DB
}

func NewProfileRepositoryDatabase(db *gorm.DB) *ProfileRepositoryDatabase {
	return &ProfileRepositoryDatabase{DB: db}
}

func (repo *ProfileRepositoryDatabase) Create(ctx context.Context, p *profile.Profile) (*profile.Profile, error) {
	if err := repo.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (repo *ProfileRepositoryDatabase) FindByID(ctx context.Context, id string) (*profile.Profile, error) {
	var p profile.Profile
	if err := repo.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, profilePort.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (repo *ProfileRepositoryDatabase) FindByIdentity(ctx context.Context, provider, subject string) (*profile.Profile, error) {
	var p profile.Profile
	err := repo.DB.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		First(&p).Error
	if err != nil {
		if isNotFound(err) {
			return nil, profilePort.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update writes the settings columns of p. Identity columns never change.
func (repo *ProfileRepositoryDatabase) Update(ctx context.Context, p *profile.Profile) error {
	res := repo.DB.WithContext(ctx).Model(&profile.Profile{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"display_name": p.DisplayName,
			"avatar_url":   p.AvatarURL,
			"language":     p.Language,
			"start_date":   p.StartDate,
		})
	if res.Error != nil {
		return fmt.Errorf("update profile %s: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return profilePort.ErrNotFound
	}
	return nil
}

// List pages through profiles in creation order.
func (repo *ProfileRepositoryDatabase) List(ctx context.Context, offset, limit int) ([]*profile.Profile, error) {
	var profiles []*profile.Profile
	err := repo.DB.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
