package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"vestigia/internal/core/interaction"
	interactionPort "vestigia/internal/ports/interaction"
)

// InteractionRepositoryDatabase implements interactionPort.InteractionRepository.
// Counts are COUNT(*) over live rows; nothing is denormalized.
type InteractionRepositoryDatabase struct {
	DB *gorm.DB
}

func NewInteractionRepositoryDatabase(db *gorm.DB) *InteractionRepositoryDatabase {
	return &InteractionRepositoryDatabase{DB: db}
}

// Create inserts i. A hit on the uniqueness index returns ErrDuplicate.
func (repo *InteractionRepositoryDatabase) Create(ctx context.Context, i *interaction.Interaction) (*interaction.Interaction, error) {
	if err := repo.DB.WithContext(ctx).Create(i).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, interactionPort.ErrDuplicate
		}
		return nil, err
	}
	return i, nil
}

func (repo *InteractionRepositoryDatabase) FindByID(ctx context.Context, id string) (*interaction.Interaction, error) {
	var i interaction.Interaction
	if err := repo.DB.WithContext(ctx).Where("id = ?", id).First(&i).Error; err != nil {
		if isNotFound(err) {
			return nil, interactionPort.ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

// FindOne returns the row at the exact uniqueness key.
func (repo *InteractionRepositoryDatabase) FindOne(ctx context.Context, userID, postID string, kind interaction.Kind, targetKey string) (*interaction.Interaction, error) {
	var i interaction.Interaction
	err := repo.DB.WithContext(ctx).
		Where("user_id = ? AND post_id = ? AND kind = ? AND target_key = ?", userID, postID, kind, targetKey).
		First(&i).Error
	if err != nil {
		if isNotFound(err) {
			return nil, interactionPort.ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (repo *InteractionRepositoryDatabase) Delete(ctx context.Context, id string) error {
	res := repo.DB.WithContext(ctx).Where("id = ?", id).Delete(&interaction.Interaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interactionPort.ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment together with the likes on it.
func (repo *InteractionRepositoryDatabase) DeleteComment(ctx context.Context, commentID string) error {
	return repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("kind = ? AND target_key = ?", interaction.KindCommentLike, commentID).
			Delete(&interaction.Interaction{}).Error; err != nil {
			return fmt.Errorf("delete comment likes: %w", err)
		}
		res := tx.Where("id = ? AND kind = ?", commentID, interaction.KindComment).Delete(&interaction.Interaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return interactionPort.ErrNotFound
		}
		return nil
	})
}

func (repo *InteractionRepositoryDatabase) Count(ctx context.Context, postID string, kind interaction.Kind, targetKey string) (int64, error) {
	var n int64
	tx := repo.DB.WithContext(ctx).Model(&interaction.Interaction{}).Where("post_id = ? AND kind = ?", postID, kind)
	if kind != interaction.KindComment {
		tx = tx.Where("target_key = ?", targetKey)
	}
	err := tx.Count(&n).Error
	return n, err
}

type keyCount struct {
	K string
	N int64
}

func (repo *InteractionRepositoryDatabase) CountByPosts(ctx context.Context, postIDs []string, kind interaction.Kind) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	tx := repo.DB.WithContext(ctx).Model(&interaction.Interaction{}).
		Select("post_id AS k, COUNT(*) AS n").
		Where("post_id IN ? AND kind = ?", postIDs, kind)
	if kind == interaction.KindLike {
		tx = tx.Where("target_key = ?", "")
	}
	var rows []keyCount
	if err := tx.Group("post_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.K] = r.N
	}
	return out, nil
}

func (repo *InteractionRepositoryDatabase) CountByComments(ctx context.Context, commentIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(commentIDs))
	if len(commentIDs) == 0 {
		return out, nil
	}
	tx := repo.DB.WithContext(ctx).Model(&interaction.Interaction{}).
		Select("target_key AS k, COUNT(*) AS n").
		Where("target_key IN ? AND kind = ?", commentIDs, interaction.KindCommentLike).
		Group("target_key")
	var rows []keyCount
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.K] = r.N
	}
	return out, nil
}

func (repo *InteractionRepositoryDatabase) LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := repo.DB.WithContext(ctx).Model(&interaction.Interaction{}).
		Where("user_id = ? AND kind = ? AND target_key = ? AND post_id IN ?", userID, interaction.KindLike, "", postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (repo *InteractionRepositoryDatabase) LikedComments(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(commentIDs))
	if len(commentIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := repo.DB.WithContext(ctx).Model(&interaction.Interaction{}).
		Where("user_id = ? AND kind = ? AND target_key IN ?", userID, interaction.KindCommentLike, commentIDs).
		Pluck("target_key", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Comments returns the comments on postID, oldest first.
func (repo *InteractionRepositoryDatabase) Comments(ctx context.Context, postID string) ([]*interaction.Interaction, error) {
	var comments []*interaction.Interaction
	err := repo.DB.WithContext(ctx).
		Where("post_id = ? AND kind = ?", postID, interaction.KindComment).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}
