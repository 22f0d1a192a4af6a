package interaction

import (
	"context"
	"errors"
	"time"

	"vestigia/internal/core/interaction"
)

var (
	// ErrNotFound is returned when no interaction row matches.
	ErrNotFound = errors.New("interaction not found")
	// ErrDuplicate is returned when an insert hits the uniqueness index.
	ErrDuplicate = errors.New("interaction already exists")
)

// InteractionRepository persists likes and comments. Counts are always
// computed from live rows.
type InteractionRepository interface {
	Create(ctx context.Context, i *interaction.Interaction) (*interaction.Interaction, error)
	FindByID(ctx context.Context, id string) (*interaction.Interaction, error)
	FindOne(ctx context.Context, userID, postID string, kind interaction.Kind, targetKey string) (*interaction.Interaction, error)
	Delete(ctx context.Context, id string) error
	DeleteComment(ctx context.Context, commentID string) error
	Count(ctx context.Context, postID string, kind interaction.Kind, targetKey string) (int64, error)
	CountByPosts(ctx context.Context, postIDs []string, kind interaction.Kind) (map[string]int64, error)
	CountByComments(ctx context.Context, commentIDs []string) (map[string]int64, error)
	LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	LikedComments(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error)
	Comments(ctx context.Context, postID string) ([]*interaction.Interaction, error)
}

// DTOs for the use cases

type LikeResultDTO struct {
	TargetID  string `json:"target_id"`
	PostID    string `json:"post_id"`
	Liked     bool   `json:"liked"`
	LikeCount int64  `json:"like_count"`
}

type CommentDTO struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	LikeCount int64     `json:"like_count"`
	Liked     bool      `json:"liked"`
}

type CountsDTO struct {
	PostID       string `json:"post_id"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	Liked        bool   `json:"liked"`
}
