package interaction

import (
	"time"

	"github.com/gofrs/uuid"
)

// Kind of a user interaction.
type Kind string

const (
	KindLike        Kind = "like"
	KindComment     Kind = "comment"
	KindCommentLike Kind = "comment_like"
)

// Interaction is a like, a comment, or a like on a comment.
//
// TargetKey completes the unique index (user, post, kind, target): it is
// empty for post likes, the comment id for comment likes and the row's own
// id for comments, so a user holds at most one like per post and per
// comment while comments stay unrestricted.
type Interaction struct {
	ID        uuid.UUID  `gorm:"primary_key;type:char(36)"`
	UserID    uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:uniq_interaction,priority:1"`
	PostID    uuid.UUID  `gorm:"type:char(36);not null;index;uniqueIndex:uniq_interaction,priority:2"`
	Kind      Kind       `gorm:"type:varchar(20);not null;uniqueIndex:uniq_interaction,priority:3"`
	TargetKey string     `gorm:"type:varchar(36);not null;uniqueIndex:uniq_interaction,priority:4"`
	CommentID *uuid.UUID `gorm:"type:char(36);index"`
	Content   string     `gorm:"type:text"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
}

func (Interaction) TableName() string { return "user_interactions" }

// TargetKeyFor returns the TargetKey for a new interaction.
func TargetKeyFor(kind Kind, id uuid.UUID, commentID *uuid.UUID) string {
	switch kind {
	case KindComment:
		return id.String()
	case KindCommentLike:
		if commentID != nil {
			return commentID.String()
		}
	}
	return ""
}
