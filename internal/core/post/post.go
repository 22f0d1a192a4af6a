package post

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/datatypes"

	"vestigia/internal/core/figure"
	"vestigia/internal/core/locale"
)

// Post is a historical post dated in-fiction by OriginalDate. A user sees it
// only once their virtual clock reaches that date.
type Post struct {
	ID           uuid.UUID                            `gorm:"primary_key;type:char(36)"`
	FigureID     uuid.UUID                            `gorm:"type:char(36);not null;index"`
	Figure       figure.Figure                        `gorm:"foreignkey:FigureID"`
	OriginalDate time.Time                            `gorm:"type:date;not null;index"`
	Content      datatypes.JSONType[locale.Localized] `gorm:"not null"`
	MediaURL     string                               `gorm:"type:varchar(1024)"`
	Source       datatypes.JSONType[locale.Localized]
	Significant  bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Post) TableName() string { return "historical_posts" }
