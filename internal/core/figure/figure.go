package figure

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/datatypes"

	"vestigia/internal/core/locale"
)

// Figure is a historical person who "publishes" posts. Read-only to users.
type Figure struct {
	ID        uuid.UUID                            `gorm:"primary_key;type:char(36)"`
	Name      string                               `gorm:"type:varchar(255);not null;index"`
	Title     datatypes.JSONType[locale.Localized] `gorm:"not null"`
	Biography datatypes.JSONType[locale.Localized]
	AvatarURL string    `gorm:"type:varchar(1024)"`
	Verified  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Figure) TableName() string { return "historical_figures" }
