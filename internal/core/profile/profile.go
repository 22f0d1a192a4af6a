package profile

import (
	"time"

	"github.com/gofrs/uuid"
)

// Identity providers a profile can be created through.
const (
	ProviderEmail   = "email"
	ProviderOAuth   = "oauth"
	ProviderIDToken = "id_token"
)

// Profile is a signed-in user. StartDate anchors the user's virtual clock;
// nil means the configured default applies.
type Profile struct {
	ID           uuid.UUID  `gorm:"primary_key;type:char(36)"`
	Provider     string     `gorm:"type:varchar(32);not null;uniqueIndex:uniq_identity,priority:1"`
	Subject      string     `gorm:"type:varchar(255);not null;uniqueIndex:uniq_identity,priority:2"`
	Email        string     `gorm:"type:varchar(255);index"`
	PasswordHash string     `gorm:"type:varchar(255)"`
	DisplayName  string     `gorm:"type:varchar(255)"`
	AvatarURL    string     `gorm:"type:varchar(1024)"`
	Language     string     `gorm:"type:varchar(16);not null"`
	StartDate    *time.Time `gorm:"type:date"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (Profile) TableName() string { return "profiles" }
