package database

import (
	"gorm.io/gorm"

	"vestigia/internal/core/figure"
	"vestigia/internal/core/interaction"
	"vestigia/internal/core/post"
	"vestigia/internal/core/profile"
)

// Migrate creates or updates every table the backend serves.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&profile.Profile{},
		&figure.Figure{},
		&post.Post{},
		&interaction.Interaction{},
	)
}
