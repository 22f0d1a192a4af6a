package profile

import (
	"context"
	"errors"
	"time"

	"vestigia/internal/core/profile"
)

// ErrNotFound is returned when no profile row matches.
var ErrNotFound = errors.New("profile not found")

// ProfileRepository stores and loads profiles.
type ProfileRepository interface {
	Create(ctx context.Context, p *profile.Profile) (*profile.Profile, error)
	FindByID(ctx context.Context, id string) (*profile.Profile, error)
	FindByIdentity(ctx context.Context, provider, subject string) (*profile.Profile, error)
	Update(ctx context.Context, p *profile.Profile) error
	List(ctx context.Context, offset, limit int) ([]*profile.Profile, error)
}

// DTOs for the use cases

type SessionDTO struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	UserID    string      `json:"userId"`
	SessionID string      `json:"sessionId,omitempty"`
	Profile   *ProfileDTO `json:"profile,omitempty"`
}

type ProfileDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Language    string `json:"language"`
	StartDate   string `json:"start_date,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// UpdateProfileRequest carries optional settings changes; nil fields are kept.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Language    *string `json:"language"`
	StartDate   *string `json:"start_date"`
}

type ClockDTO struct {
	StartDate     string `json:"start_date"`
	CurrentDate   string `json:"current_date"`
	NextAdvanceAt string `json:"next_advance_at"`
	DisplayDate   string `json:"display_date"`
}

// Viewer is what read paths need to know about the requesting user.
type Viewer struct {
	UserID   string
	Date     time.Time
	Language string
}
