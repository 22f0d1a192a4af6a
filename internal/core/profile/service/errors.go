package profileapp

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidState       = errors.New("invalid or expired oauth state")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionRevoked     = errors.New("session signed out")
	ErrProviderDisabled   = errors.New("sign-in provider not configured")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUnsupportedAvatar  = errors.New("avatar must be a PNG or JPEG image")
	ErrAvatarTooLarge     = errors.New("avatar exceeds the size limit")
	ErrStorageDisabled    = errors.New("object storage not configured")
)
