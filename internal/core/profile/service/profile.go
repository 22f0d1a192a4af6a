package profileapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/clock"
	"vestigia/internal/core/locale"
	profileEntity "vestigia/internal/core/profile"
	cachePort "vestigia/internal/ports/cache"
	profilePort "vestigia/internal/ports/profile"
	realtimePort "vestigia/internal/ports/realtime"
	storagePort "vestigia/internal/ports/storage"
)

// MaxAvatarSize is the largest accepted avatar upload.
const MaxAvatarSize = 2 << 20

// ProfileService reads and updates the signed-in user's profile and derives
// their virtual clock from it.
type ProfileService struct {
	ProfileRepository profilePort.ProfileRepository
	Storage           storagePort.ObjectStore
	Snapshots         cachePort.SnapshotStore
	Publisher         realtimePort.Publisher
	DefaultStart      time.Time
	logger            *zap.Logger
	now               func() time.Time
}

func NewProfileService(
	repo profilePort.ProfileRepository,
	storage storagePort.ObjectStore,
	snapshots cachePort.SnapshotStore,
	publisher realtimePort.Publisher,
	defaultStart time.Time,
	logger *zap.Logger,
) *ProfileService {
	if defaultStart.IsZero() {
		defaultStart = clock.DefaultStart
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		ProfileRepository: repo,
		Storage:           storage,
		Snapshots:         snapshots,
		Publisher:         publisher,
		DefaultStart:      clock.Truncate(defaultStart),
		logger:            logger,
		now:               time.Now,
	}
}

func (s *ProfileService) load(ctx context.Context, userID string) (*profileEntity.Profile, error) {
	p, err := s.ProfileRepository.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, profilePort.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*profilePort.ProfileDTO, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfileDTO(p), nil
}

// UpdateSettings applies the non-nil fields of req.
func (s *ProfileService) UpdateSettings(ctx context.Context, userID string, req profilePort.UpdateProfileRequest) (*profilePort.ProfileDTO, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || len(name) > 255 {
			return nil, fmt.Errorf("%w: display name must be 1-255 characters", ErrInvalidInput)
		}
		p.DisplayName = name
	}
	if req.Language != nil {
		lang, err := locale.Normalize(*req.Language)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		p.Language = lang
	}
	if req.StartDate != nil {
		d, err := clock.ParseDate(*req.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		p.StartDate = &d
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return toProfileDTO(p), nil
}

// ResetStartDate puts the profile back on the default start date.
func (s *ProfileService) ResetStartDate(ctx context.Context, userID string) (*profilePort.ClockDTO, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	start := s.DefaultStart
	p.StartDate = &start
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return s.clockOf(p), nil
}

// UploadAvatar stores a PNG or JPEG image and points the profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, r io.Reader) (*profilePort.ProfileDTO, error) {
	if s.Storage == nil {
		return nil, ErrStorageDisabled
	}
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if len(data) > MaxAvatarSize {
		return nil, ErrAvatarTooLarge
	}
	var ext string
	switch http.DetectContentType(data) {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	default:
		return nil, ErrUnsupportedAvatar
	}

	key := fmt.Sprintf("avatars/%s/%d%s", p.ID, s.now().Unix(), ext)
	url, err := s.Storage.Upload(ctx, key, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	p.AvatarURL = url
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return toProfileDTO(p), nil
}

// Clock returns the user's virtual clock.
func (s *ProfileService) Clock(ctx context.Context, userID string) (*profilePort.ClockDTO, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.clockOf(p), nil
}

// Viewer resolves the virtual date and language of userID. A failed
// profile load falls back to the default start date.
func (s *ProfileService) Viewer(ctx context.Context, userID string) profilePort.Viewer {
	v := profilePort.Viewer{
		UserID:   userID,
		Date:     clock.Current(s.DefaultStart, s.now()),
		Language: locale.Fallback,
	}
	p, err := s.ProfileRepository.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Profile load failed, using default start date", zap.String("user_id", userID), zap.Error(err))
		return v
	}
	v.Date = clock.Current(clock.StartOrDefault(p.StartDate, s.DefaultStart), s.now())
	if p.Language != "" {
		v.Language = p.Language
	}
	return v
}

// SaveSnapshot stores an opaque timeline snapshot for view, tagged with the
// user's current virtual date.
func (s *ProfileService) SaveSnapshot(ctx context.Context, userID, view string, payload []byte) error {
	if s.Snapshots == nil {
		return nil
	}
	date := clock.FormatDate(s.Viewer(ctx, userID).Date)
	return s.Snapshots.Save(ctx, userID, view, date, payload)
}

// LoadSnapshot returns the snapshot for view if it was captured at the
// user's current virtual date; stale snapshots are dropped.
func (s *ProfileService) LoadSnapshot(ctx context.Context, userID, view string) ([]byte, error) {
	if s.Snapshots == nil {
		return nil, cachePort.ErrMiss
	}
	today := clock.FormatDate(s.Viewer(ctx, userID).Date)
	date, payload, err := s.Snapshots.Load(ctx, userID, view)
	if err != nil {
		return nil, err
	}
	if date != today {
		if _, err := s.Snapshots.Invalidate(ctx, userID, today); err != nil {
			s.logger.Warn("Snapshot invalidation failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, cachePort.ErrMiss
	}
	return payload, nil
}

func (s *ProfileService) save(ctx context.Context, p *profileEntity.Profile) error {
	if err := s.ProfileRepository.Update(ctx, p); err != nil {
		if errors.Is(err, profilePort.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("update profile: %w", err)
	}
	s.publish(ctx, p)
	return nil
}

func (s *ProfileService) publish(ctx context.Context, p *profileEntity.Profile) {
	if s.Publisher == nil {
		return
	}
	ev := changefeed.Event{
		Table:  changefeed.TableProfiles,
		Type:   changefeed.Update,
		Record: ProfileRecord(p, s.DefaultStart),
		At:     s.now().UTC(),
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Could not publish profile change", zap.String("user_id", p.ID.String()), zap.Error(err))
	}
}

// ProfileRecord is the change-feed row of a profile.
func ProfileRecord(p *profileEntity.Profile, defaultStart time.Time) map[string]any {
	return map[string]any{
		"id":           p.ID.String(),
		"display_name": p.DisplayName,
		"avatar_url":   p.AvatarURL,
		"language":     p.Language,
		"start_date":   clock.FormatDate(clock.StartOrDefault(p.StartDate, defaultStart)),
	}
}

func (s *ProfileService) clockOf(p *profileEntity.Profile) *profilePort.ClockDTO {
	start := clock.StartOrDefault(p.StartDate, s.DefaultStart)
	now := s.now()
	current := clock.Current(start, now)
	return &profilePort.ClockDTO{
		StartDate:     clock.FormatDate(start),
		CurrentDate:   clock.FormatDate(current),
		NextAdvanceAt: clock.NextAdvance(start, now).Format(time.RFC3339),
		DisplayDate:   locale.FormatDate(current, p.Language),
	}
}

func toProfileDTO(p *profileEntity.Profile) *profilePort.ProfileDTO {
	dto := &profilePort.ProfileDTO{
		ID:          p.ID.String(),
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Language:    p.Language,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.StartDate != nil {
		dto.StartDate = clock.FormatDate(*p.StartDate)
	}
	return dto
}
