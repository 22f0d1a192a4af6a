package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/clock"
	cachePort "vestigia/internal/ports/cache"
	profilePort "vestigia/internal/ports/profile"
	realtimePort "vestigia/internal/ports/realtime"
)

// ClockWorker walks every profile in batches and announces the users whose
// virtual date moved since the previous pass. Their persisted snapshots
// are dropped so a reopened timeline starts from the new date.
type ClockWorker struct {
	ProfileRepo  profilePort.ProfileRepository
	Snapshots    cachePort.SnapshotStore
	Publisher    realtimePort.Publisher
	DefaultStart time.Time
	Interval     time.Duration
	BatchSize    int
	Logger       *zap.Logger
	Now          func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewClockWorker(
	profileRepo profilePort.ProfileRepository,
	snapshots cachePort.SnapshotStore,
	publisher realtimePort.Publisher,
	defaultStart time.Time,
	interval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *ClockWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = clock.RefreshInterval
	}
	return &ClockWorker{
		ProfileRepo:  profileRepo,
		Snapshots:    snapshots,
		Publisher:    publisher,
		DefaultStart: defaultStart,
		Interval:     interval,
		BatchSize:    batchSize,
		Logger:       logger,
		Now:          time.Now,
		last:         make(map[string]time.Time),
	}
}

// Run scans immediately, then once per interval until ctx is done.
func (w *ClockWorker) Run(ctx context.Context) {
	w.Logger.Info("🚀 ClockWorker started", zap.Duration("interval", w.Interval))
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.Logger.Error("❌ Error scanning profiles", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.Logger.Info("🛑 ClockWorker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce makes one pass over all profiles and returns how many users
// advanced. A profile seen for the first time only records its date.
func (w *ClockWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.Now()
	advanced := 0
	for offset := 0; ; offset += w.BatchSize {
		batch, err := w.ProfileRepo.List(ctx, offset, w.BatchSize)
		if err != nil {
			return advanced, err
		}
		for _, p := range batch {
			userID := p.ID.String()
			date := clock.Current(clock.StartOrDefault(p.StartDate, w.DefaultStart), now)
			if w.observe(userID, date) {
				w.processAdvance(ctx, userID, date)
				advanced++
			}
		}
		if len(batch) < w.BatchSize {
			break
		}
	}
	if advanced > 0 {
		w.Logger.Info("✅ Virtual dates advanced", zap.Int("count", advanced))
	}
	return advanced, nil
}

func (w *ClockWorker) observe(userID string, date time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, seen := w.last[userID]
	w.last[userID] = date
	return seen && !prev.Equal(date)
}

func (w *ClockWorker) processAdvance(ctx context.Context, userID string, date time.Time) {
	day := clock.FormatDate(date)
	if w.Snapshots != nil {
		if n, err := w.Snapshots.Invalidate(ctx, userID, day); err != nil {
			w.Logger.Warn("⚠️ Could not drop stale snapshots", zap.String("user_id", userID), zap.Error(err))
		} else if n > 0 {
			w.Logger.Debug("Dropped stale snapshots", zap.String("user_id", userID), zap.Int("count", n))
		}
	}

	ev := changefeed.Event{
		Table:  changefeed.TableProfiles,
		Type:   changefeed.Update,
		Record: map[string]any{"id": userID, "current_date": day},
		At:     w.Now().UTC(),
	}
	if err := w.Publisher.Publish(ctx, ev); err != nil {
		w.Logger.Warn("⚠️ Could not announce date change", zap.String("user_id", userID), zap.Error(err))
	}
}
