// Package viewer runs one timeline screen: it owns the virtual clock, the
// feed loader, the interaction cache and the change-feed listener, and
// renders them as text.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/clock"
	"vestigia/internal/core/engagement"
	"vestigia/internal/core/feed"
	"vestigia/internal/core/notify"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
)

// ErrClosed is returned by actions on a closed view.
var ErrClosed = errors.New("view closed")

// API is the backend as seen by a view.
type API interface {
	feed.Fetcher
	engagement.Store
	changefeed.Source
	Clock(ctx context.Context) (*profilePort.ClockDTO, error)
	Profile(ctx context.Context) (*profilePort.ProfileDTO, error)
	GetPost(ctx context.Context, id string) (*postPort.PostDTO, error)
}

// SnapshotStore persists snapshots beyond the process.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, view string, payload []byte) error
	LoadSnapshot(ctx context.Context, view string) ([]byte, error)
}

// Options configures a view.
type Options struct {
	UserID       string
	FigureID     string
	Mode         feed.Mode
	PollInterval time.Duration
	Cache        *feed.SnapshotCache
	Remote       SnapshotStore
	Notifier     *notify.Notifier
	Logger       *zap.Logger
	Now          func() time.Time
}

// TimelineView is one open timeline.
type TimelineView struct {
	api      API
	opts     Options
	name     string
	logger   *zap.Logger
	notifier *notify.Notifier

	clock    *clock.Clock
	loader   *feed.Loader
	sync     *engagement.Synchronizer
	listener *changefeed.Listener

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	language string
	scroll   int
	wg       sync.WaitGroup
}

// ViewName is the snapshot key of the global timeline or a figure timeline.
func ViewName(figureID string) string {
	if figureID == "" {
		return "timeline"
	}
	return "figure:" + figureID
}

// Open resolves the user's clock, restores or loads the first page and
// starts listening for changes. A failed clock load falls back to the
// default start date; a failed first page is reported and leaves the view
// empty but open.
func Open(ctx context.Context, api API, opts Options) (*TimelineView, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewNotifier(opts.Logger, 0)
	}
	if opts.Cache == nil {
		opts.Cache = feed.NewSnapshotCache()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	vctx, cancel := context.WithCancel(context.Background())
	v := &TimelineView{
		api:      api,
		opts:     opts,
		name:     ViewName(opts.FigureID),
		logger:   opts.Logger.With(zap.String("view", ViewName(opts.FigureID))),
		notifier: opts.Notifier,
		ctx:      vctx,
		cancel:   cancel,
	}

	v.language = v.loadLanguage(ctx)
	v.clock = clock.New(v.loadStart(ctx), clock.WithNow(opts.Now), clock.WithOnAdvance(v.onAdvance))
	today := v.clock.Today()

	v.loader = feed.NewLoader(api, today, feed.WithFigure(opts.FigureID), feed.WithMode(opts.Mode))
	v.sync = engagement.NewSynchronizer(api, opts.UserID, v.notifier, v.logger)
	v.listener = changefeed.NewListener(api, v.logger)

	if !v.restore(ctx, today) {
		if _, err := v.loadPage(ctx); err != nil {
			v.logger.Info("First page failed", zap.Error(err))
		}
	}

	if err := v.subscribe(); err != nil {
		v.Close()
		return nil, err
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.clock.Run(v.ctx)
	}()
	return v, nil
}

func (v *TimelineView) loadStart(ctx context.Context) time.Time {
	clk, err := v.api.Clock(ctx)
	if err != nil {
		v.notifier.Report("load clock", err)
		return clock.DefaultStart
	}
	start, err := clock.ParseDate(clk.StartDate)
	if err != nil {
		v.logger.Warn("Server sent an unreadable start date", zap.String("start_date", clk.StartDate))
		return clock.DefaultStart
	}
	return start
}

func (v *TimelineView) loadLanguage(ctx context.Context) string {
	p, err := v.api.Profile(ctx)
	if err != nil || p.Language == "" {
		return "en"
	}
	return p.Language
}

// restore resumes from the in-memory cache, then the remote store. Either
// only counts when captured at today's virtual date.
func (v *TimelineView) restore(ctx context.Context, today time.Time) bool {
	snap, ok := v.opts.Cache.Get(v.name, today)
	if !ok && v.opts.Remote != nil {
		payload, err := v.opts.Remote.LoadSnapshot(ctx, v.name)
		if err == nil {
			var s feed.Snapshot
			if json.Unmarshal(payload, &s) == nil {
				snap, ok = &s, true
			}
		} else if !notify.IsNotFound(err) {
			v.logger.Debug("Remote snapshot unavailable", zap.Error(err))
		}
	}
	if !ok || !v.loader.Restore(snap) {
		return false
	}
	for _, c := range snap.Counts {
		v.sync.Track(c)
	}
	v.mu.Lock()
	v.scroll = snap.ScrollOffset
	v.mu.Unlock()
	v.logger.Debug("Restored snapshot", zap.Int("posts", len(snap.Posts)))
	return true
}

func (v *TimelineView) subscribe() error {
	postFilter := changefeed.Filter{}
	if v.opts.FigureID != "" {
		postFilter = changefeed.Eq("figure_id", v.opts.FigureID)
	}
	if _, err := v.listener.Subscribe(changefeed.TablePosts, postFilter, v.onPostChange); err != nil {
		return err
	}
	if _, err := v.listener.Subscribe(changefeed.TableInteractions, changefeed.Filter{}, v.onInteractionChange); err != nil {
		return err
	}
	if v.opts.UserID != "" {
		if _, err := v.listener.Subscribe(changefeed.TableProfiles, changefeed.Eq("id", v.opts.UserID), v.onProfileChange); err != nil {
			return err
		}
	}
	_, err := v.listener.Poll(v.opts.PollInterval, v.poll)
	return err
}

// alive is the liveness guard: asynchronous results arriving after Close
// are dropped.
func (v *TimelineView) alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

// LoadMore fetches the next page and the counts of its posts.
func (v *TimelineView) LoadMore(ctx context.Context) (int, error) {
	if !v.alive() {
		return 0, ErrClosed
	}
	return v.loadPage(ctx)
}

// loadPage appends the next page and fetches counts for the posts it added.
func (v *TimelineView) loadPage(ctx context.Context) (int, error) {
	seen := make(map[string]struct{}, v.loader.Len())
	for _, id := range v.loader.IDs() {
		seen[id] = struct{}{}
	}
	added, err := v.loader.LoadMore(ctx)
	if err != nil {
		v.notifier.Report("load posts", err)
		return 0, err
	}
	if !v.alive() || added == 0 {
		return added, nil
	}
	var fresh []string
	for _, id := range v.loader.IDs() {
		if _, ok := seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	_ = v.sync.Refresh(ctx, fresh)
	return added, nil
}

func (v *TimelineView) Like(ctx context.Context, postID string) error {
	if !v.alive() {
		return ErrClosed
	}
	return v.sync.ToggleLike(ctx, postID)
}

func (v *TimelineView) Comment(ctx context.Context, postID, content string) (*engagement.Comment, error) {
	if !v.alive() {
		return nil, ErrClosed
	}
	return v.sync.AddComment(ctx, postID, content)
}

func (v *TimelineView) DeleteComment(ctx context.Context, commentID string) error {
	if !v.alive() {
		return ErrClosed
	}
	return v.sync.DeleteComment(ctx, commentID)
}

func (v *TimelineView) LikeComment(ctx context.Context, commentID string) error {
	if !v.alive() {
		return ErrClosed
	}
	return v.sync.ToggleCommentLike(ctx, commentID)
}

// Comments returns the comments of postID, loading them on first use.
func (v *TimelineView) Comments(ctx context.Context, postID string) ([]*engagement.Comment, error) {
	if !v.alive() {
		return nil, ErrClosed
	}
	if !v.sync.CommentsLoaded(postID) {
		if err := v.sync.RefreshComments(ctx, postID); err != nil {
			return nil, err
		}
	}
	return v.sync.State(postID).Comments, nil
}

// CommentAt resolves the n-th comment as numbered by Render, counting from 1.
func (v *TimelineView) CommentAt(n int) (*engagement.Comment, bool) {
	if n < 1 {
		return nil, false
	}
	for _, p := range v.Posts() {
		st := v.State(p.ID)
		if n <= len(st.Comments) {
			return st.Comments[n-1], true
		}
		n -= len(st.Comments)
	}
	return nil, false
}

// SetScroll records the scroll offset kept in the snapshot.
func (v *TimelineView) SetScroll(offset int) {
	v.mu.Lock()
	v.scroll = max(offset, 0)
	v.mu.Unlock()
}

// Posts returns the loaded posts in display order.
func (v *TimelineView) Posts() []*postPort.PostDTO { return v.loader.Posts() }

// State returns the interaction state of postID.
func (v *TimelineView) State(postID string) engagement.PostState { return v.sync.State(postID) }

// Today returns the view's virtual date.
func (v *TimelineView) Today() time.Time { return v.clock.Today() }

// HasMore reports whether another page may exist.
func (v *TimelineView) HasMore() bool { return v.loader.HasMore() }

// Notifications returns the pending error messages.
func (v *TimelineView) Notifications() []notify.Notification { return v.notifier.Pending() }

// Snapshot captures the current state of the view.
func (v *TimelineView) Snapshot() *feed.Snapshot {
	snap := v.loader.Capture(v.name)
	snap.Counts = v.sync.Counts()
	v.mu.Lock()
	snap.ScrollOffset = v.scroll
	v.mu.Unlock()
	return snap
}

// Close saves a snapshot and stops every subscription, poll and timer. It
// is safe to call more than once.
func (v *TimelineView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	if v.loader != nil && v.loader.Len() > 0 {
		snap := v.Snapshot()
		v.opts.Cache.Put(snap)
		v.saveRemote(snap)
	}

	v.cancel()
	if v.listener != nil {
		v.listener.Close()
	}
	v.wg.Wait()
}

func (v *TimelineView) saveRemote(snap *feed.Snapshot) {
	if v.opts.Remote == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		v.logger.Warn("Could not encode snapshot", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.opts.Remote.SaveSnapshot(ctx, v.name, payload); err != nil {
		v.logger.Info("Could not persist snapshot", zap.Error(err))
	}
}
