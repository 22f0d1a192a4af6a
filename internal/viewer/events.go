package viewer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/clock"
	"vestigia/internal/core/notify"
)

// eventTimeout bounds the re-fetch a single change event triggers.
const eventTimeout = 10 * time.Second

func (v *TimelineView) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(v.ctx, eventTimeout)
}

// onPostChange re-reads the changed post. The server hides posts beyond
// the user's date, so a not-found answer drops any loaded copy.
func (v *TimelineView) onPostChange(ev changefeed.Event) {
	if !v.alive() {
		return
	}
	id, ok := ev.Value("id")
	if !ok {
		return
	}
	if ev.Type == changefeed.Delete {
		if v.loader.Remove(id) {
			v.sync.Forget(id)
		}
		return
	}

	ctx, cancel := v.eventContext()
	defer cancel()
	p, err := v.api.GetPost(ctx, id)
	if err != nil {
		if notify.IsNotFound(err) {
			if v.alive() && v.loader.Remove(id) {
				v.sync.Forget(id)
			}
		} else if ctx.Err() == nil {
			v.logger.Debug("Could not fetch changed post", zap.String("post_id", id), zap.Error(err))
		}
		return
	}
	if !v.alive() {
		return
	}
	if !v.loader.Insert(p) {
		v.sync.Forget(id)
		return
	}
	_ = v.sync.Refresh(ctx, []string{id})
}

// onInteractionChange reconciles the counts of a loaded post, and its
// comments when they are open.
func (v *TimelineView) onInteractionChange(ev changefeed.Event) {
	if !v.alive() {
		return
	}
	postID, ok := ev.Value("post_id")
	if !ok {
		return
	}
	if _, loaded := v.loader.Get(postID); !loaded {
		return
	}

	ctx, cancel := v.eventContext()
	defer cancel()
	counts, err := v.api.Counts(ctx, []string{postID})
	if err != nil || !v.alive() {
		return
	}
	v.sync.Track(counts...)
	if v.sync.CommentsLoaded(postID) {
		comments, err := v.api.Comments(ctx, postID)
		if err == nil && v.alive() {
			v.sync.ReconcileComments(postID, comments)
		}
	}
}

// onProfileChange picks up a new start date, e.g. after a reset in another
// session or a clock advance noticed by the server.
func (v *TimelineView) onProfileChange(changefeed.Event) {
	if !v.alive() {
		return
	}
	ctx, cancel := v.eventContext()
	defer cancel()
	clk, err := v.api.Clock(ctx)
	if err != nil || !v.alive() {
		return
	}
	start, err := clock.ParseDate(clk.StartDate)
	if err != nil {
		return
	}
	v.clock.SetStart(start)
}

// onAdvance runs when the virtual date moves. Everything loaded belongs to
// the old date: the snapshot is dropped and the first page reloaded.
func (v *TimelineView) onAdvance(date time.Time) {
	if !v.alive() {
		return
	}
	v.logger.Info("Virtual date changed", zap.String("date", clock.FormatDate(date)))
	v.opts.Cache.Invalidate(v.name)
	v.sync.Forget(v.loader.IDs()...)
	v.loader.Reset(date)

	ctx, cancel := v.eventContext()
	defer cancel()
	_, _ = v.loadPage(ctx)
}

// poll is the fallback for a quiet or broken push channel.
func (v *TimelineView) poll(ctx context.Context) error {
	if !v.alive() {
		return nil
	}
	if _, advanced := v.clock.Refresh(); advanced {
		return nil
	}
	if err := v.loader.Refresh(ctx); err != nil {
		return err
	}
	if !v.alive() {
		return nil
	}
	ids := v.loader.IDs()
	if err := v.sync.Refresh(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if !v.alive() {
			return nil
		}
		if v.sync.CommentsLoaded(id) {
			if err := v.sync.RefreshComments(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}
