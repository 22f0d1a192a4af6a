package interactionapp

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestigia/internal/core/changefeed"
	interactionEntity "vestigia/internal/core/interaction"
	postEntity "vestigia/internal/core/post"
	interactionPort "vestigia/internal/ports/interaction"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
)

// memInteractions enforces the (user, post, kind, target_key) uniqueness
// the database index provides.
type memInteractions struct {
	mu   sync.Mutex
	rows []*interactionEntity.Interaction
	tick time.Time

	// beforeCreate runs before the uniqueness check, to simulate a racing insert.
	beforeCreate func()
}

func newMemInteractions() *memInteractions {
	return &memInteractions{tick: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memInteractions) Create(_ context.Context, i *interactionEntity.Interaction) (*interactionEntity.Interaction, error) {
	if m.beforeCreate != nil {
		hook := m.beforeCreate
		m.beforeCreate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == i.UserID && r.PostID == i.PostID && r.Kind == i.Kind && r.TargetKey == i.TargetKey {
			return nil, interactionPort.ErrDuplicate
		}
	}
	m.tick = m.tick.Add(time.Second)
	i.CreatedAt = m.tick
	m.rows = append(m.rows, i)
	return i, nil
}

func (m *memInteractions) FindByID(_ context.Context, id string) (*interactionEntity.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID.String() == id {
			return r, nil
		}
	}
	return nil, interactionPort.ErrNotFound
}

func (m *memInteractions) FindOne(_ context.Context, userID, postID string, kind interactionEntity.Kind, targetKey string) (*interactionEntity.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID.String() == userID && r.PostID.String() == postID && r.Kind == kind && r.TargetKey == targetKey {
			return r, nil
		}
	}
	return nil, interactionPort.ErrNotFound
}

func (m *memInteractions) Delete(_ context.Context, id string) error {
	return m.remove(func(r *interactionEntity.Interaction) bool { return r.ID.String() == id })
}

func (m *memInteractions) DeleteComment(_ context.Context, commentID string) error {
	_ = m.remove(func(r *interactionEntity.Interaction) bool {
		return r.Kind == interactionEntity.KindCommentLike && r.TargetKey == commentID
	})
	return m.remove(func(r *interactionEntity.Interaction) bool {
		return r.Kind == interactionEntity.KindComment && r.ID.String() == commentID
	})
}

func (m *memInteractions) remove(match func(*interactionEntity.Interaction) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	removed := 0
	for _, r := range m.rows {
		if match(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	if removed == 0 {
		return interactionPort.ErrNotFound
	}
	return nil
}

func (m *memInteractions) count(match func(*interactionEntity.Interaction) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if match(r) {
			n++
		}
	}
	return n
}

func (m *memInteractions) Count(_ context.Context, postID string, kind interactionEntity.Kind, targetKey string) (int64, error) {
	return m.count(func(r *interactionEntity.Interaction) bool {
		return r.PostID.String() == postID && r.Kind == kind && (kind == interactionEntity.KindComment || r.TargetKey == targetKey)
	}), nil
}

func (m *memInteractions) CountByPosts(ctx context.Context, postIDs []string, kind interactionEntity.Kind) (map[string]int64, error) {
	out := map[string]int64{}
	for _, id := range postIDs {
		if n, _ := m.Count(ctx, id, kind, ""); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (m *memInteractions) CountByComments(_ context.Context, commentIDs []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, id := range commentIDs {
		out[id] = m.count(func(r *interactionEntity.Interaction) bool {
			return r.Kind == interactionEntity.KindCommentLike && r.TargetKey == id
		})
	}
	return out, nil
}

func (m *memInteractions) LikedPosts(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range postIDs {
		out[id] = m.count(func(r *interactionEntity.Interaction) bool {
			return r.UserID.String() == userID && r.PostID.String() == id && r.Kind == interactionEntity.KindLike
		}) > 0
	}
	return out, nil
}

func (m *memInteractions) LikedComments(_ context.Context, userID string, commentIDs []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range commentIDs {
		out[id] = m.count(func(r *interactionEntity.Interaction) bool {
			return r.UserID.String() == userID && r.Kind == interactionEntity.KindCommentLike && r.TargetKey == id
		}) > 0
	}
	return out, nil
}

func (m *memInteractions) Comments(_ context.Context, postID string) ([]*interactionEntity.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*interactionEntity.Interaction
	for _, r := range m.rows {
		if r.PostID.String() == postID && r.Kind == interactionEntity.KindComment {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memPosts struct {
	posts map[string]*postEntity.Post
}

func (m *memPosts) FindVisible(context.Context, time.Time, postPort.Query) ([]*postEntity.Post, error) {
	return nil, nil
}

func (m *memPosts) FindByID(_ context.Context, id string) (*postEntity.Post, error) {
	if p, ok := m.posts[id]; ok {
		return p, nil
	}
	return nil, postPort.ErrNotFound
}

func (m *memPosts) Search(context.Context, time.Time, string, postPort.Query) ([]*postEntity.Post, error) {
	return nil, nil
}

func (m *memPosts) Upsert(context.Context, *postEntity.Post) error { return nil }

type mockPublisher struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev changefeed.Event) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return nil
}

type fixture struct {
	svc    *InteractionService
	repo   *memInteractions
	pub    *mockPublisher
	post   string
	future string
	alice  profilePort.Viewer
	bob    profilePort.Viewer
}

func newFixture() *fixture {
	today := time.Date(1789, 6, 2, 0, 0, 0, 0, time.UTC)
	visible := &postEntity.Post{ID: uuid.Must(uuid.NewV4()), OriginalDate: today}
	future := &postEntity.Post{ID: uuid.Must(uuid.NewV4()), OriginalDate: today.AddDate(0, 0, 1)}
	posts := &memPosts{posts: map[string]*postEntity.Post{
		visible.ID.String(): visible,
		future.ID.String():  future,
	}}
	repo := newMemInteractions()
	pub := &mockPublisher{}
	return &fixture{
		svc:    NewInteractionService(repo, posts, pub, nil),
		repo:   repo,
		pub:    pub,
		post:   visible.ID.String(),
		future: future.ID.String(),
		alice:  profilePort.Viewer{UserID: uuid.Must(uuid.NewV4()).String(), Date: today},
		bob:    profilePort.Viewer{UserID: uuid.Must(uuid.NewV4()).String(), Date: today},
	}
}

func TestToggleLike_RoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.ToggleLike(ctx, f.alice, f.post)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikeCount)

	res, err = f.svc.ToggleLike(ctx, f.bob, f.post)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LikeCount)

	res, err = f.svc.ToggleLike(ctx, f.alice, f.post)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, int64(1), res.LikeCount)

	require.Len(t, f.pub.events, 3)
	assert.Equal(t, changefeed.Delete, f.pub.events[2].Type)
	v, ok := f.pub.events[2].Value("post_id")
	require.True(t, ok)
	assert.Equal(t, f.post, v)
}

func TestToggleLike_ConcurrentInsertCountsAsLiked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.beforeCreate = func() {
		_, err := f.repo.Create(ctx, &interactionEntity.Interaction{
			ID:     uuid.Must(uuid.NewV4()),
			UserID: uuid.FromStringOrNil(f.alice.UserID),
			PostID: uuid.FromStringOrNil(f.post),
			Kind:   interactionEntity.KindLike,
		})
		require.NoError(t, err)
	}

	res, err := f.svc.ToggleLike(ctx, f.alice, f.post)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikeCount, "one active like per user and post")
}

func TestToggleLike_PostNotVisible(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ToggleLike(context.Background(), f.alice, f.future)
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = f.svc.ToggleLike(context.Background(), f.alice, uuid.Must(uuid.NewV4()).String())
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = f.svc.ToggleLike(context.Background(), profilePort.Viewer{UserID: "nope"}, f.post)
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestAddComment_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "", ErrEmptyComment},
		{"whitespace", " \n\t ", ErrEmptyComment},
		{"too long", strings.Repeat("é", MaxCommentLength+1), ErrCommentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddComment(context.Background(), f.alice, f.post, tt.content)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.repo.rows)
}

func TestComments_OrderedWithLikes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.AddComment(ctx, f.alice, f.post, "  first  ")
	require.NoError(t, err)
	assert.Equal(t, "first", first.Content)
	second, err := f.svc.AddComment(ctx, f.bob, f.post, "second")
	require.NoError(t, err)

	res, err := f.svc.ToggleCommentLike(ctx, f.bob, first.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikeCount)
	assert.Equal(t, f.post, res.PostID)

	got, err := f.svc.Comments(ctx, f.bob, f.post)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Equal(t, int64(1), got[0].LikeCount)
	assert.True(t, got[0].Liked)
	assert.False(t, got[1].Liked)

	counts, err := f.svc.Counts(ctx, f.alice, []string{f.post, f.future})
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, int64(2), counts[0].CommentCount)
	assert.Zero(t, counts[0].LikeCount, "comment likes do not count as post likes")
	assert.Equal(t, f.future, counts[1].PostID)
	assert.Zero(t, counts[1].CommentCount)
}

func TestDeleteComment_OwnOnlyAndCascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, err := f.svc.AddComment(ctx, f.alice, f.post, "mine")
	require.NoError(t, err)
	_, err = f.svc.ToggleCommentLike(ctx, f.bob, c.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteComment(ctx, f.bob, c.ID), ErrForbidden)

	require.NoError(t, f.svc.DeleteComment(ctx, f.alice, c.ID))
	assert.Empty(t, f.repo.rows, "comment likes go with the comment")
	assert.ErrorIs(t, f.svc.DeleteComment(ctx, f.alice, c.ID), ErrCommentNotFound)

	last := f.pub.events[len(f.pub.events)-1]
	assert.Equal(t, changefeed.Delete, last.Type)
	assert.Equal(t, c.ID, last.Old["id"])
}

func TestToggleCommentLike_RejectsNonComments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.ToggleLike(ctx, f.alice, f.post)
	require.NoError(t, err)

	like := f.repo.rows[0]
	_, err = f.svc.ToggleCommentLike(ctx, f.alice, like.ID.String())
	assert.ErrorIs(t, err, ErrCommentNotFound)
}
