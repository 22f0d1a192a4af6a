// Package engagement keeps the like and comment state of the posts a viewer
// has on screen. Mutations are applied locally first, then written to the
// store; a failed write puts back the fields that mutation changed and
// leaves everything else that happened meanwhile in place.
package engagement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vestigia/internal/core/notify"
	interactionPort "vestigia/internal/ports/interaction"
)

// maxRefreshBatch matches the id cap of the counts endpoint.
const maxRefreshBatch = 100

var (
	ErrEmptyComment   = &notify.Error{Kind: notify.KindValidation, Op: "comment", Message: "Comment cannot be empty."}
	ErrUnknownComment = &notify.Error{Kind: notify.KindNotFound, Op: "comment", Message: "comment not found"}
)

// Store is the write and read side of interactions, scoped to the signed-in
// user.
type Store interface {
	ToggleLike(ctx context.Context, postID string) (*interactionPort.LikeResultDTO, error)
	AddComment(ctx context.Context, postID, content string) (*interactionPort.CommentDTO, error)
	DeleteComment(ctx context.Context, commentID string) error
	ToggleCommentLike(ctx context.Context, commentID string) (*interactionPort.LikeResultDTO, error)
	Counts(ctx context.Context, postIDs []string) ([]*interactionPort.CountsDTO, error)
	Comments(ctx context.Context, postID string) ([]*interactionPort.CommentDTO, error)
}

// Comment is the cached state of one comment.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	LikeCount int64
	Liked     bool
	Pending   bool
}

// PostState is the cached interaction state of one post.
type PostState struct {
	PostID         string
	LikeCount      int64
	Liked          bool
	CommentCount   int64
	Comments       []*Comment
	CommentsLoaded bool
}

func (s *PostState) clone() *PostState {
	c := *s
	c.Comments = make([]*Comment, len(s.Comments))
	for i, cm := range s.Comments {
		cp := *cm
		c.Comments[i] = &cp
	}
	return &c
}

func (s *PostState) comment(id string) (int, *Comment) {
	for i, c := range s.Comments {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (s *PostState) sortComments() {
	sort.SliceStable(s.Comments, func(i, j int) bool {
		return s.Comments[i].CreatedAt.Before(s.Comments[j].CreatedAt)
	})
}

// Synchronizer caches the interaction state per post.
type Synchronizer struct {
	store    Store
	reporter notify.Reporter
	logger   *zap.Logger
	userID   string
	now      func() time.Time

	mu     sync.Mutex
	posts  map[string]*PostState
	owners map[string]string
	seq    int
}

func NewSynchronizer(store Store, userID string, reporter notify.Reporter, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = notify.NewNotifier(logger, 0)
	}
	return &Synchronizer{
		store:    store,
		reporter: reporter,
		logger:   logger,
		userID:   userID,
		now:      time.Now,
		posts:    make(map[string]*PostState),
		owners:   make(map[string]string),
	}
}

// State returns a copy of the cached state of postID.
func (s *Synchronizer) State(postID string) PostState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.stateLocked(postID).clone()
}

// Track seeds the cache from counts fetched with a page of posts.
func (s *Synchronizer) Track(counts ...*interactionPort.CountsDTO) {
	for _, c := range counts {
		s.Reconcile(c)
	}
}

// Counts returns the cached counts of every tracked post.
func (s *Synchronizer) Counts() map[string]*interactionPort.CountsDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*interactionPort.CountsDTO, len(s.posts))
	for id, st := range s.posts {
		out[id] = &interactionPort.CountsDTO{
			PostID:       id,
			LikeCount:    st.LikeCount,
			CommentCount: st.CommentCount,
			Liked:        st.Liked,
		}
	}
	return out
}

// ToggleLike flips the like of the current user on postID.
func (s *Synchronizer) ToggleLike(ctx context.Context, postID string) error {
	s.mu.Lock()
	st := s.stateLocked(postID)
	wasLiked, wasCount := st.Liked, st.LikeCount
	st.Liked = !st.Liked
	if st.Liked {
		st.LikeCount++
	} else if st.LikeCount > 0 {
		st.LikeCount--
	}
	s.mu.Unlock()

	res, err := s.store.ToggleLike(ctx, postID)
	if err != nil {
		s.mu.Lock()
		st = s.stateLocked(postID)
		st.Liked, st.LikeCount = wasLiked, wasCount
		s.mu.Unlock()
		s.rolledBack("like", postID)
		return s.fail("like", err)
	}

	s.mu.Lock()
	st = s.stateLocked(postID)
	st.Liked = res.Liked
	st.LikeCount = res.LikeCount
	s.mu.Unlock()
	return nil
}

// AddComment appends a pending comment, then replaces it with the stored one.
// Blank content is rejected before any request is made.
func (s *Synchronizer) AddComment(ctx context.Context, postID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, s.fail("comment", ErrEmptyComment)
	}

	s.mu.Lock()
	st := s.stateLocked(postID)
	s.seq++
	tempID := fmt.Sprintf("pending-%d", s.seq)
	st.Comments = append(st.Comments, &Comment{
		ID:        tempID,
		PostID:    postID,
		UserID:    s.userID,
		Content:   content,
		CreatedAt: s.now(),
		Pending:   true,
	})
	st.CommentCount++
	s.mu.Unlock()

	dto, err := s.store.AddComment(ctx, postID, content)
	if err != nil {
		s.mu.Lock()
		st = s.stateLocked(postID)
		// a reconcile during the write already dropped the pending row and its count
		if i, _ := st.comment(tempID); i >= 0 {
			st.Comments = append(st.Comments[:i], st.Comments[i+1:]...)
			if st.CommentCount > 0 {
				st.CommentCount--
			}
		}
		s.mu.Unlock()
		s.rolledBack("comment", postID)
		return nil, s.fail("comment", err)
	}

	stored := commentFromDTO(dto)
	s.mu.Lock()
	defer s.mu.Unlock()
	st = s.stateLocked(postID)
	// A reconcile may have run while the write was in flight: it drops the
	// pending row and may already carry the stored one.
	i, _ := st.comment(tempID)
	_, existing := st.comment(stored.ID)
	switch {
	case i >= 0 && existing == nil:
		st.Comments[i] = stored
	case i >= 0:
		st.Comments = append(st.Comments[:i], st.Comments[i+1:]...)
		st.CommentCount--
	case existing == nil:
		st.Comments = append(st.Comments, stored)
		st.CommentCount++
	}
	st.sortComments()
	s.owners[stored.ID] = postID
	cp := *stored
	return &cp, nil
}

// DeleteComment removes one of the current user's comments.
func (s *Synchronizer) DeleteComment(ctx context.Context, commentID string) error {
	s.mu.Lock()
	postID, ok := s.owners[commentID]
	if !ok {
		s.mu.Unlock()
		return s.fail("delete comment", ErrUnknownComment)
	}
	st := s.stateLocked(postID)
	var removed *Comment
	if i, c := st.comment(commentID); i >= 0 {
		removed = c
		st.Comments = append(st.Comments[:i], st.Comments[i+1:]...)
		if st.CommentCount > 0 {
			st.CommentCount--
		}
	}
	s.mu.Unlock()

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		s.mu.Lock()
		st = s.stateLocked(postID)
		if _, c := st.comment(commentID); removed != nil && c == nil {
			st.Comments = append(st.Comments, removed)
			st.CommentCount++
			st.sortComments()
		}
		s.owners[commentID] = postID
		s.mu.Unlock()
		s.rolledBack("delete comment", postID)
		return s.fail("delete comment", err)
	}

	s.mu.Lock()
	delete(s.owners, commentID)
	s.mu.Unlock()
	return nil
}

// ToggleCommentLike flips the like of the current user on a comment.
func (s *Synchronizer) ToggleCommentLike(ctx context.Context, commentID string) error {
	s.mu.Lock()
	postID, ok := s.owners[commentID]
	if !ok {
		s.mu.Unlock()
		return s.fail("like comment", ErrUnknownComment)
	}
	st := s.stateLocked(postID)
	var wasLiked bool
	var wasCount int64
	if _, c := st.comment(commentID); c != nil {
		wasLiked, wasCount = c.Liked, c.LikeCount
		c.Liked = !c.Liked
		if c.Liked {
			c.LikeCount++
		} else if c.LikeCount > 0 {
			c.LikeCount--
		}
	}
	s.mu.Unlock()

	res, err := s.store.ToggleCommentLike(ctx, commentID)
	if err != nil {
		s.mu.Lock()
		if _, c := s.stateLocked(postID).comment(commentID); c != nil {
			c.Liked, c.LikeCount = wasLiked, wasCount
		}
		s.mu.Unlock()
		s.rolledBack("like comment", postID)
		return s.fail("like comment", err)
	}

	s.mu.Lock()
	if _, c := s.stateLocked(postID).comment(commentID); c != nil {
		c.Liked = res.Liked
		c.LikeCount = res.LikeCount
	}
	s.mu.Unlock()
	return nil
}

// Reconcile overwrites the cached counts of a post with a server snapshot.
func (s *Synchronizer) Reconcile(c *interactionPort.CountsDTO) {
	if c == nil || c.PostID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(c.PostID)
	st.LikeCount = c.LikeCount
	st.Liked = c.Liked
	st.CommentCount = c.CommentCount
}

// ReconcileComments replaces the cached comments of a post.
func (s *Synchronizer) ReconcileComments(postID string, comments []*interactionPort.CommentDTO) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(postID)
	for _, c := range st.Comments {
		delete(s.owners, c.ID)
	}
	st.Comments = make([]*Comment, 0, len(comments))
	for _, dto := range comments {
		c := commentFromDTO(dto)
		st.Comments = append(st.Comments, c)
		s.owners[c.ID] = postID
	}
	st.sortComments()
	st.CommentCount = int64(len(st.Comments))
	st.CommentsLoaded = true
}

// Refresh re-reads the counts of postIDs and reconciles them, at most
// maxRefreshBatch ids per request. Batches fetched before a failure are kept.
func (s *Synchronizer) Refresh(ctx context.Context, postIDs []string) error {
	for start := 0; start < len(postIDs); start += maxRefreshBatch {
		end := min(start+maxRefreshBatch, len(postIDs))
		counts, err := s.store.Counts(ctx, postIDs[start:end])
		if err != nil {
			return s.fail("refresh counts", err)
		}
		s.Track(counts...)
	}
	return nil
}

// RefreshComments re-reads the comments of postID and reconciles them.
func (s *Synchronizer) RefreshComments(ctx context.Context, postID string) error {
	comments, err := s.store.Comments(ctx, postID)
	if err != nil {
		return s.fail("load comments", err)
	}
	s.ReconcileComments(postID, comments)
	return nil
}

// CommentsLoaded reports whether the comments of postID were fetched.
func (s *Synchronizer) CommentsLoaded(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.posts[postID]
	return ok && st.CommentsLoaded
}

// Forget drops everything cached for postIDs.
func (s *Synchronizer) Forget(postIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range postIDs {
		if st, ok := s.posts[id]; ok {
			for _, c := range st.Comments {
				delete(s.owners, c.ID)
			}
			delete(s.posts, id)
		}
	}
}

func (s *Synchronizer) stateLocked(postID string) *PostState {
	st, ok := s.posts[postID]
	if !ok {
		st = &PostState{PostID: postID}
		s.posts[postID] = st
	}
	return st
}

func (s *Synchronizer) rolledBack(op, postID string) {
	s.logger.Debug("Rolled back optimistic update", zap.String("op", op), zap.String("post_id", postID))
}

func (s *Synchronizer) fail(op string, err error) error {
	s.reporter.Report(op, err)
	return err
}

func commentFromDTO(dto *interactionPort.CommentDTO) *Comment {
	return &Comment{
		ID:        dto.ID,
		PostID:    dto.PostID,
		UserID:    dto.UserID,
		Content:   dto.Content,
		CreatedAt: dto.CreatedAt,
		LikeCount: dto.LikeCount,
		Liked:     dto.Liked,
	}
}
