package interactionapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/clock"
	interactionEntity "vestigia/internal/core/interaction"
	interactionPort "vestigia/internal/ports/interaction"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
	realtimePort "vestigia/internal/ports/realtime"
)

// MaxCommentLength is the longest comment accepted, in runes.
const MaxCommentLength = 2000

var (
	ErrEmptyComment    = errors.New("comment cannot be empty")
	ErrCommentTooLong  = errors.New("comment is too long")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrForbidden       = errors.New("not the author of this comment")
	ErrInvalidUser     = errors.New("invalid user id")
)

// InteractionService writes likes and comments for the signed-in user and
// reads the counts back from live rows.
type InteractionService struct {
	InteractionRepository interactionPort.InteractionRepository
	PostRepository        postPort.PostRepository
	Publisher             realtimePort.Publisher
	logger                *zap.Logger
}

func NewInteractionService(
	repo interactionPort.InteractionRepository,
	postRepo postPort.PostRepository,
	publisher realtimePort.Publisher,
	logger *zap.Logger,
) *InteractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionService{
		InteractionRepository: repo,
		PostRepository:        postRepo,
		Publisher:             publisher,
		logger:                logger,
	}
}

// ToggleLike removes the viewer's like on postID if there is one, otherwise
// adds it. A concurrent insert that loses the race on the uniqueness index
// leaves the post liked.
func (s *InteractionService) ToggleLike(ctx context.Context, v profilePort.Viewer, postID string) (*interactionPort.LikeResultDTO, error) {
	uid, err := parseUser(v.UserID)
	if err != nil {
		return nil, err
	}
	pid, err := s.visiblePost(ctx, v, postID)
	if err != nil {
		return nil, err
	}

	liked, err := s.toggle(ctx, &interactionEntity.Interaction{
		UserID: uid,
		PostID: pid,
		Kind:   interactionEntity.KindLike,
	})
	if err != nil {
		return nil, err
	}

	n, err := s.InteractionRepository.Count(ctx, postID, interactionEntity.KindLike, "")
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	return &interactionPort.LikeResultDTO{
		TargetID:  postID,
		PostID:    postID,
		Liked:     liked,
		LikeCount: n,
	}, nil
}

// AddComment stores a comment by the viewer on postID.
func (s *InteractionService) AddComment(ctx context.Context, v profilePort.Viewer, postID, content string) (*interactionPort.CommentDTO, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	uid, err := parseUser(v.UserID)
	if err != nil {
		return nil, err
	}
	pid, err := s.visiblePost(ctx, v, postID)
	if err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV4())
	c, err := s.InteractionRepository.Create(ctx, &interactionEntity.Interaction{
		ID:        id,
		UserID:    uid,
		PostID:    pid,
		Kind:      interactionEntity.KindComment,
		TargetKey: interactionEntity.TargetKeyFor(interactionEntity.KindComment, id, nil),
		Content:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.publish(ctx, changefeed.Insert, c)
	return toCommentDTO(c, 0, false), nil
}

// DeleteComment removes one of the viewer's own comments and the likes on it.
func (s *InteractionService) DeleteComment(ctx context.Context, v profilePort.Viewer, commentID string) error {
	c, err := s.comment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID.String() != v.UserID {
		return ErrForbidden
	}
	if err := s.InteractionRepository.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, interactionPort.ErrNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	s.publish(ctx, changefeed.Delete, c)
	return nil
}

// ToggleCommentLike flips the viewer's like on a comment.
func (s *InteractionService) ToggleCommentLike(ctx context.Context, v profilePort.Viewer, commentID string) (*interactionPort.LikeResultDTO, error) {
	uid, err := parseUser(v.UserID)
	if err != nil {
		return nil, err
	}
	c, err := s.comment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	liked, err := s.toggle(ctx, &interactionEntity.Interaction{
		UserID:    uid,
		PostID:    c.PostID,
		Kind:      interactionEntity.KindCommentLike,
		CommentID: &c.ID,
	})
	if err != nil {
		return nil, err
	}

	n, err := s.InteractionRepository.Count(ctx, c.PostID.String(), interactionEntity.KindCommentLike, commentID)
	if err != nil {
		return nil, fmt.Errorf("count comment likes: %w", err)
	}
	return &interactionPort.LikeResultDTO{
		TargetID:  commentID,
		PostID:    c.PostID.String(),
		Liked:     liked,
		LikeCount: n,
	}, nil
}

// Counts returns like and comment counts for postIDs, in the given order.
func (s *InteractionService) Counts(ctx context.Context, v profilePort.Viewer, postIDs []string) ([]*interactionPort.CountsDTO, error) {
	likes, err := s.InteractionRepository.CountByPosts(ctx, postIDs, interactionEntity.KindLike)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	comments, err := s.InteractionRepository.CountByPosts(ctx, postIDs, interactionEntity.KindComment)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	liked, err := s.InteractionRepository.LikedPosts(ctx, v.UserID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("load liked posts: %w", err)
	}

	out := make([]*interactionPort.CountsDTO, 0, len(postIDs))
	for _, id := range postIDs {
		out = append(out, &interactionPort.CountsDTO{
			PostID:       id,
			LikeCount:    likes[id],
			CommentCount: comments[id],
			Liked:        liked[id],
		})
	}
	return out, nil
}

// Comments returns the comments on postID, oldest first.
func (s *InteractionService) Comments(ctx context.Context, v profilePort.Viewer, postID string) ([]*interactionPort.CommentDTO, error) {
	if _, err := s.visiblePost(ctx, v, postID); err != nil {
		return nil, err
	}
	rows, err := s.InteractionRepository.Comments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	ids := make([]string, len(rows))
	for i, c := range rows {
		ids[i] = c.ID.String()
	}
	likes, err := s.InteractionRepository.CountByComments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count comment likes: %w", err)
	}
	liked, err := s.InteractionRepository.LikedComments(ctx, v.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("load liked comments: %w", err)
	}

	out := make([]*interactionPort.CommentDTO, 0, len(rows))
	for _, c := range rows {
		id := c.ID.String()
		out = append(out, toCommentDTO(c, likes[id], liked[id]))
	}
	return out, nil
}

// toggle deletes the row at want's uniqueness key or inserts want. It
// returns whether the row exists afterwards.
func (s *InteractionService) toggle(ctx context.Context, want *interactionEntity.Interaction) (bool, error) {
	key := interactionEntity.TargetKeyFor(want.Kind, want.ID, want.CommentID)
	existing, err := s.InteractionRepository.FindOne(ctx, want.UserID.String(), want.PostID.String(), want.Kind, key)
	switch {
	case err == nil:
		if err := s.InteractionRepository.Delete(ctx, existing.ID.String()); err != nil && !errors.Is(err, interactionPort.ErrNotFound) {
			return false, fmt.Errorf("delete %s: %w", want.Kind, err)
		}
		s.publish(ctx, changefeed.Delete, existing)
		return false, nil
	case !errors.Is(err, interactionPort.ErrNotFound):
		return false, fmt.Errorf("find %s: %w", want.Kind, err)
	}

	want.ID = uuid.Must(uuid.NewV4())
	want.TargetKey = key
	created, err := s.InteractionRepository.Create(ctx, want)
	if errors.Is(err, interactionPort.ErrDuplicate) {
		s.logger.Debug("Concurrent insert already stored the like",
			zap.String("user_id", want.UserID.String()), zap.String("post_id", want.PostID.String()))
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("create %s: %w", want.Kind, err)
	}
	s.publish(ctx, changefeed.Insert, created)
	return true, nil
}

func (s *InteractionService) visiblePost(ctx context.Context, v profilePort.Viewer, postID string) (uuid.UUID, error) {
	p, err := s.PostRepository.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, postPort.ErrNotFound) {
			return uuid.Nil, ErrPostNotFound
		}
		return uuid.Nil, fmt.Errorf("load post: %w", err)
	}
	if clock.Truncate(p.OriginalDate).After(clock.Truncate(v.Date)) {
		return uuid.Nil, ErrPostNotFound
	}
	return p.ID, nil
}

func (s *InteractionService) comment(ctx context.Context, commentID string) (*interactionEntity.Interaction, error) {
	c, err := s.InteractionRepository.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, interactionPort.ErrNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("load comment: %w", err)
	}
	if c.Kind != interactionEntity.KindComment {
		return nil, ErrCommentNotFound
	}
	return c, nil
}

func (s *InteractionService) publish(ctx context.Context, t changefeed.EventType, i *interactionEntity.Interaction) {
	if s.Publisher == nil {
		return
	}
	row := map[string]any{
		"id":      i.ID.String(),
		"user_id": i.UserID.String(),
		"post_id": i.PostID.String(),
		"kind":    string(i.Kind),
	}
	if i.CommentID != nil {
		row["comment_id"] = i.CommentID.String()
	}
	ev := changefeed.Event{Table: changefeed.TableInteractions, Type: t}
	if t == changefeed.Delete {
		ev.Old = row
	} else {
		ev.Record = row
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Could not publish interaction change", zap.String("id", i.ID.String()), zap.Error(err))
	}
}

func parseUser(id string) (uuid.UUID, error) {
	uid, err := uuid.FromString(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidUser, id)
	}
	return uid, nil
}

func toCommentDTO(c *interactionEntity.Interaction, likes int64, liked bool) *interactionPort.CommentDTO {
	return &interactionPort.CommentDTO{
		ID:        c.ID.String(),
		PostID:    c.PostID.String(),
		UserID:    c.UserID.String(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		LikeCount: likes,
		Liked:     liked,
	}
}
