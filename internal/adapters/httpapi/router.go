package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vestigia/internal/adapters/httpapi/middleware"
	profileapp "vestigia/internal/core/profile/service"
	figurePort "vestigia/internal/ports/figure"
	interactionPort "vestigia/internal/ports/interaction"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
	realtimePort "vestigia/internal/ports/realtime"
)

// Inbound ports the controllers drive.

type AuthUseCase interface {
	Register(ctx context.Context, email, password, displayName string) (*profilePort.SessionDTO, error)
	Login(ctx context.Context, email, password string) (*profilePort.SessionDTO, error)
	AuthorizeURL(ctx context.Context) (url, state string, err error)
	ExchangeCode(ctx context.Context, code, state string) (*profilePort.SessionDTO, error)
	SignInWithIDToken(ctx context.Context, raw string) (*profilePort.SessionDTO, error)
	Session(ctx context.Context, token string) (*profileapp.Principal, error)
	SignOut(ctx context.Context, token string) error
}

type ProfileUseCase interface {
	GetProfile(ctx context.Context, userID string) (*profilePort.ProfileDTO, error)
	UpdateSettings(ctx context.Context, userID string, req profilePort.UpdateProfileRequest) (*profilePort.ProfileDTO, error)
	ResetStartDate(ctx context.Context, userID string) (*profilePort.ClockDTO, error)
	UploadAvatar(ctx context.Context, userID string, r io.Reader) (*profilePort.ProfileDTO, error)
	Clock(ctx context.Context, userID string) (*profilePort.ClockDTO, error)
	Viewer(ctx context.Context, userID string) profilePort.Viewer
	SaveSnapshot(ctx context.Context, userID, view string, payload []byte) error
	LoadSnapshot(ctx context.Context, userID, view string) ([]byte, error)
}

type FigureUseCase interface {
	List(ctx context.Context, lang string, offset, limit int) ([]*figurePort.FigureDTO, error)
	Get(ctx context.Context, lang, id string) (*figurePort.FigureDTO, error)
	Search(ctx context.Context, lang, term string, limit int) ([]*figurePort.FigureDTO, error)
}

type TimelineUseCase interface {
	Timeline(ctx context.Context, v profilePort.Viewer, q postPort.Query) (*postPort.PageDTO, error)
	FigureTimeline(ctx context.Context, v profilePort.Viewer, figureID string, q postPort.Query) (*postPort.PageDTO, error)
	GetPost(ctx context.Context, v profilePort.Viewer, id string) (*postPort.PostDTO, error)
	Search(ctx context.Context, v profilePort.Viewer, term string, q postPort.Query) (*postPort.PageDTO, error)
}

type InteractionUseCase interface {
	ToggleLike(ctx context.Context, v profilePort.Viewer, postID string) (*interactionPort.LikeResultDTO, error)
	AddComment(ctx context.Context, v profilePort.Viewer, postID, content string) (*interactionPort.CommentDTO, error)
	DeleteComment(ctx context.Context, v profilePort.Viewer, commentID string) error
	ToggleCommentLike(ctx context.Context, v profilePort.Viewer, commentID string) (*interactionPort.LikeResultDTO, error)
	Counts(ctx context.Context, v profilePort.Viewer, postIDs []string) ([]*interactionPort.CountsDTO, error)
	Comments(ctx context.Context, v profilePort.Viewer, postID string) ([]*interactionPort.CommentDTO, error)
}

// Services groups the use cases injected into the router.
type Services struct {
	Auth         AuthUseCase
	Profiles     ProfileUseCase
	Figures      FigureUseCase
	Timeline     TimelineUseCase
	Interactions InteractionUseCase
	Changes      realtimePort.Subscriber
}

// Options configures the engine around the routes.
type Options struct {
	Logger   *zap.Logger
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
}

// sessionValidator adapts AuthUseCase to the middleware.
type sessionValidator struct{ auth AuthUseCase }

func (v sessionValidator) Validate(ctx context.Context, token string) (string, string, time.Time, error) {
	p, err := v.auth.Session(ctx, token)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return p.UserID, p.SessionID, p.ExpiresAt, nil
}

// Routing only: the use cases are injected from outside.
func SetupRoutes(svc Services, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.ZapLogger(opts.Logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Handler())
	}

	sessions := sessionValidator{auth: svc.Auth}
	auth := middleware.JWTAuthMiddleware(sessions)
	ac := NewAuthController(svc.Auth)
	pc := NewProfileController(svc.Profiles)
	fc := NewFigureController(svc.Figures, svc.Profiles)
	tc := NewTimelineController(svc.Timeline, svc.Profiles)
	ic := NewInteractionController(svc.Interactions, svc.Profiles)
	rc := NewRealtimeController(svc.Changes, opts.Logger)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// Sign-in routes without the JWT middleware
	r.GET(middleware.AuthPath, middleware.RedirectAuthenticated(sessions), ac.Providers)
	r.POST("/auth/register", ac.Register)
	r.POST("/auth/login", ac.Login)
	r.GET("/auth/oauth/url", ac.OAuthURL)
	r.POST("/auth/oauth/callback", ac.OAuthCallback)
	r.POST("/auth/id-token", ac.IDToken)

	protected := r.Group("/", auth)
	protected.GET("/auth/session", ac.Session)
	protected.POST("/auth/logout", ac.Logout)

	protected.GET("/me", pc.GetProfile)
	protected.PATCH("/me", pc.UpdateSettings)
	protected.POST("/me/start-date/reset", pc.ResetStartDate)
	protected.POST("/me/avatar", pc.UploadAvatar)
	protected.GET("/me/snapshot", pc.LoadSnapshot)
	protected.PUT("/me/snapshot", pc.SaveSnapshot)
	protected.GET("/clock", pc.Clock)

	protected.GET(middleware.TimelinePath, tc.Timeline)
	protected.GET("/figures", fc.List)
	protected.GET("/figures/:id", fc.Get)
	protected.GET("/figures/:id/posts", tc.FigureTimeline)
	protected.GET("/posts/search", tc.Search)
	protected.GET("/posts/:id", tc.GetPost)

	protected.POST("/posts/:id/like", ic.ToggleLike)
	protected.GET("/posts/:id/comments", ic.Comments)
	protected.POST("/posts/:id/comments", ic.AddComment)
	protected.DELETE("/comments/:id", ic.DeleteComment)
	protected.POST("/comments/:id/like", ic.ToggleCommentLike)
	protected.GET("/interactions/counts", ic.Counts)

	protected.GET("/realtime/:table", rc.Stream)
	return r
}
