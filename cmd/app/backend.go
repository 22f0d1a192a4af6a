package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	dbadapter "vestigia/internal/adapters/database"
	"vestigia/internal/adapters/httpapi/middleware"
	redisadapter "vestigia/internal/adapters/redis"
	"vestigia/internal/adapters/storage"
	"vestigia/internal/config"
	"vestigia/internal/core/clock"
	figureapp "vestigia/internal/core/figure/service"
	interactionapp "vestigia/internal/core/interaction/service"
	postapp "vestigia/internal/core/post/service"
	profileapp "vestigia/internal/core/profile/service"
	timelineapp "vestigia/internal/core/timeline/service"
	storagePort "vestigia/internal/ports/storage"
)

const snapshotTTL = 7 * 24 * time.Hour

// backend is the wired server side: repositories, adapters and services.
type backend struct {
	db           *gorm.DB
	profileRepo  *dbadapter.ProfileRepositoryDatabase
	changes      *redisadapter.ChangeFeedRepositoryRedis
	snapshots    *redisadapter.SnapshotRepositoryRedis
	defaultStart time.Time

	auth         *profileapp.AuthService
	profiles     *profileapp.ProfileService
	figures      *figureapp.FigureService
	posts        *postapp.PostService
	timeline     *timelineapp.TimelineService
	interactions *interactionapp.InteractionService
}

// openDatabase connects config.DB for commands that do not need Redis.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is not set")
	}
	if err := config.InitDB(cfg); err != nil {
		return nil, err
	}
	return config.DB, nil
}

// openBackend connects the database and Redis and builds every service.
func openBackend(cfg *config.Config) (*backend, error) {
	defaultStart, err := clock.ParseDate(cfg.DefaultStartDate)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_START_DATE: %w", err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := config.InitRedis(cfg); err != nil {
		return nil, err
	}
	logger := config.L()

	b := &backend{db: db, defaultStart: defaultStart}
	b.profileRepo = dbadapter.NewProfileRepositoryDatabase(db)
	figureRepo := dbadapter.NewFigureRepositoryDatabase(db)
	postRepo := dbadapter.NewPostRepositoryDatabase(db)
	interactionRepo := dbadapter.NewInteractionRepositoryDatabase(db)

	b.changes = redisadapter.NewChangeFeedRepositoryRedis(config.RedisClient, logger)
	b.snapshots = redisadapter.NewSnapshotRepositoryRedis(config.RedisClient, snapshotTTL)
	sessions := redisadapter.NewSessionRepositoryRedis(config.RedisClient)

	var objects storagePort.ObjectStore
	if cfg.FTPHost != "" {
		objects = storage.NewFTPStore(cfg.FTPHost, cfg.FTPPort, cfg.FTPUser, cfg.FTPPassword, cfg.MediaBaseURL, logger)
	} else {
		logger.Warn("FTP_HOST is not set, avatar uploads are disabled")
	}

	b.auth = profileapp.NewAuthService(b.profileRepo, sessions, authOptions(cfg), logger)
	b.profiles = profileapp.NewProfileService(b.profileRepo, objects, b.snapshots, b.changes, defaultStart, logger)
	b.figures = figureapp.NewFigureService(figureRepo, b.changes, logger)
	b.posts = postapp.NewPostService(postRepo, figureRepo, b.changes, logger)
	b.timeline = timelineapp.NewTimelineService(postRepo, figureRepo)
	b.interactions = interactionapp.NewInteractionService(interactionRepo, postRepo, b.changes, logger)
	return b, nil
}

func authOptions(cfg *config.Config) profileapp.AuthOptions {
	opts := profileapp.AuthOptions{
		JWTSecret:     []byte(cfg.JWTSecret),
		SessionTTL:    cfg.SessionTTL,
		IDTokenIssuer: cfg.IDTokenIssuer,
	}
	if cfg.IDTokenSecret != "" {
		opts.IDTokenSecret = []byte(cfg.IDTokenSecret)
	}
	if cfg.OAuthClientID != "" {
		opts.OAuth = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		}
		opts.UserInfoURL = cfg.OAuthUserInfoURL
	}
	return opts
}

// closeResources closes the Redis and database connections.
func closeResources(logger *zap.Logger) {
	if config.RedisClient != nil {
		if err := config.RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
	if config.DB == nil {
		return
	}
	sqlDB, err := config.DB.DB()
	if err != nil {
		logger.Error("Error getting raw DB", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
	}
}

// reportPoolStats feeds the connection-pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, db *gorm.DB, metrics *middleware.Metrics, every time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		config.L().Warn("Pool stats unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		metrics.RecordDBPoolStats(sqlDB.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
