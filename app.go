package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"novelassist/internal/api"
	"novelassist/internal/config"
	"novelassist/internal/crypto"
	"novelassist/internal/database"
	"novelassist/internal/logging"
	"novelassist/internal/scheduler"
	"novelassist/internal/services/admin"
	"novelassist/internal/services/auth"
	"novelassist/internal/services/jobs"
	"novelassist/internal/services/novel"
	"novelassist/internal/services/user"
	"novelassist/internal/services/visualization"
	"novelassist/internal/session"
	"novelassist/internal/state"
)

// App struct - main application state
type App struct {
	ctx   context.Context
	cfg   *config.Config
	log   *zap.Logger
	db    *gorm.DB
	redis *redis.Client

	client    *api.Client
	navigator api.Navigator
	scheduler *scheduler.Service
	store     *state.Store

	authService          *auth.Service
	novelService         *novel.Service
	adminService         *admin.Service
	userService          *user.Service
	visualizationService *visualization.Service
	jobsService          *jobs.Service
}

// NewApp creates a new App for the given configuration
func NewApp(cfg *config.Config, log *zap.Logger, navigator api.Navigator) *App {
	return &App{
		cfg:       cfg,
		log:       logging.OrNop(log),
		navigator: navigator,
	}
}

// startup wires every service. The context bounds the scheduler and poll ticks.
func (a *App) startup(ctx context.Context) error {
	a.ctx = ctx
	a.log.Debug("Application starting up")

	db, err := database.Open(a.cfg.DatabaseURL, a.cfg.LogLevel == "debug", a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	backend, err := a.sessionBackend(ctx)
	if err != nil {
		return err
	}

	a.client = api.NewClient(api.Options{
		BaseURL:    a.cfg.APIURL,
		Timeout:    a.cfg.RequestTimeout,
		RetryCount: a.cfg.RetryCount,
		RateLimit:  a.cfg.RateLimit,
		RateBurst:  a.cfg.RateBurst,
		Logger:     a.log.Named("api"),
		Navigator:  a.navigator,
		LoginPath:  a.cfg.LoginPath,
	}, session.NewStore(backend))

	a.authService = auth.NewService(a.client, a.log.Named("auth"))
	a.novelService = novel.NewService(a.client, a.log.Named("novel"))
	a.adminService = admin.NewService(a.client)
	a.userService = user.NewService(a.client)
	a.visualizationService = visualization.NewService(a.client)
	a.jobsService = jobs.NewService(db, a.log.Named("jobs"))

	a.scheduler = scheduler.NewService(ctx, a.log.Named("scheduler"))
	a.scheduler.Start()

	a.store = state.NewStore(ctx, state.Options{
		Novels:       a.novelService,
		Auth:         a.authService,
		Jobs:         a.jobsService,
		Scheduler:    a.scheduler,
		PollInterval: a.cfg.PollInterval,
		Logger:       a.log.Named("state"),
	})

	a.log.Debug("Startup complete", zap.String("api", a.cfg.APIURL), zap.String("session_backend", a.cfg.SessionBackend))
	return nil
}

// sessionBackend selects where the signed-in session is kept
func (a *App) sessionBackend(ctx context.Context) (session.Backend, error) {
	switch a.cfg.SessionBackend {
	case config.SessionBackendRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.RedisAddr, err)
		}
		return session.NewRedisBackend(a.redis, a.cfg.SessionTTL), nil
	case config.SessionBackendDatabase:
		cipher, err := crypto.LoadCipher(a.cfg.EncryptionKey, a.log)
		if err != nil {
			return nil, fmt.Errorf("encryption initialization failed, sessions cannot be stored: %w", err)
		}
		return session.NewDatabaseBackend(a.db, cipher), nil
	case config.SessionBackendMemory:
		return session.NewMemoryBackend(), nil
	default:
		return session.NewKeyringBackend(), nil
	}
}

// shutdown stops polling and the scheduler and closes connections
func (a *App) shutdown() {
	a.log.Debug("Application shutting down")

	if a.store != nil {
		a.store.Close()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, database.Close(a.db))
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Error during shutdown", zap.Error(err))
	}
}

// ====================================================================================
// FRONT-END METHODS - called by the CLI commands
// ====================================================================================

// UploadNovel submits a file or URL and, when wait is set, blocks until processing ends
func (a *App) UploadNovel(ctx context.Context, req novel.UploadRequest, wait bool) (string, error) {
	id, err := a.store.UploadNovel(ctx, req)
	if err != nil {
		return "", err
	}
	if !wait {
		return id, nil
	}

	status, err := a.store.WaitForProcessing(ctx)
	if err != nil {
		return id, err
	}
	if msg := a.store.State().Error; msg != "" {
		return id, errors.New(msg)
	}
	a.log.Info("Novel processed", zap.String("novel_id", id), zap.String("status", string(status)))
	return id, nil
}

// RecentJobs lists upload history rendered as summary lines
func (a *App) RecentJobs(ctx context.Context, limit int) ([]string, error) {
	list, err := a.jobsService.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(list))
	for i := range list {
		lines[i] = jobs.Summary(&list[i])
	}
	return lines, nil
}
