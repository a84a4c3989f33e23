package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/adapters/backend"
	"github.com/ewilliams-labs/cadence/internal/adapters/memory"
	"github.com/ewilliams-labs/cadence/internal/adapters/redis"
	"github.com/ewilliams-labs/cadence/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cadence/internal/config"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/logger"
)

// app is the wired process: config, logger, storage and services.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	store     ports.Store
	backend   *backend.Client
	auth      *services.AuthCoordinator
	orch      *services.Orchestrator
	publisher *services.Publisher

	closeLog func() error
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	log.Debug("storage ready", zap.String("driver", cfg.StorageDriver))

	client := backend.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.BackendBaseURL,
		backend.WithLogger(log),
		backend.WithSessionCookie(cfg.BackendCookie),
	)
	auth := services.NewAuthCoordinator(client, store, log)
	orch := services.NewOrchestrator(client, auth, log)

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		backend:   client,
		auth:      auth,
		orch:      orch,
		publisher: services.NewPublisher(client, auth, store, log),
		closeLog:  closeLog,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (ports.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		a, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return a, nil
	case config.DriverRedis:
		s, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}

// session returns the CLI's persistent session with its stored login.
func (a *app) session(ctx context.Context) (*domain.Session, error) {
	sess, err := domain.NewSession(a.cfg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := a.auth.Restore(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.closeLog())
}

// userError logs the full cause and returns only the advisory message.
func (a *app) userError(err error) error {
	a.log.Debug("command failed", zap.Error(err))
	return errors.New(domain.UserMessage(err))
}
