package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/cleanup"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/infra/memory"
	pgrepo "trivia-quiz-service/internal/infra/postgres"
	rediscache "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/logger"
	"trivia-quiz-service/internal/sparql"
	"trivia-quiz-service/internal/templates"
	transport "trivia-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	redisClient, err := newRedisClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	questions, sweepers := newQuestionSource(cfg, store, redisClient, log)

	sessionTTL := config.TTLDuration(cfg.Session.TTL, time.Hour)
	var sessions app.SessionCache
	if redisClient != nil {
		sessions = rediscache.NewSessionCache(redisClient, sessionTTL)
	} else {
		memSessions := memory.NewSessionCache(sessionTTL)
		sessions = memSessions
		sweepers = append(sweepers, memSessions)
	}

	var games app.GameRepository = memory.NewGameRepository()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		games = pgrepo.NewGameRepository(pool)
		log.Info().Msg("games persisted in postgres")
	} else {
		log.Warn().Msg("postgres url not configured, games kept in memory")
	}

	service := app.NewGameService(sessions, questions, games, store, log,
		app.WithUUIDSessionIDs(cfg.Session.RequireUUID),
	)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if len(sweepers) > 0 {
		interval := config.TTLDuration(cfg.Session.SweepInterval, 5*time.Minute)
		cleanup.NewCleaner(interval, log, sweepers...).Start(workerCtx)
	}

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, log, cfg.Server.AllowedOrigins),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: it would cut WebSocket connections.
	}

	go func() {
		log.Info().Str("addr", server.Addr).Int("templates", len(store.All())).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadTemplates(cfg config.Config) (*templates.Store, error) {
	if cfg.Templates.Path != "" {
		store, err := templates.LoadFile(cfg.Templates.Path)
		if err != nil {
			return nil, fmt.Errorf("load templates from %s: %w", cfg.Templates.Path, err)
		}
		return store, nil
	}
	return templates.LoadDefault()
}

// newRedisClient returns nil when Redis is not configured.
func newRedisClient(ctx context.Context, cfg config.Config, log zerolog.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("redis addr not configured, sessions kept in memory")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	return client, nil
}

// newQuestionSource assembles the knowledge query pipeline:
// SPARQL client, optional page cache, random window executor, generator, optional fallback.
func newQuestionSource(cfg config.Config, store *templates.Store, redisClient *redis.Client, log zerolog.Logger) (app.QuestionSource, []cleanup.Sweeper) {
	var sweepers []cleanup.Sweeper

	var pager sparql.Pager = sparql.NewClient(cfg.Sparql.Endpoint,
		sparql.WithTimeout(config.TTLDuration(cfg.Sparql.Timeout, 10*time.Second)),
		sparql.WithUserAgent(cfg.Sparql.UserAgent),
		sparql.WithLogger(log),
	)

	if cacheTTL := config.TTLDuration(cfg.Cache.TTL, 10*time.Minute); cacheTTL > 0 {
		if redisClient != nil {
			pager = rediscache.NewPageCache(redisClient, pager, cacheTTL)
		} else {
			pages := memory.NewPageCache(pager, cacheTTL)
			pager = pages
			sweepers = append(sweepers, pages)
		}
	}

	executor := sparql.NewExecutor(pager, cfg.Sparql.MaxOffset, cfg.Sparql.PageSize, nil)
	var source app.QuestionSource = app.NewGenerator(store, executor, log)
	if cfg.Generator.Fallback {
		source = app.NewFallbackGenerator(source, log)
	}
	return source, sweepers
}
