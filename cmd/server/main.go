package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/auth"
	"github.com/freeeve/dicewars/internal/config"
	"github.com/freeeve/dicewars/internal/handler"
	"github.com/freeeve/dicewars/internal/logger"
	"github.com/freeeve/dicewars/internal/middleware"
	"github.com/freeeve/dicewars/internal/repository"
	"github.com/freeeve/dicewars/internal/repository/postgres"
	redisrepo "github.com/freeeve/dicewars/internal/repository/redis"
	"github.com/freeeve/dicewars/internal/repository/sqlite"
	"github.com/freeeve/dicewars/internal/sandbox"
	"github.com/freeeve/dicewars/internal/service"
)

// repos is the storage backend selected by configuration.
type repos struct {
	users   repository.UserRepository
	agents  repository.AgentRepository
	matches repository.MatchRepository
	storage repository.AgentStorage
	cache   repository.MatchCache
	closers []func() error
}

func (r *repos) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Close storage failed")
		}
	}
}

// openRepos uses a single SQLite file when SQLITE_PATH is set, otherwise
// Postgres for records and Redis for agent storage and live match state.
func openRepos(ctx context.Context, cfg *config.Config) (*repos, error) {
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("Using SQLite store")
		return &repos{
			users:   store.Users(),
			agents:  store.Agents(),
			matches: store.Matches(),
			storage: store.Storage(),
			closers: []func() error{store.Close},
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL, redisrepo.WithKeyPrefix(cfg.RedisKeyPrefix))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &repos{
		users:   postgres.NewUserRepo(db),
		agents:  postgres.NewAgentRepo(db),
		matches: postgres.NewMatchRepo(db),
		storage: redisClient,
		cache:   redisClient,
		closers: []func() error{db.Close, redisClient.Close},
	}, nil
}

func newSandbox(cfg *config.Config, storage repository.AgentStorage) *sandbox.Sandbox {
	var runner sandbox.Runner = sandbox.InProcessRunner{}
	if cfg.AgentWorkerPath != "" {
		runner = sandbox.NewProcessRunner(cfg.AgentWorkerPath)
		log.Info().Str("worker", cfg.AgentWorkerPath).Msg("Running agents in worker processes")
	}
	return sandbox.New(runner,
		sandbox.WithStorage(storage),
		sandbox.WithTurnTimeout(cfg.AgentTimeout),
		sandbox.WithMaxMoves(cfg.AgentMaxMoves),
	)
}

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().
		Bool("sqlite", cfg.SQLitePath != "").
		Str("archiveDir", cfg.ArchiveDir).
		Bool("devMode", cfg.DevMode).
		Msg("Config loaded")

	store, err := openRepos(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Storage connection failed")
	}
	defer store.Close()

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Sandbox and bot driver
	driver := sandbox.NewDriver(newSandbox(cfg, store.storage), store.agents)
	driver.OnResult = func(playerID int, res sandbox.TurnResult) {
		if res.Outcome != sandbox.OutcomeCompleted {
			log.Warn().
				Str("agentId", res.AgentID).
				Int("playerId", playerID).
				Str("outcome", string(res.Outcome)).
				Err(res.Err).
				Msg("Agent turn ended early")
		}
	}

	// Services
	matchSvc := service.NewMatchService(store.matches, store.cache, driver, wsHub, cfg.ArchiveDir)
	agentSvc := service.NewAgentService(store.agents)
	reaper := service.NewReaper(matchSvc, time.Minute, cfg.IdleTimeout)

	// Handlers
	router := handler.Router{
		JWT:     jwtMgr,
		Auth:    handler.NewAuthHandler(jwtMgr, store.users, cfg.DevMode),
		Users:   handler.NewUserHandler(store.users),
		Matches: handler.NewMatchHandler(matchSvc),
		Agents:  handler.NewAgentHandler(agentSvc),
		WS:      handler.NewWSHandler(wsHub, jwtMgr, matchSvc),
	}

	// Apply global middleware
	root := middleware.Chain(router.Handler(), middleware.Logger, middleware.Recover, middleware.CORS(cfg.CORSOrigin), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	matchSvc.Wait()
	log.Info().Msg("Server stopped")
}
