package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicebridge/internal/agent"
	"voicebridge/internal/auth"
	"voicebridge/internal/backend"
	"voicebridge/internal/config"
	"voicebridge/internal/conversation"
	"voicebridge/internal/priming"
	"voicebridge/internal/relay"
	"voicebridge/internal/session"
	"voicebridge/pkg/logger"
	"voicebridge/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Conversation state: Postgres records, Redis cross-channel history and
	// per-identity write lock.
	locker := conversation.NewRedisIdentityLocker(rdb, 10*time.Second, log)
	store := conversation.NewStore(conversation.NewPostgresRepo(db), locker, log)
	history := conversation.NewRedisHistory(rdb, 200, cfg.Retention.Window)

	// Agent routing.
	profiles, err := agent.NewRegistry(agent.DefaultProfileName, agent.BuiltinProfiles(cfg.Backend.Model)...)
	if err != nil {
		log.Error("agent registry init failed", "err", err)
		os.Exit(1)
	}
	var classifier agent.Classifier
	if cfg.Relay.ClassifierURL != "" {
		classifier = agent.NewHTTPClassifier(cfg.Relay.ClassifierURL, cfg.Relay.ClassifierTimeout)
	}
	router := agent.NewRouter(profiles, classifier, cfg.Relay.ClassifierTimeout, log)

	// Media relay.
	sessions := session.NewRegistry(log)
	injector := priming.NewInjector(history, cfg.Backend.Voice, 20, log)
	dialer := backend.NewWebsocketDialer(cfg.Backend, cfg.Relay.AudioQueueSize, log)
	bridge := relay.NewBridge(sessions, store, history, router, injector, dialer, log)
	sessions.OnDestroy = bridge.Finisher()

	supervisor := session.NewSupervisor(sessions, cfg.Relay.SweepInterval, cfg.Relay.IdleTimeout, log)
	go supervisor.Run(rootCtx)
	go store.RunRetentionSweep(rootCtx, cfg.Retention.Interval, cfg.Retention.Window)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:      cfg,
		db:       db,
		sessions: sessions,
		store:    store,
		bridge:   bridge,
		authMW:   auth.RequireAccessToken(authManager),
	})

	// No global read/write timeouts: /media-stream holds a websocket open
	// for the duration of a call. Per-message deadlines live in the relay.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("bridge listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
