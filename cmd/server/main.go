package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/api"
	"github.com/deskhub/helpdesk/internal/config"
	"github.com/deskhub/helpdesk/internal/db"
	"github.com/deskhub/helpdesk/internal/fanout"
	"github.com/deskhub/helpdesk/internal/gateway"
	"github.com/deskhub/helpdesk/internal/ingest"
	"github.com/deskhub/helpdesk/internal/lock"
	"github.com/deskhub/helpdesk/internal/mailbox"
	"github.com/deskhub/helpdesk/internal/metrics"
	"github.com/deskhub/helpdesk/internal/pubsub"
	"github.com/deskhub/helpdesk/internal/repository"
	"github.com/deskhub/helpdesk/internal/scheduler"
	"github.com/deskhub/helpdesk/internal/service"
	"github.com/deskhub/helpdesk/internal/token"
)

const systemUserID = "mailer"

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- redis (delivery channel + import lock) ----
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := repository.NewPgTicketRepository(pool)
	channel := pubsub.NewRedisChannel(rdb, logger)
	locker := lock.NewRedisLocker(rdb, cfg.LockTTL, logger)

	onPublished, onDropped := m.FanoutHooks()
	notifier := fanout.New(channel, repo, logger, fanout.Hooks{
		OnPublished: onPublished,
		OnDropped:   onDropped,
	})
	defer notifier.Close()

	svc := service.NewTicketService(repo, notifier, systemUserID, logger)

	// ---- mail import pipeline ----
	broker := token.New(cfg.OAuthTenantID, cfg.OAuthClientID, cfg.OAuthRefreshToken, "")
	dialer := &mailbox.IMAPDialer{Timeout: cfg.IMAPTimeout}
	importer := ingest.New(broker, dialer, repo, svc,
		cfg.MailHost, cfg.MailUser, cfg.FetchRate, logger)

	poller := scheduler.NewPoller(importer, locker, scheduler.Config{
		LockName:   cfg.LockName,
		Interval:   cfg.PollInterval,
		Retries:    cfg.RetryCount,
		RetryDelay: cfg.RetryDelay,
		Options: ingest.Options{
			Mailbox:  cfg.MailboxName,
			Folder:   cfg.MailFolder,
			MarkSeen: cfg.MarkSeen,
			Limit:    cfg.ImportLimit,
		},
		Resetter: repo,
		Hooks:    scheduler.Hooks{OnRun: m.PollerHooks()},
	}, logger)

	// Context for all background goroutines; cancelled on shutdown signal.
	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()

	if cfg.PollEnabled {
		go poller.Run(pollCtx)
	} else {
		logger.Info("mail polling disabled; imports run on demand only")
	}

	// ---- websocket gateway ----
	onConnect, onDisconnect := m.GatewayHooks()
	gw := gateway.New(channel, gateway.NewAuthenticator(cfg.JWTSecret), logger, gateway.Hooks{
		OnConnect:    onConnect,
		OnDisconnect: onDisconnect,
	})

	// ---- HTTP server ----
	router := api.NewRouter(svc, poller, gw, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests. Hijacked websocket
	// connections are outside Shutdown's reach; they end when the
	// process exits.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the mail poller; a run in flight finishes its current cycle.
	cancelPoll()

	// 3. Drain queued notifications before the redis client goes away.
	notifier.Close()

	logger.Info("server stopped cleanly")
}
