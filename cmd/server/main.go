package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oggyb/campus-match/internal/app"
	"github.com/oggyb/campus-match/internal/assets"
	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/chat"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/jobs"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/server"
	"github.com/oggyb/campus-match/internal/service/dating"
	"github.com/oggyb/campus-match/internal/telemetry"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Error("failed to init tracing", "err", err)
		return
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	store, err := assets.NewFSStore(cfg.Assets.Dir)
	if err != nil {
		log.Error("failed to open asset store", "dir", cfg.Assets.Dir, "err", err)
		return
	}

	// chat lives in the service database; the session connects on first use
	chatStore := chat.NewStore(database, log)
	chatSession := chat.NewSession(func(context.Context) (chat.Client, error) { return chatStore, nil })
	defer chatSession.Close()

	appCtx, err := app.New(cfg, database, redisCache, log, chatSession, store)
	if err != nil {
		log.Error("failed to init app", "err", err)
		return
	}
	defer appCtx.Close()
	chatStore.OnNewMessage(appCtx.Matches.IncrementMessageCount)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	if cfg.Jobs.Enabled {
		reset, err := jobs.NewDailyReset(cfg.Jobs, appCtx.Quota, redisCache, appCtx.Notifier, log)
		if err != nil {
			log.Error("failed to init daily reset", "err", err)
			return
		}
		go func() {
			if err := reset.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("daily reset stopped", "err", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           assets.NewRouter(store, appCtx.Signer, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("starting asset server", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("asset server failed", "err", err)
			stop()
		}
	}()

	registrars := []server.Registrar{
		dating.NewRegistrar(appCtx),
	}
	grpcServer := server.NewGRPCServer(cfg, log, registrars...)

	go func() {
		addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
		log.Info("starting gRPC server", "addr", addr)
		if err := server.StartGRPCServer(cfg, grpcServer); err != nil {
			log.Error("failed to start gRPC server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	grpcServer.GracefulStop()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(sctx); err != nil {
		log.Warn("asset server shutdown", "err", err)
	}
}
