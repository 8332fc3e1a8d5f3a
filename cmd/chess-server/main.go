package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-chess-rooms/internal/archive"
	"github.com/park285/cheese-chess-rooms/internal/clock"
	appcfg "github.com/park285/cheese-chess-rooms/internal/config"
	"github.com/park285/cheese-chess-rooms/internal/game"
	"github.com/park285/cheese-chess-rooms/internal/httpapi"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
	"github.com/park285/cheese-chess-rooms/internal/notify"
	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/internal/roomindex"
	"github.com/park285/cheese-chess-rooms/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog init error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Game archive: Postgres when configured, otherwise in memory.
	var repo archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive repository init error", zap.Error(err))
		}
		logger.Info("archive_backend", zap.String("backend", "postgres"))
	} else {
		repo = archive.NewMemoryRepository()
		logger.Info("archive_backend", zap.String("backend", "memory"))
	}
	defer repo.Close()

	var notifier archive.Notifier
	if cfg.ResultWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.ResultWebhookURL, notify.WithCatalog(catalog))
	}
	gateway := archive.NewGateway(repo, notifier, cfg.ArchiveQueueSize, obslog.Named("archive"))

	// Optional shared room index.
	var observer room.Observer
	var index httpapi.RoomLister
	if cfg.RedisURL != "" {
		store, err := roomindex.NewStoreFromURL(ctx, cfg.RedisURL, cfg.RoomIndexTTL, obslog.Named("roomindex"))
		if err != nil {
			logger.Fatal("room index init error", zap.Error(err))
		}
		defer store.Close()
		observer, index = store, store
	}

	rooms := room.NewRegistry(room.Config{
		Session: game.Config{
			Clock:       clock.Config{Initial: cfg.InitialTime, PreStart: cfg.PreStartTime},
			TimeControl: cfg.TimeControl,
		},
		TickInterval: cfg.TickInterval,
	}, gateway, observer, obslog.Named("room"))

	ws := transport.NewHandler(transport.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		SendQueueSize:   cfg.SendQueueSize,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, rooms, catalog, obslog.Named("ws"))

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.Deps{
		Rooms:          rooms,
		Index:          index,
		WS:             ws,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         obslog.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_begin")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	if err := ws.Close(sctx); err != nil {
		logger.Warn("ws_shutdown_error", zap.Error(err))
	}
	rooms.Close()
	if err := gateway.Close(sctx); err != nil {
		logger.Warn("archive_drain_error", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}
