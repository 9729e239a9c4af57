package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"log/slog"

	"github.com/PrashantKumarD/audiosync/internal/app"
	httpx "github.com/PrashantKumarD/audiosync/internal/http"
	"github.com/PrashantKumarD/audiosync/internal/store"
	"github.com/PrashantKumarD/audiosync/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Room store by driver
	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store.connect", "driver", cfg.StoreDriver, "err", err)
		log.Fatal(err)
	}
	defer st.Close()

	// Redis bus for cross-instance WS fanout (optional)
	var bus *ws.RedisBus
	if cfg.RedisAddr != "" {
		bus, err = ws.NewRedisBus(ctx, cfg, logger)
		if err != nil {
			logger.Error("redis.connect", "err", err)
			log.Fatal(err)
		}
		defer bus.Close()
	}

	// WebSocket hub
	hub := ws.NewHub(logger, bus, st)
	go hub.Run(ctx)

	// HTTP + WS router
	router := httpx.NewRouter(cfg, logger, hub)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	// shutdown
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}

// newStore picks the RoomStore backend from config
func newStore(ctx context.Context, cfg app.Config, logger *slog.Logger) (store.RoomStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(ctx, pg, logger); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "mongo":
		return store.NewMongo(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
