package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"

	cartapp "github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/domain"
	"github.com/littlelayers/cartsync/internal/cart/httpapi"
	"github.com/littlelayers/cartsync/internal/cart/infra/bolt"
	"github.com/littlelayers/cartsync/internal/cart/infra/memory"
	"github.com/littlelayers/cartsync/internal/cart/infra/postgres"
	checkoutapp "github.com/littlelayers/cartsync/internal/checkout/app"
	"github.com/littlelayers/cartsync/internal/identity"
	"github.com/littlelayers/cartsync/pkg/config"
	"github.com/littlelayers/cartsync/pkg/logger"
	"github.com/littlelayers/cartsync/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "cartd", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	local, err := bolt.Open(cfg.LocalStorePath)
	if err != nil {
		log.Error("open local replica", slog.Any("err", err))
		os.Exit(1)
	}
	defer local.Close()

	remote, closeRemote := mustRemote(cfg, log)
	defer closeRemote()

	engine := cartapp.NewEngine(local, remote, log)
	engine.OnSnapshot(func(snap domain.Snapshot) {
		log.Debug("snapshot changed",
			slog.Int("items", len(snap.Items)),
			slog.Int64("total_price", snap.TotalPrice()))
	})

	checkout := checkoutapp.NewService(engine)
	tracker := identity.NewTracker(log)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tracker.Run(ctx, func(ctx context.Context, ev identity.Event) error {
			switch ev.Kind {
			case identity.KindSignedIn:
				return engine.SignIn(ctx, ev.UserID)
			case identity.KindSignedOut:
				return engine.SignOut(ctx)
			default:
				return engine.RestoreSession(ctx, ev.UserID)
			}
		})
	}()

	tracker.RestoreSession(cfg.RestoreUserID)

	api := httpapi.NewServer(engine, checkout, tracker, log)
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	// Drain in-flight remote writes before closing the stores.
	engine.Wait()
	wg.Wait()
	log.Info("bye")
}

func mustRemote(cfg config.Config, log *slog.Logger) (cartapp.RemoteStore, func()) {
	if cfg.DatabaseURL == "" {
		log.Warn("no DATABASE_URL, using in-memory remote replica")
		return memory.NewRemoteStore(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open remote replica", slog.Any("err", err))
		os.Exit(1)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		// Local-first: the cart works without the remote; sync catches up.
		log.Warn("remote replica unreachable at startup", slog.Any("err", err))
	}

	return postgres.NewRemoteStore(db), func() { _ = db.Close() }
}
