package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"looksdehoje-backend/config"
	"looksdehoje-backend/internal/api"
	"looksdehoje-backend/internal/blob"
	"looksdehoje-backend/internal/db"
	"looksdehoje-backend/internal/notification"
	"looksdehoje-backend/internal/session"
	"looksdehoje-backend/internal/store"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			log.Info("configuration loaded", zap.String("path", *configPath))
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := db.Init(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	sessionDB, err := openSessionDB(cfg.Session)
	if err != nil {
		return err
	}
	if sessionDB != nil {
		defer sessionDB.Close()
	}
	sessions, err := session.NewManager(cfg.Session, sessionDB)
	if err != nil {
		return err
	}
	gate := session.NewGate(sessions, appStore, log.Named("session"))

	piecesBucket, err := blob.NewLocal(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.PiecesBucket)
	if err != nil {
		return err
	}
	heroBucket, err := blob.NewLocal(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.HeroBucket)
	if err != nil {
		return err
	}
	log.Info("image storage ready",
		zap.String("root", cfg.Storage.Root),
		zap.Strings("buckets", []string{piecesBucket.Name(), heroBucket.Name()}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps := api.Deps{
		Store:     appStore,
		Gate:      gate,
		Pieces:    blob.NewImageUploader(piecesBucket, "", cfg.Catalog.MaxUploadBytes),
		Hero:      blob.NewImageUploader(heroBucket, "hero", cfg.Catalog.MaxHeroUploadBytes),
		Logger:    log.Named("api"),
		MaxImages: cfg.Catalog.MaxImages,
	}

	var pool *notification.WorkerPool
	if cfg.Push.Enabled() {
		webpushOptions := &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, log.Named("notification"))
		pool.Start(ctx)
		deps.Notifier = pool
		deps.WebPush = webpushOptions
	} else {
		log.Warn("VAPID keys are not configured; availability notifications are disabled")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(ctx, deps, cfg),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping services")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	log.Info("server gracefully stopped")
	return nil
}

// openSessionDB opens the sqlite file backing persistent sessions, when configured.
func openSessionDB(cfg config.SessionConfig) (*sql.DB, error) {
	if cfg.Store != "sqlite" {
		return nil, nil
	}
	path := cfg.SQLitePath
	if path == "" {
		path = "sessions.db"
	}
	sessionDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session database %s: %w", path, err)
	}
	return sessionDB, nil
}
