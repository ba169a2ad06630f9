// Package app initializes and runs the collections service.
// It configures logging, storage, authentication, and routing,
// seeds the initial admin account, and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/kolekt/internal/auth"
	"github.com/patric-chuzhbe/kolekt/internal/config"
	"github.com/patric-chuzhbe/kolekt/internal/db/jsondb"
	"github.com/patric-chuzhbe/kolekt/internal/db/memorystorage"
	"github.com/patric-chuzhbe/kolekt/internal/db/postgresdb"
	"github.com/patric-chuzhbe/kolekt/internal/db/storage"
	"github.com/patric-chuzhbe/kolekt/internal/logger"
	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/router"
	"github.com/patric-chuzhbe/kolekt/internal/service"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

// App encapsulates the configuration, HTTP handler and storage backend
// needed to run the collections service.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - seeding the admin user and its default collection
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	if err := app.seed(context.Background()); err != nil {
		return nil, err
	}

	tokenSigningSecretKey, err := base64.URLEncoding.DecodeString(app.cfg.TokenSigningSecretKey)
	if err != nil {
		return nil, err
	}

	theAuth := auth.New(
		app.db,
		tokenSigningSecretKey,
		app.cfg.TokenTTL,
	)

	app.httpHandler = router.New(
		service.New(app.db),
		theAuth,
		app.db,
		theAuth,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

// seed guarantees that an admin account with at least one collection
// exists, mirroring the bootstrap of the backing dataset.
func (a *App) seed(ctx context.Context) error {
	usersCount, err := a.db.GetNumberOfUsers(ctx)
	if err != nil {
		return err
	}

	var adminID int64
	if usersCount == 0 {
		passwordHash, err := auth.HashPassword(a.cfg.SeedAdminPassword)
		if err != nil {
			return err
		}

		adminID, err = a.db.CreateUser(
			ctx,
			&user.User{
				Username:     a.cfg.SeedAdminUsername,
				FirstName:    "Super",
				LastName:     "Admin",
				PasswordHash: passwordHash,
			},
			nil,
		)
		if err != nil {
			return err
		}

		logger.Log.Infow("seeded admin user", "username", a.cfg.SeedAdminUsername)
	} else {
		admin, found, err := a.db.GetUserByUsername(ctx, a.cfg.SeedAdminUsername)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		adminID = admin.ID
	}

	collections, err := a.db.ListCollections(ctx, adminID)
	if err != nil {
		return err
	}
	if len(collections) > 0 {
		return nil
	}

	_, err = a.db.CreateCollection(ctx, adminID, "Default collection", nil)

	return err
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
