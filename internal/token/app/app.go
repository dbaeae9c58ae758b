package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/lockbridge/tokenvault/internal/token/http"
	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/internal/token/store/drivers/memory"
	"github.com/lockbridge/tokenvault/internal/token/store/drivers/sqlite"
	"github.com/lockbridge/tokenvault/pkg/cryptox"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the token subsystem together: store, keyring, services
// and the admin HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	keyring *jwtx.Keyring

	issuerService       *service.IssuerService
	validatorService    *service.ValidatorService
	revocationService   *service.RevocationService
	rotationService     *service.RotationService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized. The keyring
// is restored from the store when generation records exist, otherwise an
// initial generation is derived and installed.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:     cfg,
		keyring: jwtx.NewKeyring(),
		logger: slogx.New(slogx.Config{
			Service: "tokenvault",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if len(cfg.MasterSecret) < cryptox.MinMasterSecretBytes {
		return nil, fmt.Errorf("TOKENVAULT_MASTER_SECRET must be at least %d bytes", cryptox.MinMasterSecretBytes)
	}

	if len(app.cfg.IPSalt) == 0 {
		salt, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("failed to generate IP salt: %w", err)
		}
		app.cfg.IPSalt = []byte(salt)
		app.logger.Warn("TOKENVAULT_IP_SALT not set; using a per-process salt, device-bound tokens will not survive restarts")
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initServices()

	if err := app.initKeyring(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("tokenvault starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"algorithm", app.cfg.Algorithm,
		"store", app.cfg.StoreDriver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, the housekeeping worker and
// the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tokenvault...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("tokenvault stopped")
	return nil
}

func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case "memory":
		app.db = memory.NewStore()
		app.logger.Info("using in-memory store")
		return nil
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.db = db

		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.logger.Info("database migrations applied successfully")
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
}

func (app *Application) initServices() {
	policy := jwtx.Policy{Environment: app.cfg.Env}
	subjects := memory.NewSubjectIndex()

	app.rotationService = &service.RotationService{
		Keyring:      app.keyring,
		Store:        app.db,
		Policy:       policy,
		MasterSecret: app.cfg.MasterSecret,
		Algorithm:    app.cfg.Algorithm,
		RSABits:      app.cfg.RSABits,
		GracePeriod:  app.cfg.KeyGracePeriod,
	}

	app.issuerService = &service.IssuerService{
		Keyring:             app.keyring,
		Issuer:              app.cfg.Issuer,
		DefaultTTL:          app.cfg.AccessTTL,
		MaxTTL:              app.cfg.RefreshTTL,
		MaxCustomClaimBytes: app.cfg.MaxCustomClaimBytes,
		IPSalt:              app.cfg.IPSalt,
		Tracker:             subjects,
	}

	app.validatorService = &service.ValidatorService{
		Keyring:     app.keyring,
		Policy:      policy,
		Revocations: app.db.Revocations(),
		IPSalt:      app.cfg.IPSalt,
	}

	app.revocationService = &service.RevocationService{
		Revocations:      app.db.Revocations(),
		Subjects:         subjects,
		DefaultRetention: app.cfg.RefreshTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.keyring,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initKeyring restores persisted generations or installs the first one.
func (app *Application) initKeyring() error {
	ctx := slogx.WithContext(context.Background(), app.logger)

	restored, err := app.rotationService.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore keyring: %w", err)
	}
	if restored > 0 {
		return nil
	}

	if _, err := app.rotationService.Rotate(ctx); err != nil {
		return fmt.Errorf("failed to install initial key generation: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keyring, BuildVersion, app.db, app.logger)

	router.IssuerService = app.issuerService
	router.ValidatorService = app.validatorService
	router.RevocationService = app.revocationService
	router.RotationService = app.rotationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
