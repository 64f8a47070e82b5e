package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/otiai10/assignadmin/internal/api"
	"github.com/otiai10/assignadmin/internal/assignor"
	"github.com/otiai10/assignadmin/internal/auth"
	"github.com/otiai10/assignadmin/internal/config"
	"github.com/otiai10/assignadmin/internal/ledger"
)

// shutdownTimeout bounds graceful shutdown of the receiver
const shutdownTimeout = 10 * time.Second

// App wires the assignor to its identity provider, ledger and receiver.
type App struct {
	config   *config.Config
	logger   logrus.FieldLogger
	writer   assignor.ClaimsWriter // optional override, built from config when nil
	ledger   ledger.Ledger         // optional override, built from config when nil
	assignor *assignor.Assignor
	closers  []func() error
}

// Option is a functional option for configuring the App.
type Option func(*App)

// WithClaimsWriter replaces the Firebase claims writer.
func WithClaimsWriter(w assignor.ClaimsWriter) Option {
	return func(a *App) {
		a.writer = w
	}
}

// WithLedger replaces the ledger built from config.Ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(a *App) {
		a.ledger = l
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New builds the application from cfg.
//
// Unless overridden by options, it creates a Firebase claims writer for
// cfg.Auth, wraps it with retries when cfg.Retry.Enabled, and opens a
// Firestore ledger when cfg.Ledger is set.
//
// Example:
//
//	cfg, err := config.LoadFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	application, err := app.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer application.Close()
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		config: cfg,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	mode, err := auth.ParseClaimsMode(cfg.ClaimsMode)
	if err != nil {
		return nil, err
	}

	writer := a.writer
	if writer == nil {
		fw, err := auth.NewFirebaseClaimsWriter(ctx, auth.FirebaseClaimsWriterConfig{
			ProjectID:       cfg.Auth.ProjectID,
			CredentialsPath: cfg.Auth.Credentials,
			TenantID:        cfg.Auth.TenantID,
			Mode:            mode,
			Logger:          a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create claims writer: %w", err)
		}
		writer = fw
	}

	if cfg.Retry.Enabled {
		writer = assignor.NewRetryingClaimsWriter(writer, assignor.RetryConfig{
			Enabled:    true,
			MaxRetries: cfg.Retry.MaxRetries,
			InitialMs:  cfg.Retry.InitialMs,
			MaxMs:      cfg.Retry.MaxMs,
		}, auth.IsTransient, a.logger)
	}

	if a.ledger == nil && cfg.Ledger != nil {
		client, err := ledger.NewFirestoreClient(ctx, ledger.FirestoreConfig{
			ProjectID:   cfg.Ledger.ProjectID,
			Database:    cfg.Ledger.Database,
			Credentials: cfg.Ledger.Credentials,
			Logger:      a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ledger: %w", err)
		}
		a.ledger = ledger.NewFirestoreLedger(client)
		a.closers = append(a.closers, client.Close)
	}

	admins := assignor.NewAllowList(cfg.AdminEmails)
	a.assignor = assignor.New(admins, writer, assignor.WithLogger(a.logger))

	a.logger.WithFields(logrus.Fields{
		"admins":     admins.Len(),
		"claimsMode": string(mode),
		"tenant":     cfg.Auth.TenantID,
		"retry":      cfg.Retry.Enabled,
		"ledger":     a.ledger != nil,
	}).Info("assignor configured")

	return a, nil
}

// Assignor returns the configured assignor
func (a *App) Assignor() *assignor.Assignor {
	return a.assignor
}

// Handler returns the HTTP handler of the self-hosted receiver
func (a *App) Handler() http.Handler {
	secret := ""
	if a.config.API != nil {
		secret = a.config.API.SigningSecret
	}
	return api.NewRouter(api.RouterConfig{
		Evaluator:     a.assignor,
		Ledger:        a.ledger,
		SigningSecret: secret,
		Logger:        a.logger,
	})
}

// Run serves the receiver on config.API.Addr and blocks until ctx is
// cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.config.API == nil {
		return fmt.Errorf("api configuration is required to run the receiver")
	}

	server := api.NewServer(a.config.API.Addr, a.Handler())
	if a.config.API.SigningSecret == "" {
		a.logger.Warn("ASSIGNADMIN_SIGNING_SECRET is empty; unsigned deliveries are accepted")
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Infof("Starting event receiver on %s", server.Addr())
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down receiver: %w", err)
	}
	return <-errChan
}

// Close releases clients opened by New
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
