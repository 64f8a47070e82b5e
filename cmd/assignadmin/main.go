package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/otiai10/assignadmin/internal/app"
	"github.com/otiai10/assignadmin/internal/assignor"
	"github.com/otiai10/assignadmin/internal/config"
	"github.com/otiai10/assignadmin/internal/ledger"
	"github.com/otiai10/assignadmin/internal/logging"
	"github.com/otiai10/assignadmin/internal/version"
)

// defaultAddr is used when ASSIGNADMIN_API_ADDR is not set
const defaultAddr = ":8080"

func main() {
	// Parse command-line flags
	check := flag.String("check", "", "Report whether an email is on the allow-list and exit")
	flag.Parse()

	// Load .env.localdev file if it exists (for local development)
	// Silently ignore if file doesn't exist (production uses real env vars)
	_ = godotenv.Load(".env.localdev")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Configure(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	if *check != "" {
		os.Exit(runCheck(cfg, *check))
	}

	if cfg.API == nil {
		cfg.API = &config.APIConfig{Addr: addrFromPort(os.Getenv("PORT"))}
	}

	// Setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := []app.Option{app.WithLogger(logger)}
	if cfg.Ledger == nil {
		// Redeliveries are still deduplicated within one process
		opts = append(opts, app.WithLedger(ledger.NewMemoryLedger()))
		logger.Info("Using in-memory ledger")
	}

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}

	logger.WithField("version", version.CommitHash).Info("assignadmin - admin claim receiver")
	runErr := application.Run(ctx)

	logger.Info("Shutting down...")
	if err := application.Close(); err != nil {
		logger.Warnf("Failed to close clients: %v", err)
	}
	if runErr != nil {
		logger.Fatalf("Receiver error: %v", runErr)
	}

	logger.Info("Goodbye!")
}

// runCheck prints the decision for email without touching the identity provider.
func runCheck(cfg *config.Config, email string) int {
	admins := assignor.NewAllowList(cfg.AdminEmails)
	if admins.Contains(email) {
		fmt.Printf("%s is an admin\n", email)
		return 0
	}
	fmt.Printf("%s is not an admin\n", email)
	return 1
}

// addrFromPort honors the PORT convention of Cloud Run
func addrFromPort(port string) string {
	if port == "" {
		return defaultAddr
	}
	return ":" + port
}
