// Package assignadmin is the Cloud Functions entry point.
//
// Deploy with:
//
//	gcloud functions deploy assignAdminRole \
//	    --runtime=go124 --entry-point=AssignAdminRole \
//	    --trigger-event=providers/firebase.auth/eventTypes/user.create \
//	    --trigger-resource=$PROJECT_ID
package assignadmin

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/otiai10/assignadmin/internal/app"
	"github.com/otiai10/assignadmin/internal/assignor"
	"github.com/otiai10/assignadmin/internal/config"
	"github.com/otiai10/assignadmin/internal/logging"
	"github.com/otiai10/assignadmin/internal/version"
)

var (
	mu       sync.Mutex
	instance *assignor.Assignor
)

// AssignAdminRole runs once per newly created user. It sets the admin
// custom claim when the user's email is on the allow-list. A returned
// error marks the invocation failed.
func AssignAdminRole(ctx context.Context, user assignor.AuthEvent) error {
	a, err := getAssignor()
	if err != nil {
		return err
	}
	return a.HandleUserCreated(ctx, user)
}

// getAssignor builds the assignor on first use. A failed build is retried
// on the next invocation.
func getAssignor() (*assignor.Assignor, error) {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance, nil
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := logging.Configure(cfg.LogLevel); err != nil {
		return nil, err
	}

	// Clients outlive the invocation, so they are bound to a background context.
	application, err := app.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	logrus.WithField("version", version.CommitHash).Info("assignAdminRole initialized")
	instance = application.Assignor()
	return instance, nil
}
