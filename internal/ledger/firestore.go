package ledger

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// collectionName is the Firestore collection for processed events
	collectionName = "adminClaimEvents"
)

// FirestoreConfig holds configuration for the Firestore client
type FirestoreConfig struct {
	ProjectID   string // GCP Project ID (required)
	Database    string // Database name (optional, defaults to "(default)")
	Credentials string // Path to service account JSON file (optional)
	Logger      logrus.FieldLogger
}

// NewFirestoreClient creates a new Firestore client.
// If FIRESTORE_EMULATOR_HOST is set, the client will connect to the emulator.
func NewFirestoreClient(ctx context.Context, cfg FirestoreConfig) (*firestore.Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	emulatorHost := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if emulatorHost != "" {
		logger.Warnf("Using Firestore Emulator at %s", emulatorHost)
	}

	var opts []option.ClientOption
	if cfg.Credentials != "" && emulatorHost == "" {
		// Only use credentials file when not using emulator
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	database := cfg.Database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return client, nil
}

// FirestoreLedger implements Ledger using Firestore.
// Each event is one document whose ID is the event ID.
type FirestoreLedger struct {
	client *firestore.Client
}

// Ensure FirestoreLedger implements Ledger interface
var _ Ledger = (*FirestoreLedger)(nil)

// NewFirestoreLedger creates a new FirestoreLedger
//
// Parameters:
//   - client: Firestore client instance
//
// Returns:
//   - FirestoreLedger instance
func NewFirestoreLedger(client *firestore.Client) *FirestoreLedger {
	return &FirestoreLedger{
		client: client,
	}
}

// Seen reports whether an entry exists for eventID
func (l *FirestoreLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := l.client.Collection(collectionName).Doc(eventID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return true, nil
}

// Record creates the entry document. Create fails with AlreadyExists when a
// concurrent delivery of the same event won the race; that maps to ErrDuplicate.
func (l *FirestoreLedger) Record(ctx context.Context, entry Entry) error {
	if entry.EventID == "" {
		return fmt.Errorf("event ID is required")
	}

	_, err := l.client.Collection(collectionName).Doc(entry.EventID).Create(ctx, entry)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}
