package assignor

import (
	"context"
	"fmt"

	"cloud.google.com/go/functions/metadata"
	"github.com/sirupsen/logrus"
)

// ClaimsWriter grants the admin custom claim on a user record.
// Implementations must be idempotent: granting twice leaves admin=true.
type ClaimsWriter interface {
	GrantAdmin(ctx context.Context, uid string) error
}

// Outcome is the terminal state of one evaluation
type Outcome int

const (
	// OutcomeNotAdmin means the email was not allow-listed and nothing was written
	OutcomeNotAdmin Outcome = iota
	// OutcomeGranted means the admin claim was written
	OutcomeGranted
)

// String returns the outcome name used in logs and receiver responses
func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeNotAdmin:
		return "not_admin"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Assignor decides admin-or-not for newly created users.
// It holds only read-only state and is safe for concurrent use.
type Assignor struct {
	admins AllowList
	writer ClaimsWriter
	logger logrus.FieldLogger
}

// Option is a functional option for configuring the Assignor.
type Option func(*Assignor)

// WithLogger sets the logger used for outcome lines.
// If not provided, the logrus standard logger is used.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Assignor) {
		a.logger = logger
	}
}

// New creates an Assignor granting admin to members of admins through writer.
//
// Example:
//
//	writer, err := auth.NewFirebaseClaimsWriter(ctx, auth.FirebaseClaimsWriterConfig{ProjectID: "my-project"})
//	if err != nil {
//	    return err
//	}
//	a := assignor.New(assignor.NewAllowList([]string{"admin1@example.com"}), writer)
//	err = a.HandleUserCreated(ctx, event)
func New(admins AllowList, writer ClaimsWriter, opts ...Option) *Assignor {
	a := &Assignor{
		admins: admins,
		writer: writer,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Evaluate runs the membership test for user and, on a match, grants the
// admin claim. The write is attempted once; its error is returned wrapped
// and no success line is logged. A missing email is a non-match, not an error.
func (a *Assignor) Evaluate(ctx context.Context, user AuthEvent) (Outcome, error) {
	entry := a.logger.WithFields(logrus.Fields{
		"uid":   user.UID,
		"email": user.Email,
	})
	if meta, err := metadata.FromContext(ctx); err == nil && meta.EventID != "" {
		entry = entry.WithField("eventId", meta.EventID)
	}

	if !a.admins.Contains(user.Email) {
		entry.WithField("outcome", OutcomeNotAdmin.String()).
			Infof("%s is not an admin", displayEmail(user.Email))
		return OutcomeNotAdmin, nil
	}

	if err := a.writer.GrantAdmin(ctx, user.UID); err != nil {
		return OutcomeNotAdmin, fmt.Errorf("failed to grant admin claim to %s: %w", user.UID, err)
	}

	entry.WithField("outcome", OutcomeGranted.String()).
		Infof("granted admin claim to %s", user.Email)
	return OutcomeGranted, nil
}

// HandleUserCreated is the trigger-shaped form of Evaluate: it returns only
// the error, which the hosting platform treats as an invocation failure.
func (a *Assignor) HandleUserCreated(ctx context.Context, user AuthEvent) error {
	_, err := a.Evaluate(ctx, user)
	return err
}

// AllowList returns the configured allow-list
func (a *Assignor) AllowList() AllowList {
	return a.admins
}

func displayEmail(email string) string {
	if email == "" {
		return "<no email>"
	}
	return email
}
