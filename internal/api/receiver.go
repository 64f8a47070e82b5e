package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/functions/metadata"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/otiai10/assignadmin/internal/assignor"
	"github.com/otiai10/assignadmin/internal/ledger"
)

// UserCreateEventType is the only event type the receiver accepts
const UserCreateEventType = "providers/firebase.auth/eventTypes/user.create"

// maxBodyBytes bounds the size of one event envelope
const maxBodyBytes = 1 << 20

// Evaluator abstracts assignor.Assignor for testing
type Evaluator interface {
	Evaluate(ctx context.Context, user assignor.AuthEvent) (assignor.Outcome, error)
}

// Envelope is the background-function wire format: event metadata plus the
// user record snapshot.
type Envelope struct {
	Context *metadata.Metadata  `json:"context"`
	Data    *assignor.AuthEvent `json:"data"`
}

// EventResponse is returned for every acknowledged event
type EventResponse struct {
	EventID string `json:"eventId"`
	Outcome string `json:"outcome"` // "granted" | "not_admin" | "duplicate"
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Receiver turns HTTP deliveries of user-created events into Evaluate calls.
// A 2xx response acknowledges the event; 5xx asks the sender to redeliver.
type Receiver struct {
	evaluator Evaluator
	ledger    ledger.Ledger // nil disables deduplication
	secret    string        // empty disables signature checks
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewReceiver creates a Receiver
//
// Parameters:
//   - evaluator: decides and applies the admin claim
//   - l: processed-event ledger, nil to process every delivery
//   - secret: HMAC secret for X-Signature-256, empty to skip verification
//   - logger: destination for per-event lines
func NewReceiver(evaluator Evaluator, l ledger.Ledger, secret string, logger logrus.FieldLogger) *Receiver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Receiver{
		evaluator: evaluator,
		ledger:    l,
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleUserCreated handles POST /events/user-created
func (h *Receiver) HandleUserCreated(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if h.secret != "" && !Verify(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.logger.WithField("remote", r.RemoteAddr).Warn("rejected event with invalid signature")
		writeError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if env.Data == nil || env.Data.UID == "" {
		writeError(w, "data.uid is required", http.StatusBadRequest)
		return
	}

	meta := env.Context
	if meta == nil {
		meta = &metadata.Metadata{}
	}
	if meta.EventType == "" {
		meta.EventType = UserCreateEventType
	} else if meta.EventType != UserCreateEventType {
		writeError(w, "unsupported event type: "+meta.EventType, http.StatusBadRequest)
		return
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = h.now().UTC()
	}

	// Without a sender-assigned ID there is nothing to deduplicate against
	dedupe := h.ledger != nil && meta.EventID != ""
	if meta.EventID == "" {
		meta.EventID = uuid.NewString()
	}

	ctx := metadata.NewContext(r.Context(), meta)
	entry := h.logger.WithFields(logrus.Fields{"eventId": meta.EventID, "uid": env.Data.UID})

	if dedupe {
		seen, err := h.ledger.Seen(ctx, meta.EventID)
		if err != nil {
			entry.WithError(err).Error("failed to check ledger")
			writeError(w, "ledger unavailable", http.StatusServiceUnavailable)
			return
		}
		if seen {
			entry.Info("duplicate delivery acknowledged")
			writeJSON(w, EventResponse{EventID: meta.EventID, Outcome: "duplicate"}, http.StatusOK)
			return
		}
	}

	outcome, err := h.evaluator.Evaluate(ctx, *env.Data)
	if err != nil {
		entry.WithError(err).Error("failed to process user-created event")
		writeError(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	if dedupe {
		err := h.ledger.Record(ctx, ledger.Entry{
			EventID:     meta.EventID,
			UID:         env.Data.UID,
			Email:       env.Data.Email,
			Outcome:     outcome.String(),
			ProcessedAt: h.now().UTC(),
		})
		// The claim write is idempotent, so a lost record only costs a repeat write
		if err != nil && !errors.Is(err, ledger.ErrDuplicate) {
			entry.WithError(err).Warn("failed to record event in ledger")
		}
	}

	writeJSON(w, EventResponse{EventID: meta.EventID, Outcome: outcome.String()}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Already wrote headers, can only log
		return
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
