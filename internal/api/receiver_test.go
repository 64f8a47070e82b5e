package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/functions/metadata"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/otiai10/assignadmin/internal/assignor"
	"github.com/otiai10/assignadmin/internal/ledger"
)

// mockEvaluator implements Evaluator
type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, user assignor.AuthEvent) (assignor.Outcome, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(assignor.Outcome), args.Error(1)
}

// failingLedger fails every operation
type failingLedger struct {
	err error
}

func (l failingLedger) Seen(ctx context.Context, eventID string) (bool, error) { return false, l.err }
func (l failingLedger) Record(ctx context.Context, entry ledger.Entry) error   { return l.err }

const adminEnvelope = `{
  "context": {
    "eventId": "evt-1",
    "timestamp": "2026-10-19T09:00:00Z",
    "eventType": "providers/firebase.auth/eventTypes/user.create"
  },
  "data": {
    "uid": "u1",
    "email": "admin1@example.com",
    "metadata": {"createdAt": "2026-10-19T08:59:59Z"}
  }
}`

func postEvent(t *testing.T, h *Receiver, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events/user-created", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.HandleUserCreated(rec, req)
	return rec
}

func decodeEventResponse(t *testing.T, rec *httptest.ResponseRecorder) EventResponse {
	t.Helper()
	var resp EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestReceiver_GrantsAndRecords(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	eval := new(mockEvaluator)
	eval.On("Evaluate", mock.MatchedBy(func(ctx context.Context) bool {
		meta, err := metadata.FromContext(ctx)
		return err == nil && meta.EventID == "evt-1" && meta.EventType == UserCreateEventType
	}), mock.MatchedBy(func(u assignor.AuthEvent) bool {
		return u.UID == "u1" && u.Email == "admin1@example.com" &&
			u.Metadata.CreatedAt.Equal(time.Date(2026, 10, 19, 8, 59, 59, 0, time.UTC))
	})).Return(assignor.OutcomeGranted, nil).Once()

	l := ledger.NewMemoryLedger()
	h := NewReceiver(eval, l, "", logger)

	rec := postEvent(t, h, adminEnvelope, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, EventResponse{EventID: "evt-1", Outcome: "granted"}, decodeEventResponse(t, rec))
	eval.AssertExpectations(t)

	entry := l.Get("evt-1")
	require.NotNil(t, entry)
	assert.Equal(t, "u1", entry.UID)
	assert.Equal(t, "granted", entry.Outcome)
}

func TestReceiver_DuplicateDeliveryIsAcknowledgedWithoutWrite(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	eval := new(mockEvaluator)
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(assignor.OutcomeGranted, nil).Once()

	h := NewReceiver(eval, ledger.NewMemoryLedger(), "", logger)

	first := postEvent(t, h, adminEnvelope, nil)
	second := postEvent(t, h, adminEnvelope, nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "duplicate", decodeEventResponse(t, second).Outcome)
	eval.AssertNumberOfCalls(t, "Evaluate", 1)
}

func TestReceiver_WithoutLedgerProcessesEveryDelivery(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	eval := new(mockEvaluator)
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(assignor.OutcomeGranted, nil)

	h := NewReceiver(eval, nil, "", logger)

	postEvent(t, h, adminEnvelope, nil)
	postEvent(t, h, adminEnvelope, nil)

	eval.AssertNumberOfCalls(t, "Evaluate", 2)
}

func TestReceiver_EvaluateFailureAsksForRedelivery(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	eval := new(mockEvaluator)
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(assignor.OutcomeNotAdmin, errors.New("provider unavailable")).Once()
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(assignor.OutcomeGranted, nil).Once()

	l := ledger.NewMemoryLedger()
	h := NewReceiver(eval, l, "", logger)

	failed := postEvent(t, h, adminEnvelope, nil)
	assert.Equal(t, http.StatusInternalServerError, failed.Code)
	assert.Nil(t, l.Get("evt-1"), "failed events must not be recorded")
	assert.NotNil(t, hook.LastEntry())

	retried := postEvent(t, h, adminEnvelope, nil)
	assert.Equal(t, http.StatusOK, retried.Code)
	assert.Equal(t, "granted", decodeEventResponse(t, retried).Outcome)
}

func TestReceiver_LedgerUnavailable(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	eval := new(mockEvaluator)

	h := NewReceiver(eval, failingLedger{err: errors.New("firestore down")}, "", logger)

	rec := postEvent(t, h, adminEnvelope, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
}

func TestReceiver_GeneratesEventIDWhenMissing(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	eval := new(mockEvaluator)
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(assignor.OutcomeNotAdmin, nil)

	l := ledger.NewMemoryLedger()
	h := NewReceiver(eval, l, "", logger)

	rec := postEvent(t, h, `{"data":{"uid":"u2","email":"someone@else.com"}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEventResponse(t, rec)
	assert.Equal(t, "not_admin", resp.Outcome)
	assert.Len(t, resp.EventID, 36)
	assert.Nil(t, l.Get(resp.EventID), "generated IDs are not recorded")
}

func TestReceiver_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "invalid JSON", body: `{not json`, wantMsg: "invalid JSON body"},
		{name: "missing data", body: `{"context":{"eventId":"e"}}`, wantMsg: "data.uid is required"},
		{name: "missing uid", body: `{"data":{"email":"admin1@example.com"}}`, wantMsg: "data.uid is required"},
		{
			name:    "wrong event type",
			body:    `{"context":{"eventType":"providers/firebase.auth/eventTypes/user.delete"},"data":{"uid":"u1"}}`,
			wantMsg: "unsupported event type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := logtest.NewNullLogger()
			eval := new(mockEvaluator)
			h := NewReceiver(eval, nil, "", logger)

			rec := postEvent(t, h, tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantMsg)
			eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
		})
	}
}

func TestReceiver_Signature(t *testing.T) {
	const secret = "s3cret"

	t.Run("valid signature accepted", func(t *testing.T) {
		logger, _ := logtest.NewNullLogger()
		eval := new(mockEvaluator)
		eval.On("Evaluate", mock.Anything, mock.Anything).Return(assignor.OutcomeGranted, nil)
		h := NewReceiver(eval, nil, secret, logger)

		rec := postEvent(t, h, adminEnvelope, map[string]string{SignatureHeader: Sign(secret, []byte(adminEnvelope))})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		logger, _ := logtest.NewNullLogger()
		eval := new(mockEvaluator)
		h := NewReceiver(eval, nil, secret, logger)

		rec := postEvent(t, h, adminEnvelope, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
	})

	t.Run("signature for other body rejected", func(t *testing.T) {
		logger, _ := logtest.NewNullLogger()
		eval := new(mockEvaluator)
		h := NewReceiver(eval, nil, secret, logger)

		rec := postEvent(t, h, adminEnvelope, map[string]string{SignatureHeader: Sign(secret, []byte("{}"))})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestReceiver_BodyTooLarge(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	h := NewReceiver(new(mockEvaluator), nil, "", logger)

	body := `{"data":{"uid":"` + strings.Repeat("x", maxBodyBytes) + `"}}`
	rec := postEvent(t, h, body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
