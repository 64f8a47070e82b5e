package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/otiai10/assignadmin/internal/ledger"
	"github.com/otiai10/assignadmin/internal/version"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	Evaluator     Evaluator
	Ledger        ledger.Ledger // nil means no deduplication
	SigningSecret string        // empty means unsigned deliveries are accepted
	Logger        logrus.FieldLogger
}

// HealthResponse is returned by /healthz
type HealthResponse struct {
	Status string `json:"status"`
	Hash   string `json:"hash"`
}

// NewRouter creates the receiver's HTTP handler with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	registerHealthRoute(mux)
	registerEventRoutes(mux, NewReceiver(cfg.Evaluator, cfg.Ledger, cfg.SigningSecret, logger))

	return Chain(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		JSONContentTypeMiddleware,
	)(mux)
}

// registerHealthRoute registers the liveness probe
func registerHealthRoute(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, HealthResponse{Status: "ok", Hash: version.CommitHash}, http.StatusOK)
	})
}

// registerEventRoutes registers the event delivery routes
func registerEventRoutes(mux *http.ServeMux, h *Receiver) {
	mux.HandleFunc("/events/user-created", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleUserCreated(w, r)
		default:
			writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
