package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/api/middleware"
	"github.com/jokr/taaskly/internal/command"
	"github.com/jokr/taaskly/internal/config"
	"github.com/jokr/taaskly/internal/graph"
	"github.com/jokr/taaskly/internal/metrics"
	"github.com/jokr/taaskly/internal/store"
)

// Sender is the slice of the Graph client the webhook pipeline calls
// directly. *graph.Client satisfies it; tests substitute a recorder.
type Sender interface {
	PostText(ctx context.Context, token, target, text string) (*graph.SendResponse, error)
}

// SeenStore remembers which delivery ids were already processed.
// *store.RedisStore satisfies it; tests substitute an in-memory map.
type SeenStore interface {
	SeenDelivery(ctx context.Context, mid string) bool
	Ping(ctx context.Context) error
}

// Handler contains shared dependencies for all webhook endpoints.
type Handler struct {
	cfg      *config.Config
	store    store.DataStore
	seen     SeenStore
	graph    Sender
	resolver *graph.TokenResolver
	commands *command.Registry
	logger   zerolog.Logger
}

// NewHandler creates a new Handler. store and seen may be nil: without
// a database, lookups behave as "not found"; without Redis, delivery
// dedup is disabled.
func NewHandler(cfg *config.Config, dataStore store.DataStore, seen SeenStore, sender Sender, resolver *graph.TokenResolver, commands *command.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    dataStore,
		seen:     seen,
		graph:    sender,
		resolver: resolver,
		commands: commands,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// fail maps pipeline errors onto the protocol taxonomy.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var badReq *BadRequestError
	if errors.As(err, &badReq) {
		h.Error(w, http.StatusBadRequest, badReq.Message)
		return
	}
	h.logger.Error().Err(err).Msg("webhook handler failed")
	h.Error(w, http.StatusInternalServerError, "internal error")
}

// record persists the callback for audit, fire-and-forget. It runs on
// a detached context before any validation gating so operators can
// inspect malformed or unauthorized deliveries; persistence errors are
// logged, never propagated.
func (h *Handler) record(r *http.Request, body []byte) {
	if h.store == nil {
		return
	}
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	path := r.URL.Path

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := h.store.CreateCallback(ctx, path, headers, body); err != nil {
			h.logger.Warn().Err(err).Str("path", path).Msg("failed to record callback")
			return
		}
		metrics.CallbacksRecorded.Inc()
	}()
}

// gate rejects deliveries that failed signature verification, when
// enforcement is enabled. Recording has already happened by the time
// this runs.
func (h *Handler) gate(ctx context.Context) error {
	if middleware.XHubValid(ctx) {
		return nil
	}
	h.logger.Warn().Msg("missing or invalid x-hub-signature")
	if h.cfg.ValidateXHub {
		return badRequest("Invalid x-hub-signature.")
	}
	return nil
}

// readBody drains the (middleware-restored) request body.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// requestLogger derives a correlation-scoped logger for one delivery.
func (h *Handler) requestLogger() zerolog.Logger {
	return h.logger.With().Str("delivery_id", ulid.Make().String()).Logger()
}

// VerifyChallenge answers the platform's subscription-verification
// handshake. Idempotent and side-effect-free: the literal challenge
// echoes back on a token match, anything else is a 400.
func (h *Handler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	mode := params.Get("hub.mode")
	challenge := params.Get("hub.challenge")
	verifyToken := params.Get("hub.verify_token")

	if mode == "" || challenge == "" || verifyToken == "" {
		h.fail(w, badRequest("Invalid verification request."))
		return
	}
	if verifyToken != h.cfg.VerifyToken {
		h.fail(w, badRequest("Invalid verify token."))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// MessageCallback ingests messaging webhooks. Once past shape and
// signature gating the platform always gets its 200 immediately; the
// event is handled on a detached context and outbound failures stay
// invisible to the platform (no retries on our side).
func (h *Handler) MessageCallback(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.record(r, body)

	if err := h.gate(r.Context()); err != nil {
		h.fail(w, err)
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.fail(w, errMalformatted())
		return
	}
	event, err := ReadMessaging(&env)
	if err != nil {
		h.fail(w, err)
		return
	}

	// Ack fast: respond before any downstream work.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))

	host := r.Host
	logger := h.requestLogger()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.handleMessagingEvent(ctx, logger, event, host, "")
	}()
}

// Health reports liveness of the handler's collaborators.

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.store != nil {
		start := time.Now()
		if err := h.store.Ping(ctx); err != nil {
			checks["database"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["database"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	} else {
		checks["database"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	if h.seen != nil {
		start := time.Now()
		if err := h.seen.Ping(ctx); err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["redis"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// PurgeCallbacks is the operator action that empties the audit trail.
// Guarded by the configured admin user id.
func (h *Handler) PurgeCallbacks(w http.ResponseWriter, r *http.Request) {
	if h.cfg.AdminUserID == "" || r.Header.Get("X-Admin-User-ID") != h.cfg.AdminUserID {
		h.Error(w, http.StatusForbidden, "admin access required")
		return
	}
	if h.store == nil {
		h.Error(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	purged, err := h.store.PurgeCallbacks(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info().Int64("purged", purged).Msg("callback audit trail purged")
	h.JSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
