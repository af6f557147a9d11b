// Package api exposes the HTTP trigger endpoints for the sync service.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/garminsync/internal/sync"
)

// Trigger requests a detached sync run.
type Trigger interface {
	Trigger(reason string) bool
}

// StateReader reads persisted sync state for the status endpoint.
type StateReader interface {
	GetState(ctx context.Context, key string) (string, bool, error)
}

// Handler coordinates HTTP requests with the sync worker.
type Handler struct {
	trigger       Trigger
	state         StateReader
	webhookSecret string
	partnerSecret string
	logger        *zap.Logger
	now           func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(trigger Trigger, state StateReader, webhookSecret, partnerSecret string, logger *zap.Logger) *Handler {
	return &Handler{
		trigger:       trigger,
		state:         state,
		webhookSecret: webhookSecret,
		partnerSecret: partnerSecret,
		logger:        logger,
		now:           time.Now,
	}
}

// Routes wires the endpoints onto a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/status", h.status)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/sync", h.triggerSync)
	r.Post("/ridewithgps-webhook", h.rideWithGPSWebhook)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type statusResponse struct {
	LastSync  string `json:"lastSync"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	lastSync := "Never"
	if value, found, err := h.state.GetState(r.Context(), sync.WatermarkStateKey); err != nil {
		h.logger.Error("status: could not read watermark", zap.Error(err))
	} else if found {
		lastSync = value
	}

	writeJSON(w, http.StatusOK, statusResponse{
		LastSync:  lastSync,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

type triggerResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// triggerSync verifies the shared-secret signature, detaches a sync run and
// acknowledges immediately without awaiting completion.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Webhook-Signature")
	// An empty configured secret disables the check.
	if h.webhookSecret != "" && !hmac.Equal([]byte(signature), []byte(h.webhookSecret)) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.logger.Info("webhook received, triggering background sync")
	h.trigger.Trigger("webhook")

	writeJSON(w, http.StatusAccepted, triggerResponse{
		Status:    "accepted",
		Message:   "Sync triggered in background",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

type rideWithGPSEvent struct {
	Type string `json:"type"`
}

// rideWithGPSWebhook verifies the HMAC-SHA256 body signature and triggers a
// sync only for new-or-updated-activity events.
func (h *Handler) rideWithGPSWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-RideWithGPS-Signature")
	if !h.validPartnerSignature(signature, body) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event rideWithGPSEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "activity_created", "activity_updated":
		h.logger.Info("ridewithgps webhook received, triggering sync", zap.String("event_type", event.Type))
		h.trigger.Trigger("ridewithgps")
	default:
		h.logger.Info("ridewithgps webhook ignored", zap.String("event_type", event.Type))
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) validPartnerSignature(signature string, body []byte) bool {
	if h.partnerSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.partnerSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
