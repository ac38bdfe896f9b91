// Package handlers holds the HTTP handlers for the SMS provider webhooks and
// the admin transcript endpoint.
package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidynest/selenas/internal/conversation"
	"github.com/tidynest/selenas/internal/messaging"
	"github.com/tidynest/selenas/internal/observability/metrics"
	"github.com/tidynest/selenas/pkg/logging"
)

// providerStatuses are the delivery states the SMS provider may report.
// Anything else is logged and dropped rather than written to storage.
var providerStatuses = map[string]struct{}{
	messaging.StatusQueued:    {},
	messaging.StatusSent:      {},
	messaging.StatusDelivered: {},
	messaging.StatusFailed:    {},
}

// InboundRouter is what the webhook needs from the conversation pipeline.
type InboundRouter interface {
	HandleInbound(ctx context.Context, in conversation.Inbound) error
}

// inboundPayload is the provider's inbound-message webhook body.
type inboundPayload struct {
	From             string    `json:"from"`
	Body             string    `json:"body"`
	ChannelMessageID string    `json:"channel_message_id"`
	Timestamp        time.Time `json:"timestamp"`
}

// statusPayload is the provider's delivery-status webhook body.
type statusPayload struct {
	ChannelMessageID string `json:"channel_message_id"`
	Status           string `json:"status"`
}

// StatusUpdater applies delivery-status callbacks.
type StatusUpdater interface {
	UpdateDeliveryStatus(ctx context.Context, channelMessageID, status string) error
}

// WebhookHandler serves the provider's inbound and status callbacks.
type WebhookHandler struct {
	router  InboundRouter
	updater StatusUpdater
	metrics *metrics.ConversationMetrics
	secret  string
	logger  *logging.Logger
}

func NewWebhookHandler(router InboundRouter, updater StatusUpdater, m *metrics.ConversationMetrics, secret string, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{router: router, updater: updater, metrics: m, secret: secret, logger: logger}
}

// Inbound handles POST /webhooks/sms/inbound.
func (h *WebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency("inbound", time.Since(start).Seconds())
	}()

	body, ok := h.readVerified(w, r)
	if !ok {
		return
	}

	var payload inboundPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.From == "" || payload.ChannelMessageID == "" {
		http.Error(w, "from and channel_message_id are required", http.StatusBadRequest)
		return
	}

	// Bound the whole pipeline, including the retrying send, well inside the
	// provider's webhook timeout.
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	err := h.router.HandleInbound(ctx, conversation.Inbound{
		Phone:            payload.From,
		Body:             payload.Body,
		ChannelMessageID: payload.ChannelMessageID,
		ReceivedAt:       payload.Timestamp,
	})
	if err != nil {
		h.logger.Error("inbound webhook processing failed", "error", err, "channel_message_id", payload.ChannelMessageID)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Status handles POST /webhooks/sms/status.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency("status", time.Since(start).Seconds())
	}()

	body, ok := h.readVerified(w, r)
	if !ok {
		return
	}

	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.ChannelMessageID == "" || payload.Status == "" {
		http.Error(w, "channel_message_id and status are required", http.StatusBadRequest)
		return
	}
	if _, ok := providerStatuses[payload.Status]; !ok {
		h.logger.Warn("ignoring unknown delivery status", "status", payload.Status, "channel_message_id", payload.ChannelMessageID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.updater.UpdateDeliveryStatus(r.Context(), payload.ChannelMessageID, payload.Status); err != nil {
		h.logger.Error("status update failed", "error", err, "channel_message_id", payload.ChannelMessageID)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveOutbound(payload.Status)
	w.WriteHeader(http.StatusOK)
}

// readVerified reads the body and, when a shared secret is configured,
// checks the hex HMAC-SHA256 signature header.
func (h *WebhookHandler) readVerified(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return nil, false
	}
	if h.secret == "" {
		return body, true
	}

	sig := r.Header.Get("X-Webhook-Signature")
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if sig == "" || !hmac.Equal([]byte(sig), []byte(expected)) {
		h.logger.Warn("webhook signature mismatch", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}
