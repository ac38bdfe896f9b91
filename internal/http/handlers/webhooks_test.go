package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidynest/selenas/internal/conversation"
	"github.com/tidynest/selenas/internal/messaging"
	"github.com/tidynest/selenas/pkg/logging"
)

type fakeRouter struct {
	received []conversation.Inbound
	err      error
}

func (f *fakeRouter) HandleInbound(_ context.Context, in conversation.Inbound) error {
	f.received = append(f.received, in)
	return f.err
}

type fakeUpdater struct {
	channelID string
	status    string
	err       error
}

func (f *fakeUpdater) UpdateDeliveryStatus(_ context.Context, channelMessageID, status string) error {
	f.channelID = channelMessageID
	f.status = status
	return f.err
}

func TestInboundWebhook(t *testing.T) {
	router := &fakeRouter{}
	h := NewWebhookHandler(router, &fakeUpdater{}, nil, "", logging.Default())

	body := []byte(`{"from":"+15551234567","body":"hi","channel_message_id":"m-1","timestamp":"2025-06-10T10:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Inbound(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, router.received, 1)
	assert.Equal(t, "+15551234567", router.received[0].Phone)
	assert.Equal(t, "m-1", router.received[0].ChannelMessageID)
}

func TestInboundWebhookRejectsMissingFields(t *testing.T) {
	h := NewWebhookHandler(&fakeRouter{}, &fakeUpdater{}, nil, "", logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound", bytes.NewReader([]byte(`{"body":"hi"}`)))
	rr := httptest.NewRecorder()
	h.Inbound(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInboundWebhookSurfacesProcessingErrors(t *testing.T) {
	h := NewWebhookHandler(&fakeRouter{err: errors.New("db down")}, &fakeUpdater{}, nil, "", logging.Default())

	body := []byte(`{"from":"+15551234567","body":"hi","channel_message_id":"m-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Inbound(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestInboundWebhookSignature(t *testing.T) {
	router := &fakeRouter{}
	h := NewWebhookHandler(router, &fakeUpdater{}, nil, "shh", logging.Default())

	body := []byte(`{"from":"+15551234567","body":"hi","channel_message_id":"m-1"}`)

	// No signature.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Inbound(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, router.received)

	// Valid signature.
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(body)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	rr = httptest.NewRecorder()
	h.Inbound(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, router.received, 1)
}

func TestStatusWebhook(t *testing.T) {
	updater := &fakeUpdater{}
	h := NewWebhookHandler(&fakeRouter{}, updater, nil, "", logging.Default())

	body := []byte(`{"channel_message_id":"out-1","status":"delivered"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/status", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "out-1", updater.channelID)
	assert.Equal(t, "delivered", updater.status)
}

func TestStatusWebhookIgnoresUnknownStatus(t *testing.T) {
	updater := &fakeUpdater{}
	h := NewWebhookHandler(&fakeRouter{}, updater, nil, "", logging.Default())

	body := []byte(`{"channel_message_id":"out-1","status":"carrier_violation"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/status", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, updater.status, "unknown statuses must not reach storage")
}

type fakeHistory struct {
	records []messaging.MessageRecord
	err     error
}

func (f *fakeHistory) History(_ context.Context, _ string, _ int) ([]messaging.MessageRecord, error) {
	return f.records, f.err
}

func TestAdminTranscript(t *testing.T) {
	history := &fakeHistory{records: []messaging.MessageRecord{
		{Direction: messaging.DirectionIn, Body: "hi", DeliveryStatus: messaging.StatusDelivered, CreatedAt: time.Now()},
		{Direction: messaging.DirectionOut, Body: "Good morning!", DeliveryStatus: messaging.StatusSent, CreatedAt: time.Now()},
	}}
	h := NewAdminHandler(history, "admin-token", logging.Default())

	r := chi.NewRouter()
	r.Get("/admin/conversations/{phone}", h.Transcript)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/+15551234567", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Good morning!")
	assert.Contains(t, rr.Body.String(), `"direction":"in"`)
}

func TestAdminTranscriptRequiresToken(t *testing.T) {
	h := NewAdminHandler(&fakeHistory{}, "admin-token", logging.Default())

	r := chi.NewRouter()
	r.Get("/admin/conversations/{phone}", h.Transcript)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/+15551234567", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
