package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tidynest/selenas/internal/messaging"
	"github.com/tidynest/selenas/pkg/logging"
)

// HistoryReader loads the stored transcript for a phone.
type HistoryReader interface {
	History(ctx context.Context, phone string, limit int) ([]messaging.MessageRecord, error)
}

// AdminHandler serves the token-protected transcript endpoint.
type AdminHandler struct {
	history HistoryReader
	token   string
	logger  *logging.Logger
}

func NewAdminHandler(history HistoryReader, token string, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{history: history, token: token, logger: logger}
}

type transcriptMessage struct {
	Direction      string    `json:"direction"`
	Body           string    `json:"body"`
	DeliveryStatus string    `json:"delivery_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Transcript handles GET /admin/conversations/{phone}.
func (h *AdminHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	if h.token == "" || r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	phone := messaging.NormalizeE164(chi.URLParam(r, "phone"))
	if phone == "" {
		http.Error(w, "invalid phone", http.StatusBadRequest)
		return
	}

	records, err := h.history.History(r.Context(), phone, 200)
	if err != nil {
		h.logger.Error("transcript load failed", "error", err, "phone", phone)
		http.Error(w, "load failed", http.StatusInternalServerError)
		return
	}

	out := make([]transcriptMessage, 0, len(records))
	for _, rec := range records {
		out = append(out, transcriptMessage{
			Direction:      rec.Direction,
			Body:           rec.Body,
			DeliveryStatus: rec.DeliveryStatus,
			CreatedAt:      rec.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"phone":    phone,
		"messages": out,
	})
}
