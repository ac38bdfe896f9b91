package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidynest/selenas/pkg/logging"
)

// Sender dispatches one outbound SMS and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// ErrPermanent marks validation-class send failures (malformed recipient,
// permanently undeliverable). These are never retried.
var ErrPermanent = errors.New("messaging: permanent send failure")

// IsPermanent reports whether the send failure should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// HTTPSender posts SMS messages to the provider's REST API, retrying
// transient failures in-call with exponential backoff (1s/2s/4s by default).
type HTTPSender struct {
	apiURL      string
	apiKey      string
	from        string
	maxAttempts int
	baseDelay   time.Duration
	httpClient  *http.Client
	logger      *logging.Logger
	sleep       func(time.Duration)
}

func NewHTTPSender(apiURL, apiKey, from string, logger *logging.Logger) *HTTPSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPSender{
		apiURL:      apiURL,
		apiKey:      apiKey,
		from:        from,
		maxAttempts: 3,
		baseDelay:   time.Second,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		sleep:  time.Sleep,
	}
}

func (s *HTTPSender) WithMaxAttempts(n int) *HTTPSender {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

func (s *HTTPSender) WithBaseDelay(d time.Duration) *HTTPSender {
	if d > 0 {
		s.baseDelay = d
	}
	return s
}

var _ Sender = (*HTTPSender)(nil)

// Send dispatches a single SMS, retrying transient failures. Validation
// failures (4xx) return an error wrapping ErrPermanent immediately.
func (s *HTTPSender) Send(ctx context.Context, to, body string) (string, error) {
	if s.apiKey == "" {
		return "", errors.New("messaging: api key missing")
	}
	if to == "" {
		return "", fmt.Errorf("%w: to required", ErrPermanent)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: body required", ErrPermanent)
	}

	payload, err := json.Marshal(map[string]string{
		"from": s.from,
		"to":   to,
		"text": body,
	})
	if err != nil {
		return "", fmt.Errorf("messaging: marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		id, err := s.post(ctx, payload)
		if err == nil {
			s.logger.Info("sms sent", "to", to, "channel_message_id", id, "attempt", attempt)
			return id, nil
		}
		if IsPermanent(err) {
			return "", err
		}
		lastErr = err
		if attempt < s.maxAttempts {
			s.sleep(s.baseDelay << (attempt - 1))
		}
	}
	s.logger.Error("sms send exhausted retries", "error", lastErr, "to", to)
	return "", lastErr
}

func (s *HTTPSender) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("messaging: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messaging: send request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Data.ID == "" {
			return "", fmt.Errorf("messaging: provider response missing message id")
		}
		return parsed.Data.ID, nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: status %d: %s", ErrPermanent, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return "", fmt.Errorf("messaging: send failed: status %d", resp.StatusCode)
}
