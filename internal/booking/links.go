// Package booking issues personalized booking-form links for qualified
// prospects.
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// LinkRequest carries the qualified answers the form should be prefilled with.
type LinkRequest struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	Phone          string            `json:"phone"`
	Fields         map[string]string `json:"fields"`
}

// LinkIssuer produces a booking-form URL for a qualified prospect.
type LinkIssuer interface {
	IssueLink(ctx context.Context, req LinkRequest) (string, error)
}

// HTTPIssuer asks the booking service to mint a prefilled form link.
type HTTPIssuer struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewHTTPIssuer(endpoint, token string) *HTTPIssuer {
	return &HTTPIssuer{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ LinkIssuer = (*HTTPIssuer)(nil)

func (i *HTTPIssuer) IssueLink(ctx context.Context, linkReq LinkRequest) (string, error) {
	payload, err := json.Marshal(linkReq)
	if err != nil {
		return "", fmt.Errorf("booking: marshal link request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("booking: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+i.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("booking: issue link: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("booking: issue link: status %d", resp.StatusCode)
	}
	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.URL == "" {
		return "", fmt.Errorf("booking: issue link: missing url in response")
	}
	return parsed.URL, nil
}

// StaticIssuer builds the link locally by appending the prefill fields as
// query parameters. Used when no booking service endpoint is configured.
type StaticIssuer struct {
	baseURL string
}

func NewStaticIssuer(baseURL string) *StaticIssuer {
	return &StaticIssuer{baseURL: baseURL}
}

var _ LinkIssuer = (*StaticIssuer)(nil)

func (i *StaticIssuer) IssueLink(_ context.Context, req LinkRequest) (string, error) {
	u, err := url.Parse(i.baseURL)
	if err != nil {
		return "", fmt.Errorf("booking: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("ref", req.ConversationID.String())
	for k, v := range req.Fields {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
