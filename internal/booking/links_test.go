package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPIssuer(t *testing.T) {
	convID := uuid.New()
	var got LinkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"url":"https://book.tidynest.example/f/abc123"}`))
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "tok")
	link, err := issuer.IssueLink(context.Background(), LinkRequest{
		ConversationID: convID,
		Phone:          "+15551234567",
		Fields: map[string]string{
			"area":      "Tribeca",
			"service":   "deep",
			"bedrooms":  "2",
			"bathrooms": "1",
			"pricing":   "B",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://book.tidynest.example/f/abc123", link)
	assert.Equal(t, convID, got.ConversationID)
	assert.Equal(t, "Tribeca", got.Fields["area"])
}

func TestHTTPIssuerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "tok")
	_, err := issuer.IssueLink(context.Background(), LinkRequest{ConversationID: uuid.New()})
	assert.Error(t, err)
}

func TestStaticIssuer(t *testing.T) {
	convID := uuid.New()
	issuer := NewStaticIssuer("https://book.tidynest.example/start")
	link, err := issuer.IssueLink(context.Background(), LinkRequest{
		ConversationID: convID,
		Fields:         map[string]string{"area": "Tribeca", "service": "deep"},
	})
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, convID.String(), q.Get("ref"))
	assert.Equal(t, "Tribeca", q.Get("area"))
	assert.Equal(t, "deep", q.Get("service"))
}
