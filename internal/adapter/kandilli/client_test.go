package kandilli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(endpoint string) *Client {
	return NewClient(endpoint, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Fetch_Success(t *testing.T) {
	fixture, err := os.ReadFile("../../domain/testdata/kandilli_live.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/deprem/kandilli/live", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	c := testClient(srv.URL + "/deprem/kandilli/live")
	records, err := c.Fetch(context.Background(), 100)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "MARMARA DENIZI", records[0].Title)
	assert.Equal(t, domain.TierSevere, records[0].Tier())
}

func TestClient_Fetch_PreservesExistingQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tr", r.URL.Query().Get("lang"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"status":true,"result":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL + "/live?lang=tr&limit=999")
	records, err := c.Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), 10)
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Fetch_StatusFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":false,"httpStatus":503,"desc":"maintenance"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), 10)
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
	assert.NotErrorIs(t, err, domain.ErrTransport)
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := testClient(endpoint).Fetch(context.Background(), 10)
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Fetch(context.Background(), 10)
	require.ErrorIs(t, err, domain.ErrTransport)
}
