package kandilli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// maxBodyBytes bounds how much of a response is read. A limit=1000 response
// is well under 1 MiB.
const maxBodyBytes = 8 << 20

// Client fetches the live earthquake list from a Kandilli-compatible endpoint.
// It implements feed.Source.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client. The timeout bounds each request so a hung
// upstream cannot keep a fetch in flight indefinitely.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch requests up to limit records. Network failures and non-2xx statuses
// wrap domain.ErrTransport; shape problems wrap domain.ErrMalformedPayload.
func (c *Client) Fetch(ctx context.Context, limit int) ([]domain.EarthquakeRecord, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTransport, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrTransport, err)
	}

	records, err := domain.ParseFeedResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("feed fetched", "records", len(records), "limit", limit)
	return records, nil
}
