package usace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
)

// Client implements domain.TelemetryProvider using the USACE data query service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a USACE data query client. timezone is used for queries
// that do not set their own.
func NewClient(baseURL, timezone string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		timezone: timezone,
		metrics:  metrics,
		logger:   logger,
	}
}

// Fetch requests the query's series and decodes the station-keyed payload.
func (c *Client) Fetch(ctx context.Context, q domain.TelemetryQuery) (domain.ProviderResponse, error) {
	params, err := c.params(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.TelemetryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.TelemetryRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("usace request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.TelemetryRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("usace API error: status %d: %s", resp.StatusCode, body)
	}

	var out domain.ProviderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.TelemetryRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		out = domain.ProviderResponse{}
	}

	c.metrics.TelemetryRequests.WithLabelValues("success").Inc()
	c.logger.Debug("usace fetch complete",
		"series", len(q.Series),
		"backward", FormatBackward(q.Backward),
		"stations", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

func (c *Client) params(q domain.TelemetryQuery) (url.Values, error) {
	if len(q.Series) == 0 {
		return nil, fmt.Errorf("usace query: no series requested")
	}
	if q.Backward <= 0 {
		return nil, fmt.Errorf("usace query: backward must be positive, got %s", q.Backward)
	}
	series, err := json.Marshal(q.Series)
	if err != nil {
		return nil, fmt.Errorf("encode series: %w", err)
	}

	tz := q.Timezone
	if tz == "" {
		tz = c.timezone
	}
	return url.Values{
		"timezone": {tz},
		"backward": {FormatBackward(q.Backward)},
		"query":    {string(series)},
	}, nil
}

// FormatBackward renders a lookback as the provider expects: "7d" for whole
// days, otherwise whole hours rounded up ("2h").
func FormatBackward(d time.Duration) string {
	const day = 24 * time.Hour
	if d >= day && d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	hours := d / time.Hour
	if d%time.Hour != 0 {
		hours++
	}
	return fmt.Sprintf("%dh", hours)
}
