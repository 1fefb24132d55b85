package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/backstage/services/orderboard/config"
	"example.com/backstage/services/orderboard/internal/cache"
	"example.com/backstage/services/orderboard/internal/metrics"
	"example.com/backstage/services/orderboard/internal/tracing"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client talks to the upstream order API: the snapshot read and the
// status confirmation endpoints. Paths follow the upstream's contract
// (GET /pedidos, PUT /pedidos/{id}/markAsRead, PUT /pedidos/{id}/markAsDone).
type Client struct {
	baseURL     string
	httpClient  *http.Client
	cache       *cache.RedisCache
	snapshotTTL time.Duration
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
}

// NewClient creates an upstream API client. The cache may be nil or
// disabled; it only serves as a last-known-good snapshot fallback.
func NewClient(
	cfg config.UpstreamConfig,
	snapshotCache *cache.RedisCache,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		cache:       snapshotCache,
		snapshotTTL: cfg.SnapshotTTL,
		metrics:     m,
		tracer:      tracer,
	}
}

// FetchSnapshot reads all currently known orders as undecoded records.
// Records are decoded one at a time downstream, so a single malformed
// record costs itself, not the batch. On success the raw records are
// cached; on failure a cached snapshot is served instead so the board
// starts with stale data rather than empty, and the staleness is logged
// and counted.
func (c *Client) FetchSnapshot(ctx context.Context) ([]json.RawMessage, error) {
	txn := c.tracer.StartTransaction("upstream-snapshot")
	defer c.tracer.EndTransaction(txn)

	url := c.baseURL + "/pedidos"
	seg := c.tracer.StartExternalSegment(txn, &newrelic.ExternalSegment{URL: url})
	body, err := c.get(ctx, url)
	seg.End()

	if err != nil {
		c.tracer.RecordError(txn, err)
		return c.snapshotFromCache(ctx, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		err = errors.Wrap(err, "decode snapshot body")
		c.tracer.RecordError(txn, err)
		return c.snapshotFromCache(ctx, err)
	}

	if cacheErr := c.cache.Set(ctx, cache.SnapshotCacheKey(), records, c.snapshotTTL); cacheErr != nil {
		log.Warn().Err(cacheErr).Msg("Failed to cache snapshot")
	}

	return records, nil
}

// snapshotFromCache serves the last good snapshot when the upstream is
// unreachable. The original fetch error is returned when the cache has
// nothing either.
func (c *Client) snapshotFromCache(ctx context.Context, fetchErr error) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := c.cache.Get(ctx, cache.SnapshotCacheKey(), &records); err != nil {
		return nil, fetchErr
	}

	c.metrics.IncrementCounter("snapshot_cache_fallbacks")
	log.Warn().Err(fetchErr).Int("orders", len(records)).
		Msg("Upstream snapshot failed, serving cached snapshot")
	return records, nil
}

// ConfirmRead asks the upstream to mark the order as read.
func (c *Client) ConfirmRead(ctx context.Context, id int64) error {
	return c.put(ctx, fmt.Sprintf("%s/pedidos/%d/markAsRead", c.baseURL, id))
}

// ConfirmDone asks the upstream to mark the order as completed.
func (c *Client) ConfirmDone(ctx context.Context, id int64) error {
	return c.put(ctx, fmt.Sprintf("%s/pedidos/%d/markAsDone", c.baseURL, id))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response of GET %s", url)
	}
	return body, nil
}

func (c *Client) put(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "PUT %s", url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("PUT %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}
