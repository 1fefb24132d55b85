package ingest

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"example.com/backstage/services/orderboard/internal/metrics"
	"example.com/backstage/services/orderboard/internal/models"
	"example.com/backstage/services/orderboard/internal/store"
	"example.com/backstage/services/orderboard/internal/tracing"

	"github.com/rs/zerolog/log"
)

// SnapshotFetcher is the upstream collaborator that serves the one-shot
// bulk read of all currently known orders. Records arrive undecoded so
// each one is decoded and skipped individually.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) ([]json.RawMessage, error)
}

// Coordinator routes both order sources through the normalizer into the
// store: the one-shot startup snapshot and the continuous push feed.
// Id-keyed upserts make the final store state independent of how snapshot
// completion interleaves with push arrivals.
type Coordinator struct {
	fetcher    SnapshotFetcher
	store      *store.Store
	normalizer *Normalizer
	metrics    *metrics.Metrics
	tracer     tracing.Tracer

	closed atomic.Bool
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(
	fetcher SnapshotFetcher,
	st *store.Store,
	normalizer *Normalizer,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *Coordinator {
	return &Coordinator{
		fetcher:    fetcher,
		store:      st,
		normalizer: normalizer,
		metrics:    m,
		tracer:     tracer,
	}
}

// LoadSnapshot runs the one-shot snapshot load. Malformed records are
// reported and skipped; the rest of the batch is still ingested. A fetch
// failure is returned as a SnapshotLoadError, but the caller is expected
// to start the push subscription regardless.
func (c *Coordinator) LoadSnapshot(ctx context.Context) error {
	txn := c.tracer.StartTransaction("snapshot-load")
	defer c.tracer.EndTransaction(txn)

	records, err := c.fetcher.FetchSnapshot(ctx)
	if err != nil {
		c.metrics.RecordError("snapshot_load")
		c.metrics.SetHealth("snapshot", false)
		c.tracer.RecordError(txn, err)
		return &SnapshotLoadError{Cause: err}
	}

	var loaded, skipped int
	for _, record := range records {
		if c.closed.Load() {
			return nil
		}
		order, err := c.decode(record)
		if err != nil {
			skipped++
			c.metrics.IncrementCounter("normalization_errors")
			log.Error().Err(err).Msg("Skipping malformed snapshot record")
			continue
		}
		c.store.Upsert(order)
		loaded++
	}

	c.metrics.IncrementCounterBy("snapshot_orders_loaded", int64(loaded))
	c.metrics.RecordSuccess("snapshot_load")
	c.metrics.SetHealth("snapshot", true)
	c.tracer.AddAttribute(txn, "orders_loaded", loaded)

	log.Info().Int("loaded", loaded).Int("skipped", skipped).
		Msg("Snapshot ingested")
	return nil
}

// HandlePush ingests one push-delivered order payload. A payload whose id
// is already in the store becomes an update, never a duplicate card. The
// returned error is reportable; the push subscription must survive it.
func (c *Coordinator) HandlePush(ctx context.Context, body []byte) error {
	if c.closed.Load() {
		return nil
	}

	txn := c.tracer.StartTransaction("push-order")
	defer c.tracer.EndTransaction(txn)

	order, err := c.decode(body)
	if err != nil {
		c.metrics.IncrementCounter("normalization_errors")
		c.tracer.RecordError(txn, err)
		return err
	}

	if c.closed.Load() {
		return nil
	}

	inserted := c.store.Upsert(order)
	if inserted {
		c.metrics.IncrementCounter("push_orders_inserted")
	} else {
		c.metrics.IncrementCounter("push_orders_updated")
	}
	c.tracer.AddAttribute(txn, "order_id", order.ID)
	c.tracer.AddAttribute(txn, "inserted", inserted)

	log.Info().Int64("order_id", order.ID).Bool("inserted", inserted).
		Msg("Push order ingested")
	return nil
}

// decode unmarshals one raw record and normalizes it. Both intake paths
// funnel through here so snapshot records and push payloads degrade the
// same way: the single record is lost, nothing else.
func (c *Coordinator) decode(body []byte) (models.Order, error) {
	var raw models.RawOrderPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Order{}, &NormalizationError{OrderID: int64(raw.ID), Cause: err}
	}
	return c.normalizer.Normalize(raw)
}

// Close marks the coordinator as torn down. In-flight completions that
// resume afterwards become no-ops instead of mutating a dead store.
func (c *Coordinator) Close() {
	c.closed.Store(true)
}
