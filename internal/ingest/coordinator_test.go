package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"example.com/backstage/services/orderboard/internal/metrics"
	"example.com/backstage/services/orderboard/internal/store"
	"example.com/backstage/services/orderboard/internal/tracing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSnapshotFetcher is a mock implementation of SnapshotFetcher
type MockSnapshotFetcher struct {
	mock.Mock
}

func (m *MockSnapshotFetcher) FetchSnapshot(ctx context.Context) ([]json.RawMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func newTestCoordinator(fetcher SnapshotFetcher) (*Coordinator, *store.Store, *metrics.Metrics) {
	st := store.New()
	m := metrics.NewMetrics()
	c := NewCoordinator(fetcher, st, NewNormalizerWithClock(testClock), m, tracing.NewNoopTracer())
	return c, st, m
}

func TestLoadSnapshotIngestsBatch(t *testing.T) {
	fetcher := new(MockSnapshotFetcher)
	fetcher.On("FetchSnapshot", mock.Anything).Return([]json.RawMessage{
		json.RawMessage(`{"id": 1, "nombre_cliente": "Marta", "total": 30}`),
		json.RawMessage(`{"id": 2, "nombre_cliente": "Luis", "total": 10}`),
	}, nil)

	c, st, m := newTestCoordinator(fetcher)

	err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.Count())
	require.Equal(t, int64(2), m.GetCounters()["snapshot_orders_loaded"])
	require.True(t, m.GetHealthChecks()["snapshot"])
	fetcher.AssertExpectations(t)
}

func TestLoadSnapshotSkipsMalformedRecords(t *testing.T) {
	fetcher := new(MockSnapshotFetcher)
	fetcher.On("FetchSnapshot", mock.Anything).Return([]json.RawMessage{
		json.RawMessage(`{"id": 1, "nombre_cliente": "Marta"}`),
		json.RawMessage(`{"id": 2, "items": "{broken"}`),
		json.RawMessage(`{"id": 3, "nombre_cliente": "Ana"}`),
	}, nil)

	c, st, m := newTestCoordinator(fetcher)

	// One rotten record must not poison its siblings.
	err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.Count())
	require.Equal(t, int64(1), m.GetCounters()["normalization_errors"])

	_, ok := st.Get(2)
	require.False(t, ok)
}

func TestLoadSnapshotSkipsUndecodableIDs(t *testing.T) {
	fetcher := new(MockSnapshotFetcher)
	fetcher.On("FetchSnapshot", mock.Anything).Return([]json.RawMessage{
		json.RawMessage(`{"id": 1, "nombre_cliente": "Marta"}`),
		json.RawMessage(`{"id": "abc", "nombre_cliente": "Fantasma"}`),
		json.RawMessage(`{"id": 1.5, "nombre_cliente": "Medio"}`),
		json.RawMessage(`{"id": 3, "nombre_cliente": "Ana"}`),
	}, nil)

	c, st, m := newTestCoordinator(fetcher)

	err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.Count())
	require.Equal(t, int64(2), m.GetCounters()["normalization_errors"])
	require.Equal(t, int64(2), m.GetCounters()["snapshot_orders_loaded"])

	_, ok := st.Get(1)
	require.True(t, ok)
	_, ok = st.Get(3)
	require.True(t, ok)
}

func TestLoadSnapshotFetchFailure(t *testing.T) {
	fetcher := new(MockSnapshotFetcher)
	fetcher.On("FetchSnapshot", mock.Anything).Return(nil, errors.New("upstream down"))

	c, st, m := newTestCoordinator(fetcher)

	err := c.LoadSnapshot(context.Background())
	require.Error(t, err)

	var loadErr *SnapshotLoadError
	require.ErrorAs(t, err, &loadErr)
	require.Zero(t, st.Count())
	require.False(t, m.GetHealthChecks()["snapshot"])
}

func TestHandlePushInsertsThenUpdates(t *testing.T) {
	c, st, m := newTestCoordinator(new(MockSnapshotFetcher))
	ctx := context.Background()

	require.NoError(t, c.HandlePush(ctx, []byte(`{"id": 7, "nombre_cliente": "Marta", "total": 30}`)))
	require.Equal(t, 1, st.Count())

	// Redelivery of the same id updates the card instead of duplicating it.
	require.NoError(t, c.HandlePush(ctx, []byte(`{"id": 7, "nombre_cliente": "Marta G.", "total": 35}`)))
	require.Equal(t, 1, st.Count())

	got, _ := st.Get(7)
	require.Equal(t, "Marta G.", got.Customer)
	require.Equal(t, 35.0, got.Total)

	require.Equal(t, int64(1), m.GetCounters()["push_orders_inserted"])
	require.Equal(t, int64(1), m.GetCounters()["push_orders_updated"])
}

func TestHandlePushMalformedBody(t *testing.T) {
	c, st, m := newTestCoordinator(new(MockSnapshotFetcher))

	err := c.HandlePush(context.Background(), []byte(`{not json`))
	require.Error(t, err)

	var normErr *NormalizationError
	require.ErrorAs(t, err, &normErr)
	require.Zero(t, st.Count())
	require.Equal(t, int64(1), m.GetCounters()["normalization_errors"])
}

func TestHandlePushAfterClose(t *testing.T) {
	c, st, _ := newTestCoordinator(new(MockSnapshotFetcher))
	c.Close()

	err := c.HandlePush(context.Background(), []byte(`{"id": 7, "nombre_cliente": "Marta"}`))
	require.NoError(t, err)
	require.Zero(t, st.Count())
}
