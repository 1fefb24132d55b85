package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"example.com/backstage/services/orderboard/internal/models"

	"github.com/stretchr/testify/require"
)

var testClock = func() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func rawPayload(t *testing.T, body string) models.RawOrderPayload {
	t.Helper()
	var raw models.RawOrderPayload
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestNormalizeStructuredPayload(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	raw := rawPayload(t, `{
		"id": 7,
		"nombre_cliente": "Marta",
		"horario": "20:30",
		"metodo_pago": "efectivo",
		"items": [
			{"nombre": "Muzzarella", "cantidad": 2, "precioUnitario": 9.5, "precioTotal": 19},
			{"nombre": "Faina", "precio": 3}
		],
		"detalles": "sin sal",
		"total": 22,
		"delivery": true,
		"is_new": true,
		"direccion": "Av. Siempreviva 742",
		"is_done": false,
		"created_at": "2024-05-31T19:45:00Z"
	}`)

	order, err := n.Normalize(raw)
	require.NoError(t, err)

	require.Equal(t, int64(7), order.ID)
	require.Equal(t, "Marta", order.Customer)
	require.Equal(t, "20:30", order.ScheduledTime)
	require.Equal(t, "efectivo", order.PaymentMethod)
	require.Equal(t, "sin sal", order.Details)
	require.Equal(t, 22.0, order.Total)
	require.Equal(t, models.KindDelivery, order.Kind)
	require.Equal(t, "Av. Siempreviva 742", order.Address)
	require.True(t, order.IsUnread)
	require.False(t, order.IsDone)
	require.True(t, order.UnreadExplicit)
	require.True(t, order.DoneExplicit)
	require.Equal(t, time.Date(2024, 5, 31, 19, 45, 0, 0, time.UTC), order.CreatedAt)

	require.Len(t, order.Items, 2)
	require.Equal(t, models.OrderItem{Name: "Muzzarella", Quantity: 2, UnitPrice: 9.5, LineTotal: 19}, order.Items[0])
	// Legacy single "precio" field acts as the unit price.
	require.Equal(t, models.OrderItem{Name: "Faina", Quantity: 1, UnitPrice: 3, LineTotal: 3}, order.Items[1])
}

func TestNormalizeStringEncodedItems(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	raw := rawPayload(t, `{
		"id": "12",
		"nombre_cliente": "Luis",
		"items": "[{\"nombre\": \"Napolitana\", \"cantidad\": 3, \"precioUnitario\": 10}]",
		"total": "30.50",
		"delivery": false
	}`)

	order, err := n.Normalize(raw)
	require.NoError(t, err)

	require.Equal(t, int64(12), order.ID)
	require.Equal(t, models.KindPickup, order.Kind)
	require.Len(t, order.Items, 1)
	require.Equal(t, models.OrderItem{Name: "Napolitana", Quantity: 3, UnitPrice: 10, LineTotal: 30}, order.Items[0])
	require.Equal(t, 30.50, order.Total)
	require.Empty(t, order.TotalDisplay)
}

func TestNormalizeLegacyBareNameItems(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	raw := rawPayload(t, `{
		"id": 3,
		"nombre_cliente": "Ana",
		"items": ["Muzzarella", "Faina"],
		"total": "a convenir",
		"delivery": true,
		"direccion": "Calle 12"
	}`)

	order, err := n.Normalize(raw)
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	require.Equal(t, models.OrderItem{Name: "Muzzarella", Quantity: 1}, order.Items[0])
	require.Equal(t, models.OrderItem{Name: "Faina", Quantity: 1}, order.Items[1])

	// Non-numeric totals coerce to zero but keep the raw text for display.
	require.Equal(t, 0.0, order.Total)
	require.Equal(t, "a convenir", order.TotalDisplay)
}

func TestNormalizeDefaults(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	order, err := n.Normalize(rawPayload(t, `{"id": 1, "nombre_cliente": "Pepe"}`))
	require.NoError(t, err)

	require.Empty(t, order.Items)
	require.Equal(t, 0.0, order.Total)
	require.Equal(t, models.KindPickup, order.Kind)
	require.True(t, order.IsUnread)
	require.False(t, order.IsDone)
	require.False(t, order.UnreadExplicit)
	require.False(t, order.DoneExplicit)
	// Without any timestamp the ingestion clock provides the sort key.
	require.Equal(t, testClock(), order.CreatedAt)
}

func TestNormalizeAddressOnlyForDelivery(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	order, err := n.Normalize(rawPayload(t, `{
		"id": 4, "delivery": false, "direccion": "should be dropped"
	}`))
	require.NoError(t, err)
	require.Empty(t, order.Address)
}

func TestNormalizeCreatedAtFallsBackToSchedule(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	order, err := n.Normalize(rawPayload(t, `{"id": 5, "horario": "20:30"}`))
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 1, 20, 30, 0, 0, time.UTC), order.CreatedAt)
}

func TestNormalizeMalformedItemsFailsLoudly(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	_, err := n.Normalize(rawPayload(t, `{
		"id": 9, "nombre_cliente": "Caro", "items": "{not json"
	}`))
	require.Error(t, err)

	var normErr *NormalizationError
	require.ErrorAs(t, err, &normErr)
	require.Equal(t, int64(9), normErr.OrderID)
}

func TestNormalizeNegativeTotalCoercesToZero(t *testing.T) {
	n := NewNormalizerWithClock(testClock)

	order, err := n.Normalize(rawPayload(t, `{"id": 6, "total": -12}`))
	require.NoError(t, err)
	require.Equal(t, 0.0, order.Total)
}
