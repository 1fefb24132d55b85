package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/orderboard/internal/models"

	"github.com/pkg/errors"
)

// Layouts seen in upstream created_at and horario values, most specific
// first. Time-only values are anchored to the ingestion day.
var (
	timestampLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	clockLayouts = []string{
		"15:04:05",
		"15:04",
		"3:04 PM",
		"3:04PM",
	}
)

// Normalizer converts raw upstream payloads of either observed shape into
// canonical orders. It never fails on malformed scalar fields; only an
// undecodable items payload is a reportable error.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock creates a normalizer with an injected clock.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize converts one raw payload into the canonical order record.
// Missing or invalid numeric fields coerce to zero, missing booleans to
// their defaults (unread, not done). An items payload that cannot be
// decoded returns a NormalizationError and no order.
func (n *Normalizer) Normalize(raw models.RawOrderPayload) (models.Order, error) {
	items, err := decodeItems(raw.Items)
	if err != nil {
		return models.Order{}, &NormalizationError{OrderID: int64(raw.ID), Cause: err}
	}

	total, totalDisplay := decodeTotal(raw.Total)

	kind := models.KindPickup
	if raw.Delivery {
		kind = models.KindDelivery
	}

	address := ""
	if kind == models.KindDelivery {
		address = raw.Address
	}

	order := models.Order{
		ID:            int64(raw.ID),
		Customer:      raw.Customer,
		ScheduledTime: raw.Schedule,
		PaymentMethod: raw.Payment,
		Items:         items,
		Details:       raw.Details,
		Total:         total,
		TotalDisplay:  totalDisplay,
		Kind:          kind,
		Address:       address,
		IsUnread:      true,
		IsDone:        false,
		CreatedAt:     n.decodeCreatedAt(raw.CreatedAt, raw.Schedule),
	}

	if raw.IsNew != nil {
		order.IsUnread = *raw.IsNew
		order.UnreadExplicit = true
	}
	if raw.IsDone != nil {
		order.IsDone = *raw.IsDone
		order.DoneExplicit = true
	}

	return order, nil
}

// decodeItems accepts the three observed item encodings: a structured
// array, an array of bare name strings, or a JSON string wrapping either.
func decodeItems(raw json.RawMessage) ([]models.OrderItem, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []models.OrderItem{}, nil
	}

	// String-wrapped form: the array arrives JSON-encoded inside a string.
	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return nil, errors.Wrap(err, "items string field")
		}
		data = bytes.TrimSpace([]byte(encoded))
		if len(data) == 0 {
			return []models.OrderItem{}, nil
		}
	}

	if data[0] != '[' {
		return nil, errors.Errorf("items is neither an array nor an encoded array: %.40s", data)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, errors.Wrap(err, "items array")
	}

	items := make([]models.OrderItem, 0, len(elements))
	for i, element := range elements {
		item, err := decodeItem(element)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(element json.RawMessage) (models.OrderItem, error) {
	element = bytes.TrimSpace(element)
	if len(element) == 0 {
		return models.OrderItem{}, errors.New("empty item")
	}

	// Legacy shape: a bare name string.
	if element[0] == '"' {
		var name string
		if err := json.Unmarshal(element, &name); err != nil {
			return models.OrderItem{}, err
		}
		return models.OrderItem{Name: name, Quantity: 1}, nil
	}

	var raw models.RawItem
	if err := json.Unmarshal(element, &raw); err != nil {
		return models.OrderItem{}, err
	}

	quantity := 1
	if raw.Quantity != nil && *raw.Quantity >= 1 {
		quantity = *raw.Quantity
	}

	var unitPrice float64
	switch {
	case raw.UnitPrice != nil:
		unitPrice = *raw.UnitPrice
	case raw.Price != nil:
		// Legacy single price field, treated as the unit price.
		unitPrice = *raw.Price
	}

	lineTotal := unitPrice * float64(quantity)
	if raw.LineTotal != nil {
		lineTotal = *raw.LineTotal
	}

	return models.OrderItem{
		Name:      raw.Name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: lineTotal,
	}, nil
}

// decodeTotal coerces the total to a non-negative number. A non-numeric
// value coerces to 0 so it never poisons sorting or aggregation; the raw
// string is kept as a display fallback.
func decodeTotal(raw json.RawMessage) (float64, string) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, ""
	}

	s := string(data)
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, s
		}
		s = strings.TrimSpace(unquoted)
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, s
	}
	if value < 0 {
		return 0, s
	}
	return value, ""
}

// decodeCreatedAt derives the recency key: the explicit creation timestamp
// when present, else the scheduled time, else the ingestion clock. It is
// never zero; projections need a total order.
func (n *Normalizer) decodeCreatedAt(createdAt, schedule string) time.Time {
	if t, ok := parseTimestamp(createdAt); ok {
		return t
	}
	if t, ok := parseTimestamp(schedule); ok {
		return t
	}
	if t, ok := n.parseClock(schedule); ok {
		return t
	}
	return n.now()
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) parseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			now := n.now()
			return time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, now.Location()), true
		}
	}
	return time.Time{}, false
}
