package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Kind classifies how an order reaches the customer.
type Kind string

const (
	KindDelivery Kind = "delivery"
	KindPickup   Kind = "pickup"
)

// OrderItem is a single line of an order. Insertion order matches the
// source payload and is never reordered.
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"`
	LineTotal float64 `json:"line_total,omitempty"`
}

// Order is the canonical record every source payload converges to before
// entering the collection store.
type Order struct {
	ID            int64       `json:"id"`
	Customer      string      `json:"customer"`
	ScheduledTime string      `json:"scheduled_time"`
	PaymentMethod string      `json:"payment_method"`
	Items         []OrderItem `json:"items"`
	Details       string      `json:"details,omitempty"`
	Total         float64     `json:"total"`
	TotalDisplay  string      `json:"total_display,omitempty"`
	Kind          Kind        `json:"kind"`
	Address       string      `json:"address,omitempty"`
	IsUnread      bool        `json:"is_unread"`
	IsDone        bool        `json:"is_done"`
	CreatedAt     time.Time   `json:"created_at"`

	// Whether the source payload carried the status flags explicitly.
	// The store merge rule preserves local status when it did not.
	UnreadExplicit bool `json:"-"`
	DoneExplicit   bool `json:"-"`
}

// RawOrderPayload is the union of the two payload shapes the upstream emits.
// Field types are deliberately loose; the normalizer owns all coercion.
type RawOrderPayload struct {
	ID        FlexID          `json:"id"`
	Customer  string          `json:"nombre_cliente"`
	Schedule  string          `json:"horario"`
	Payment   string          `json:"metodo_pago"`
	Items     json.RawMessage `json:"items"`
	Details   string          `json:"detalles"`
	Total     json.RawMessage `json:"total"`
	Delivery  bool            `json:"delivery"`
	IsNew     *bool           `json:"is_new"`
	Address   string          `json:"direccion"`
	IsDone    *bool           `json:"is_done"`
	CreatedAt string          `json:"created_at"`
}

// RawItem is one entry of a structured items array. Legacy payloads carry
// a single "precio" field which is treated as the unit price.
type RawItem struct {
	Name      string   `json:"nombre"`
	Quantity  *int     `json:"cantidad"`
	UnitPrice *float64 `json:"precioUnitario"`
	Price     *float64 `json:"precio"`
	LineTotal *float64 `json:"precioTotal"`
}

// FlexID decodes an identifier sent either as a JSON number or a string.
type FlexID int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexID(n)
	return nil
}
