package messaging

import (
	"context"
	"encoding/json"

	"example.com/backstage/services/orderboard/internal/ingest"
	"example.com/backstage/services/orderboard/internal/metrics"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Event type definitions
const (
	EventNewOrder = "nuevoPedido"
)

// PushEnvelope is the common message structure on the order queue.
type PushEnvelope struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// Processor unwraps push envelopes and routes order events into the
// ingestion coordinator. Unknown event types are ignored for forward
// compatibility.
type Processor struct {
	coordinator *ingest.Coordinator
	metrics     *metrics.Metrics
}

// NewProcessor creates a push message processor.
func NewProcessor(coordinator *ingest.Coordinator, m *metrics.Metrics) *Processor {
	return &Processor{
		coordinator: coordinator,
		metrics:     m,
	}
}

// ProcessMessage handles one received queue message.
func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var envelope PushEnvelope
	if err := json.Unmarshal(message.Body, &envelope); err != nil {
		p.metrics.IncrementCounter("push_envelope_errors")
		return errors.Wrap(err, "error unmarshalling push envelope")
	}

	switch envelope.EventType {
	case EventNewOrder:
		p.metrics.IncrementCounter("push_events_received")
		return p.coordinator.HandlePush(ctx, envelope.Data)
	default:
		log.Debug().Str("eventType", envelope.EventType).Msg("Ignoring unknown event type")
		return nil
	}
}
