package messaging

import (
	"context"
	"time"

	"example.com/backstage/services/orderboard/config"
	"example.com/backstage/services/orderboard/internal/metrics"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// receiveBackoff is how long the loop waits after a channel failure
// before trying again.
const receiveBackoff = 2 * time.Second

// MessageProcessor handles one received push message.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// queueReceiver is the subset of the Service Bus receiver the consumer
// loop uses.
type queueReceiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	Close(ctx context.Context) error
}

// AzureClient consumes the order push queue. Channel-level failures,
// receiver creation included, are reported and retried; they never
// terminate the subscription or the process.
type AzureClient struct {
	client      *azservicebus.Client
	queueName   string
	metrics     *metrics.Metrics
	backoff     time.Duration
	newReceiver func() (queueReceiver, error)
}

// NewAzureClient creates a Service Bus consumer for the order queue.
func NewAzureClient(cfg config.AzureConfig, m *metrics.Metrics) (*AzureClient, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	a := &AzureClient{
		client:    client,
		queueName: cfg.QueueName,
		metrics:   m,
		backoff:   receiveBackoff,
	}
	a.newReceiver = func() (queueReceiver, error) {
		return client.NewReceiverForQueue(cfg.QueueName, nil)
	}
	return a, nil
}

// Run consumes the queue until the context is cancelled. A message whose
// processing fails is completed anyway: push payloads are not transient
// failures, and redelivering a malformed order would only loop.
func (a *AzureClient) Run(ctx context.Context, processor MessageProcessor) error {
	log.Info().Str("queue", a.queueName).Msg("Starting Service Bus consumer")

	for {
		receiver, err := a.newReceiver()
		if err != nil {
			a.metrics.RecordError("push_channel")
			a.metrics.SetHealth("push_channel", false)
			log.Error().Err(err).Msg("Failed to create Service Bus receiver, retrying")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.backoff):
			}
			continue
		}

		a.receive(ctx, receiver, processor)

		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
		if ctx.Err() != nil {
			log.Info().Msg("Service Bus consumer stopping")
			return nil
		}
	}
}

// receive pumps one receiver until the context is cancelled. Receive
// failures back off and retry on the same receiver.
func (a *AzureClient) receive(ctx context.Context, receiver queueReceiver, processor MessageProcessor) {
	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.metrics.RecordError("push_channel")
			a.metrics.SetHealth("push_channel", false)
			log.Error().Err(err).Msg("Service Bus receive failed, retrying")

			select {
			case <-ctx.Done():
				return
			case <-time.After(a.backoff):
			}
			continue
		}

		a.metrics.SetHealth("push_channel", true)

		for _, message := range messages {
			if err := processor.ProcessMessage(ctx, message); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).
					Msg("Error processing push message, dropping")
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).
					Msg("Failed to complete push message")
			}
		}
	}
}

// Close closes the underlying Service Bus client.
func (a *AzureClient) Close() error {
	return a.client.Close(context.Background())
}
