package status

import (
	"context"
	"fmt"
	"sync/atomic"

	"example.com/backstage/services/orderboard/internal/metrics"
	"example.com/backstage/services/orderboard/internal/store"
	"example.com/backstage/services/orderboard/internal/tracing"

	"github.com/rs/zerolog/log"
)

// Confirmer is the remote collaborator that must acknowledge a status
// transition before it is committed locally.
type Confirmer interface {
	ConfirmRead(ctx context.Context, id int64) error
	ConfirmDone(ctx context.Context, id int64) error
}

// ConfirmationError reports a status transition the remote rejected or
// never acknowledged. Local state is unchanged; the caller may retry.
type ConfirmationError struct {
	OrderID    int64
	Transition string
	Cause      error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("confirm %s for order %d: %v", e.Transition, e.OrderID, e.Cause)
}

func (e *ConfirmationError) Unwrap() error { return e.Cause }

// Gateway applies read/done transitions strictly confirm-then-commit: the
// store is only mutated after the remote acknowledged, never optimistically.
type Gateway struct {
	confirmer Confirmer
	store     *store.Store
	metrics   *metrics.Metrics
	tracer    tracing.Tracer

	closed atomic.Bool
}

// NewGateway creates a status transition gateway.
func NewGateway(confirmer Confirmer, st *store.Store, m *metrics.Metrics, tracer tracing.Tracer) *Gateway {
	return &Gateway{
		confirmer: confirmer,
		store:     st,
		metrics:   m,
		tracer:    tracer,
	}
}

// MarkRead clears the unread flag for the order once the remote confirms.
// The remote round-trip always happens, even if the local copy is already
// read; the local cache has no authority over remote state.
func (g *Gateway) MarkRead(ctx context.Context, id int64) error {
	if g.closed.Load() {
		return nil
	}

	txn := g.tracer.StartTransaction("mark-read")
	defer g.tracer.EndTransaction(txn)
	g.tracer.AddAttribute(txn, "order_id", id)

	if err := g.confirmer.ConfirmRead(ctx, id); err != nil {
		g.metrics.RecordError("confirm_read")
		g.tracer.RecordError(txn, err)
		return &ConfirmationError{OrderID: id, Transition: "read", Cause: err}
	}
	g.metrics.RecordSuccess("confirm_read")

	if g.closed.Load() {
		return nil
	}

	unread := false
	g.store.MutateStatus(id, store.StatusPatch{IsUnread: &unread})

	log.Info().Int64("order_id", id).Msg("Order marked as read")
	return nil
}

// MarkDone flags the order as completed once the remote confirms.
func (g *Gateway) MarkDone(ctx context.Context, id int64) error {
	if g.closed.Load() {
		return nil
	}

	txn := g.tracer.StartTransaction("mark-done")
	defer g.tracer.EndTransaction(txn)
	g.tracer.AddAttribute(txn, "order_id", id)

	if err := g.confirmer.ConfirmDone(ctx, id); err != nil {
		g.metrics.RecordError("confirm_done")
		g.tracer.RecordError(txn, err)
		return &ConfirmationError{OrderID: id, Transition: "done", Cause: err}
	}
	g.metrics.RecordSuccess("confirm_done")

	if g.closed.Load() {
		return nil
	}

	done := true
	g.store.MutateStatus(id, store.StatusPatch{IsDone: &done})

	log.Info().Int64("order_id", id).Msg("Order marked as done")
	return nil
}

// Close marks the gateway as torn down. A confirmation that completes
// afterwards is not committed to a dead store.
func (g *Gateway) Close() {
	g.closed.Store(true)
}
