package handlers

import (
	"io"
	"net/http"
	"strconv"

	"example.com/backstage/services/orderboard/internal/metrics"
	"example.com/backstage/services/orderboard/internal/models"
	"example.com/backstage/services/orderboard/internal/status"
	"example.com/backstage/services/orderboard/internal/store"
	"example.com/backstage/services/orderboard/internal/tracing"
	"example.com/backstage/services/orderboard/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// OrdersHandler serves board projections and status transition intents.
type OrdersHandler struct {
	store   *store.Store
	gateway *status.Gateway
	metrics *metrics.Metrics
	tracer  tracing.Tracer
}

// NewOrdersHandler creates a new orders handler
func NewOrdersHandler(st *store.Store, gateway *status.Gateway, m *metrics.Metrics, tracer tracing.Tracer) *OrdersHandler {
	return &OrdersHandler{
		store:   st,
		gateway: gateway,
		metrics: m,
		tracer:  tracer,
	}
}

// RegisterRoutes registers the order routes on the router
func (h *OrdersHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", h.HandleGetOrders)
		v1.GET("/orders/stream", h.HandleStreamOrders)
		v1.PUT("/orders/:id/read", h.HandleMarkRead)
		v1.PUT("/orders/:id/done", h.HandleMarkDone)
	}
}

// ProjectionResponse is the board view for one set of query parameters.
// snapshot_ok is false while the initial snapshot load has not succeeded,
// so clients can show an error or loading indicator next to live data.
type ProjectionResponse struct {
	Orders      []models.Order `json:"orders"`
	UnreadCount int            `json:"unread_count"`
	SnapshotOK  bool           `json:"snapshot_ok"`
}

// HandleGetOrders returns the projection for the requested view parameters.
func (h *OrdersHandler) HandleGetOrders(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-orders")
	defer h.tracer.EndTransaction(txn)

	params := parseViewParams(c)
	projection := view.Project(h.store.Snapshot(), params)
	h.metrics.SetGauge("unread_orders", int64(projection.UnreadCount))

	c.JSON(http.StatusOK, h.projectionResponse(projection))
}

// HandleStreamOrders re-emits the projection over SSE after every store
// change, so a board client sees a pushed order the moment it lands.
func (h *OrdersHandler) HandleStreamOrders(c *gin.Context) {
	params := parseViewParams(c)

	changes, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Initial state, then one event per store change.
	first := true
	c.Stream(func(w io.Writer) bool {
		if first {
			first = false
			c.SSEvent("projection", h.projectionResponse(view.Project(h.store.Snapshot(), params)))
			return true
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case <-changes:
			c.SSEvent("projection", h.projectionResponse(view.Project(h.store.Snapshot(), params)))
			return true
		}
	})
}

// HandleMarkRead requests the read transition for one order.
func (h *OrdersHandler) HandleMarkRead(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-mark-read")
	defer h.tracer.EndTransaction(txn)

	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	h.tracer.AddAttribute(txn, "order_id", id)

	if err := h.gateway.MarkRead(c.Request.Context(), id); err != nil {
		log.Error().Err(err).Int64("order_id", id).Msg("Mark read failed")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleMarkDone requests the done transition for one order.
func (h *OrdersHandler) HandleMarkDone(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-mark-done")
	defer h.tracer.EndTransaction(txn)

	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	h.tracer.AddAttribute(txn, "order_id", id)

	if err := h.gateway.MarkDone(c.Request.Context(), id); err != nil {
		log.Error().Err(err).Int64("order_id", id).Msg("Mark done failed")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *OrdersHandler) projectionResponse(projection models.Projection) ProjectionResponse {
	snapshotOK := h.metrics.GetHealthChecks()["snapshot"]
	return ProjectionResponse{
		Orders:      projection.Rows,
		UnreadCount: projection.UnreadCount,
		SnapshotOK:  snapshotOK,
	}
}

func parseViewParams(c *gin.Context) models.ViewParams {
	return models.ViewParams{
		ActiveTab:   models.ParseTab(c.Query("tab")),
		SearchQuery: c.Query("q"),
		TypeFilter:  models.ParseTypeFilter(c.Query("type")),
		SortOrder:   models.ParseSortOrder(c.Query("sort")),
	}
}

func parseOrderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}
