// Package handlers contains the echo HTTP handlers for the ingress API.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/courier/internal/broker"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/pkg/protocol"
)

// StatusResponse is the body of publish acknowledgments and errors.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const missingFieldsMessage = "Missing topic, message_id, message, or producer"

// BrokerHandler exposes the broker over HTTP: one publish endpoint and
// three listing endpoints.
type BrokerHandler struct {
	broker *broker.Broker
}

// NewBrokerHandler creates a BrokerHandler.
func NewBrokerHandler(b *broker.Broker) *BrokerHandler {
	return &BrokerHandler{broker: b}
}

// Publish handles POST /publish. Validation failures get a 400 with a
// field-level message and no state change. A storage failure after
// validation is logged and absorbed so the producer still gets an ack;
// broker writes are best-effort from the caller's point of view.
func (h *BrokerHandler) Publish(c echo.Context) error {
	var req protocol.PublishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, StatusResponse{
			Status:  "error",
			Message: missingFieldsMessage,
		})
	}
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	if err := c.Validate(&req); err != nil || string(req.Payload) == "null" {
		logger.Warn("Publish rejected", "reason", missingFieldsMessage)
		return c.JSON(http.StatusBadRequest, StatusResponse{
			Status:  "error",
			Message: missingFieldsMessage,
		})
	}

	if err := h.broker.Publish(ctx, req.Topic, req.MessageID, req.Payload, req.Producer); err != nil {
		logger.Error("Publish failed after validation", "message_id", req.MessageID, "error", err)
	}

	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Clients handles GET /clients. A storage read failure degrades to an empty
// listing rather than a 5xx.
func (h *BrokerHandler) Clients(c echo.Context) error {
	ctx := c.Request().Context()
	subs, err := h.broker.ListSubscribers(ctx)
	if err != nil {
		middleware.FromContext(ctx).Error("Listing clients failed", "error", err)
		subs = nil
	}
	if subs == nil {
		subs = []protocol.Subscription{}
	}
	return c.JSON(http.StatusOK, subs)
}

// Messages handles GET /messages, newest first.
func (h *BrokerHandler) Messages(c echo.Context) error {
	ctx := c.Request().Context()
	msgs, err := h.broker.ListMessages(ctx)
	if err != nil {
		middleware.FromContext(ctx).Error("Listing messages failed", "error", err)
		msgs = nil
	}
	if msgs == nil {
		msgs = []protocol.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

// Consumptions handles GET /consumptions, newest first.
func (h *BrokerHandler) Consumptions(c echo.Context) error {
	ctx := c.Request().Context()
	events, err := h.broker.ListConsumptions(ctx)
	if err != nil {
		middleware.FromContext(ctx).Error("Listing consumptions failed", "error", err)
		events = nil
	}
	if events == nil {
		events = []protocol.Consumption{}
	}
	return c.JSON(http.StatusOK, events)
}
