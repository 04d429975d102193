package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/jwt"
)

// ----- Handler: POST /orders/status -----

// handleOrderStatus lets back-office tools push an order status change to every gateway.
func (handler *GatewayHTTPHandler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	var event tracking.OrderStatusEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&event); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := handler.svc.PublishOrderStatus(ctx, event); err != nil {
		handler.httpError(ctx, w, statusFor(err), tracking.PublicMessage(err), err)
		return
	}

	publisher := jwt.RequireIdentity(r)
	handler.logger.Info(ctx, "order_status_accepted", "Order status accepted", map[string]any{
		"order_id":     event.OrderID,
		"status":       event.Status,
		"published_by": publisher.ID,
	})

	handler.jsonResponse(ctx, w, http.StatusAccepted, event)
}
