package service

import (
	"context"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// PublishOrderStatus fans an order status change out to admins, the customer and anyone
// watching the order. When the bus or the relay is down the event still reaches local connections.
func (service *Service) PublishOrderStatus(ctx context.Context, event tracking.OrderStatusEvent) error {
	if err := event.Validate(); err != nil {
		return tracking.Validation("order:status", "", err)
	}

	// without a live subscription the relay will not echo the event back to this instance
	if !service.publish(ctx, contracts.ChannelOrderUpdates, event) || !service.BusReady() {
		service.emitOrderStatus(ctx, event)
	}

	service.logger.Info(ctx, "order_status_published", "Order status published", map[string]any{
		"order_id":    event.OrderID,
		"status":      event.Status,
		"customer_id": event.CustomerID,
	})
	return nil
}

func (service *Service) emitOrderStatus(ctx context.Context, event tracking.OrderStatusEvent) {
	service.rooms.Emit(ctx, contracts.RoomAdmins, contracts.EventOrderStatus, event)
	service.rooms.Emit(ctx, contracts.CustomerRoom(event.CustomerID), contracts.EventOrderStatus, event)
	service.rooms.Emit(ctx, contracts.OrderRoom(event.OrderID), contracts.EventOrderStatus, event)
}
