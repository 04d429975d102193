package tracking

import (
	"errors"
	"strings"
)

var ErrIncompleteOrderEvent = errors.New("orderId, status and customerId are required")

// OrderStatusEvent is the order:status payload, published by the order workflow.
type OrderStatusEvent struct {
	OrderID      string `json:"orderId"`
	ReadableID   string `json:"readableId"`
	Status       string `json:"status"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName,omitempty"`
}

func (event OrderStatusEvent) Validate() error {
	if strings.TrimSpace(event.OrderID) == "" || strings.TrimSpace(event.Status) == "" || strings.TrimSpace(event.CustomerID) == "" {
		return ErrIncompleteOrderEvent
	}
	return nil
}
