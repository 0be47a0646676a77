package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusDelivered, OrderStatusPaid, OrderStatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCanceled
}

// OrderItem is a snapshot of a product at ordering time. Name and Price are
// copied from the catalog when the order is created and never change again,
// even if the product is later edited or deleted.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	ID          string      `json:"id"`
	TableID     int         `json:"table_id"`
	Status      OrderStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Items       []OrderItem `json:"items"`
	Total       float64     `json:"total"`
	Observation string      `json:"observation,omitempty"`
}
