package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderReserved  = "ORDER_RESERVED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a checkout creates a pending order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OrderNo   string `json:"order_no"`
	BuyerID   string `json:"buyer_id"`
	AccountID int64  `json:"account_id"`
	Amount    int64  `json:"amount"`
}

// OrderCompletedEvent published when payment settles and the sale is final
type OrderCompletedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	OrderNo       string `json:"order_no"`
	BuyerID       string `json:"buyer_id"`
	SellerID      int64  `json:"seller_id"`
	AccountID     int64  `json:"account_id"`
	Amount        int64  `json:"amount"`
	Commission    int64  `json:"commission"`
	PaymentMethod string `json:"payment_method"`
}

// OrderCancelledEvent published when a checkout is rolled back
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	OrderNo string `json:"order_no"`
	Reason  string `json:"reason"`
}
