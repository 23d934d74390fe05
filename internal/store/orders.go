package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hesapduragi/internal/models"
)

// CreateOrder creates a new order with its buyer/seller/account snapshots
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders
			(order_no, buyer_id, buyer_name, buyer_email,
			 seller_id, seller_name, seller_email,
			 account_id, account_title, account_game,
			 amount, commission, status, payment_status, payment_method, notes,
			 idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.OrderNo, order.BuyerID, order.BuyerName, order.BuyerEmail,
		order.SellerID, order.SellerName, order.SellerEmail,
		order.AccountID, order.AccountTitle, order.AccountGame,
		order.Amount, order.Commission, order.Status, order.PaymentStatus,
		order.PaymentMethod, order.Notes, order.IdempotencyKey)
}

// GetOrderByID retrieves an order by internal ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNo retrieves an order by its human-readable number
func (s *Store) GetOrderByNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_no = $1", orderNo)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderPayment transitions an order's status pair. The workflow calls
// this exactly once per order: to (processing, paid) or (cancelled, failed).
func (s *Store) UpdateOrderPayment(ctx context.Context, orderID int64, status, paymentStatus string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW() WHERE id = $3",
		status, paymentStatus, orderID)
	return err
}

// ListOrdersByBuyer retrieves orders for a buyer, newest first
func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return orders, err
}

// ListOrders retrieves the most recent orders for the admin back-office
func (s *Store) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders ORDER BY created_at DESC LIMIT $1", limit)
	return orders, err
}

// ListStalePendingOrders finds orders stuck pending since before cutoff.
// These are the leftovers of a crash between reservation and finalization.
func (s *Store) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at",
		models.OrderStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	return orders, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
