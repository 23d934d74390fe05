package models

import (
	"database/sql"
	"time"
)

// Account represents a sellable game account listing in the catalog
type Account struct {
	ID                 int64          `db:"id" json:"id"`
	Title              string         `db:"title" json:"title"`
	Game               string         `db:"game" json:"game"`
	Category           string         `db:"category" json:"category"`
	Description        string         `db:"description" json:"description"`
	Price              int64          `db:"price" json:"price"`
	Stock              int            `db:"stock" json:"stock"`
	Status             string         `db:"status" json:"status"`
	SellerID           int64          `db:"seller_id" json:"seller_id"`
	BuyerID            sql.NullString `db:"buyer_id" json:"buyer_id,omitempty"`
	Rating             float64        `db:"rating" json:"rating"`
	Reviews            int            `db:"reviews" json:"reviews"`
	IsFeatured         bool           `db:"is_featured" json:"is_featured"`
	IsOnSale           bool           `db:"is_on_sale" json:"is_on_sale"`
	IsWeeklyDeal       bool           `db:"is_weekly_deal" json:"is_weekly_deal"`
	DiscountPercentage int            `db:"discount_percentage" json:"discount_percentage"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Account statuses
const (
	AccountStatusAvailable = "available"
	AccountStatusPending   = "pending"
	AccountStatusSold      = "sold"
	AccountStatusSuspended = "suspended"
)

// User represents a registered buyer, seller or admin
type User struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Role           string    `db:"role" json:"role"`
	Balance        int64     `db:"balance" json:"balance"`
	TotalSales     int       `db:"total_sales" json:"total_sales"`
	TotalPurchases int       `db:"total_purchases" json:"total_purchases"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// GuestBuyerID is recorded on orders placed without a registered buyer
const GuestBuyerID = "guest"

// Order represents a purchase attempt and its outcome. Buyer, seller and
// account fields are snapshots captured at creation time; they stay fixed
// even when the live records later change.
type Order struct {
	ID             int64     `db:"id" json:"id"`
	OrderNo        string    `db:"order_no" json:"order_no"`
	BuyerID        string    `db:"buyer_id" json:"buyer_id"`
	BuyerName      string    `db:"buyer_name" json:"buyer_name"`
	BuyerEmail     string    `db:"buyer_email" json:"buyer_email"`
	SellerID       int64     `db:"seller_id" json:"seller_id"`
	SellerName     string    `db:"seller_name" json:"seller_name"`
	SellerEmail    string    `db:"seller_email" json:"seller_email"`
	AccountID      int64     `db:"account_id" json:"account_id"`
	AccountTitle   string    `db:"account_title" json:"account_title"`
	AccountGame    string    `db:"account_game" json:"account_game"`
	Amount         int64     `db:"amount" json:"amount"`
	Commission     int64     `db:"commission" json:"commission"`
	Status         string    `db:"status" json:"status"`
	PaymentStatus  string    `db:"payment_status" json:"payment_status"`
	PaymentMethod  string    `db:"payment_method" json:"payment_method"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Review represents a buyer review of an account. At most one review per
// (user, account) pair, enforced by a unique constraint. Reviews start
// unapproved; only admin moderation flips the flag.
type Review struct {
	ID          int64     `db:"id" json:"id"`
	AccountID   int64     `db:"account_id" json:"account_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	Rating      int       `db:"rating" json:"rating"`
	Comment     string    `db:"comment" json:"comment"`
	IsAnonymous bool      `db:"is_anonymous" json:"is_anonymous"`
	IsApproved  bool      `db:"is_approved" json:"is_approved"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
