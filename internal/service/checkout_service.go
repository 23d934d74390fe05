package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/models"
	"hesapduragi/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommissionRate is the platform's cut of every sale
const CommissionRate = 0.10

// CheckoutStore covers the persistence the checkout workflow needs beyond
// the reservation primitive
type CheckoutStore interface {
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID int64, status, paymentStatus string) error
	CreditSeller(ctx context.Context, sellerID int64, amount int64) error
	DebitBuyer(ctx context.Context, buyerID int64, amount int64) (bool, error)
	CreditBuyer(ctx context.Context, buyerID int64, amount int64) error
	IncrementPurchases(ctx context.Context, userID int64) error
}

// OrderEvents publishes order lifecycle events
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// CheckoutService converts cart items into orders through a single
// reserve -> pay -> confirm-or-release workflow. Both the cart checkout and
// the single-item balance purchase run on the same core; only the payment
// step differs.
type CheckoutService struct {
	store    CheckoutStore
	reserver *Reserver
	gateway  PaymentGateway
	events   OrderEvents
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service. events may be nil when
// no broker is configured.
func NewCheckoutService(store CheckoutStore, reserver *Reserver, gateway PaymentGateway, events OrderEvents) *CheckoutService {
	return &CheckoutService{
		store:    store,
		reserver: reserver,
		gateway:  gateway,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// CheckoutItem is one cart line as submitted by the client. Price is the
// price the client saw; it must match the live listing exactly.
type CheckoutItem struct {
	AccountID int64  `json:"account_id" binding:"required"`
	Title     string `json:"title"`
	Price     int64  `json:"price" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// CustomerInfo is the contact block required on every checkout
type CustomerInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// CheckoutRequest is a cart checkout submission
type CheckoutRequest struct {
	Items          []CheckoutItem `json:"items"`
	PaymentMethod  string         `json:"payment_method"`
	CustomerInfo   CustomerInfo   `json:"customer_info"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// OrderSummary is the per-order slice of a checkout result
type OrderSummary struct {
	OrderID string          `json:"order_id"`
	Amount  int64           `json:"amount"`
	Account AccountSnapshot `json:"account"`
}

// AccountSnapshot mirrors the immutable account fields captured on the order
type AccountSnapshot struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Game  string `json:"game"`
}

// CheckoutResult is returned on a successful checkout
type CheckoutResult struct {
	Orders        []OrderSummary `json:"orders"`
	TotalAmount   int64          `json:"total_amount"`
	CustomerEmail string         `json:"customer_email"`
}

// reservedLine tracks one phase-1 reservation for confirm or rollback
type reservedLine struct {
	order    *models.Order
	account  *models.Account
	quantity int
}

// Commission computes the platform cut for an amount
func Commission(amount int64) int64 {
	return int64(math.Round(float64(amount) * CommissionRate))
}

// NewOrderNo builds a human-readable order number: time plus random suffix
func NewOrderNo() string {
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("HD-%s-%s", time.Now().Format("20060102150405"), suffix)
}

// Checkout runs the cart workflow. buyerID is nil for guest checkouts.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest, buyerID *int64) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	if len(req.Items) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperrors.Validation("Sepetiniz boş")
	}
	if req.CustomerInfo.Email == "" || req.CustomerInfo.FirstName == "" || req.CustomerInfo.LastName == "" {
		util.CheckoutsFailedTotal.WithLabelValues("missing_customer_info").Inc()
		return nil, apperrors.Validation("Müşteri bilgileri eksik")
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}
	// Orders carry a per-line key (request key + account); probing the first
	// line is enough to spot a replayed request.
	existing, err := s.store.GetOrderByIdempotencyKey(ctx,
		fmt.Sprintf("%s-%d", req.IdempotencyKey, req.Items[0].AccountID))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if existing != nil {
		s.logger.Info("Duplicate checkout request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_no", existing.OrderNo))
		return nil, apperrors.Conflict("Bu sipariş zaten alındı")
	}

	buyer, buyerRecordID, err := s.resolveBuyer(ctx, buyerID, req.CustomerInfo)
	if err != nil {
		return nil, err
	}

	util.CheckoutsTotal.Inc()

	// Phase 1: validate and reserve each line, creating pending orders.
	// Any failure rolls back everything reserved so far in this request.
	reserved := make([]reservedLine, 0, len(req.Items))
	for i, item := range req.Items {
		line, err := s.reserveLine(ctx, item, buyer, buyerRecordID, req)
		if err != nil {
			s.rollback(ctx, reserved, "line_item_failed")
			s.logger.Warn("Checkout line rejected",
				zap.Int("line", i),
				zap.Int64("account_id", item.AccountID),
				zap.Error(err))
			return nil, err
		}
		reserved = append(reserved, *line)
	}

	var total int64
	for _, line := range reserved {
		total += line.order.Amount
	}

	// Payment is the sole external failure boundary: one charge for the
	// grand total of the cart.
	if _, err := s.gateway.Charge(ctx, total, req.PaymentMethod); err != nil {
		s.rollback(ctx, reserved, "payment_failed")
		util.CheckoutsFailedTotal.WithLabelValues("payment").Inc()
		if apperrors.KindOf(err) == apperrors.KindPayment {
			return nil, err
		}
		return nil, apperrors.Internal(err)
	}

	// Phase 2a: confirm every reserved line
	result := &CheckoutResult{
		TotalAmount:   total,
		CustomerEmail: req.CustomerInfo.Email,
	}
	for _, line := range reserved {
		if err := s.confirmLine(ctx, line, buyer, buyerRecordID, req.PaymentMethod); err != nil {
			// Confirmed lines stay confirmed; the reconciliation sweep
			// picks up anything left pending by a partial failure here.
			s.logger.Error("Failed to confirm order after payment",
				zap.String("order_no", line.order.OrderNo),
				zap.Error(err))
			continue
		}
		result.Orders = append(result.Orders, OrderSummary{
			OrderID: line.order.OrderNo,
			Amount:  line.order.Amount,
			Account: AccountSnapshot{
				ID:    line.account.ID,
				Title: line.account.Title,
				Game:  line.account.Game,
			},
		})
	}

	util.CheckoutsCompletedTotal.Inc()
	s.logger.Info("Checkout completed",
		zap.Int("orders", len(result.Orders)),
		zap.Int64("total", total))
	return result, nil
}

// resolveBuyer loads the registered buyer or builds the guest snapshot
func (s *CheckoutService) resolveBuyer(ctx context.Context, buyerID *int64, info CustomerInfo) (*models.User, string, error) {
	if buyerID == nil {
		return nil, models.GuestBuyerID, nil
	}
	buyer, err := s.store.GetUserByID(ctx, *buyerID)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	if buyer == nil {
		return nil, "", apperrors.NotFound("Kullanıcı bulunamadı")
	}
	return buyer, strconv.FormatInt(buyer.ID, 10), nil
}

// reserveLine validates one cart line (exists, available, price intact),
// reserves the account atomically and writes the pending order
func (s *CheckoutService) reserveLine(ctx context.Context, item CheckoutItem, buyer *models.User, buyerRecordID string, req *CheckoutRequest) (*reservedLine, error) {
	account, err := s.store.GetAccountByID(ctx, item.AccountID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if account == nil {
		util.CheckoutsFailedTotal.WithLabelValues("not_found").Inc()
		return nil, apperrors.NotFound(fmt.Sprintf("Ürün bulunamadı: %s", item.Title))
	}
	if account.Status != models.AccountStatusAvailable {
		util.CheckoutsFailedTotal.WithLabelValues("unavailable").Inc()
		return nil, apperrors.Conflict(fmt.Sprintf("%s şu anda satışta değil", account.Title))
	}
	if item.Price != account.Price {
		util.CheckoutsFailedTotal.WithLabelValues("price_mismatch").Inc()
		return nil, apperrors.Conflict(fmt.Sprintf("%s ürününün fiyatı değişti, lütfen sepetinizi yenileyin", account.Title))
	}

	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if quantity > account.Stock {
		util.CheckoutsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, apperrors.Conflict(fmt.Sprintf("%s için yeterli stok yok", account.Title))
	}

	ok, err := s.reserver.Reserve(ctx, account.ID, quantity)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		util.CheckoutsFailedTotal.WithLabelValues("reservation_lost").Inc()
		return nil, apperrors.Conflict(fmt.Sprintf("%s şu anda satışta değil", account.Title))
	}

	seller, err := s.store.GetUserByID(ctx, account.SellerID)
	if err != nil || seller == nil {
		_ = s.reserver.Release(ctx, account.ID)
		if err == nil {
			err = fmt.Errorf("seller %d not found for account %d", account.SellerID, account.ID)
		}
		return nil, apperrors.Internal(err)
	}

	amount := account.Price * int64(quantity)
	order := &models.Order{
		OrderNo:        NewOrderNo(),
		BuyerID:        buyerRecordID,
		BuyerName:      buyerName(buyer, req.CustomerInfo),
		BuyerEmail:     buyerEmail(buyer, req.CustomerInfo),
		SellerID:       seller.ID,
		SellerName:     seller.FirstName + " " + seller.LastName,
		SellerEmail:    seller.Email,
		AccountID:      account.ID,
		AccountTitle:   account.Title,
		AccountGame:    account.Game,
		Amount:         amount,
		Commission:     Commission(amount),
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: fmt.Sprintf("%s-%d", req.IdempotencyKey, account.ID),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		_ = s.reserver.Release(ctx, account.ID)
		return nil, apperrors.Internal(err)
	}

	s.publishCreated(ctx, order)
	return &reservedLine{order: order, account: account, quantity: quantity}, nil
}

// confirmLine applies phase 2a to one reserved line: order paid, account
// settled, seller credited net of commission, buyer counter advanced
func (s *CheckoutService) confirmLine(ctx context.Context, line reservedLine, buyer *models.User, buyerRecordID, paymentMethod string) error {
	order := line.order

	if err := s.store.UpdateOrderPayment(ctx, order.ID, models.OrderStatusProcessing, models.PaymentStatusPaid); err != nil {
		return err
	}
	order.Status = models.OrderStatusProcessing
	order.PaymentStatus = models.PaymentStatusPaid

	if err := s.reserver.Commit(ctx, line.account.ID, line.quantity, buyerRecordID); err != nil {
		return err
	}

	if err := s.store.CreditSeller(ctx, order.SellerID, order.Amount-order.Commission); err != nil {
		s.logger.Error("Failed to credit seller",
			zap.Int64("seller_id", order.SellerID),
			zap.Error(err))
	}

	if buyer != nil {
		if err := s.store.IncrementPurchases(ctx, buyer.ID); err != nil {
			s.logger.Error("Failed to increment buyer purchases",
				zap.Int64("buyer_id", buyer.ID),
				zap.Error(err))
		}
	}

	s.publishCompleted(ctx, order, paymentMethod)
	return nil
}

// rollback applies phase 2b to every reserved line of a failed request:
// orders cancelled/failed and accounts back on sale. Best effort, sequential;
// the reconciliation sweep covers a crash mid-rollback.
func (s *CheckoutService) rollback(ctx context.Context, reserved []reservedLine, reason string) {
	for _, line := range reserved {
		if err := s.store.UpdateOrderPayment(ctx, line.order.ID, models.OrderStatusCancelled, models.PaymentStatusFailed); err != nil {
			s.logger.Error("Failed to cancel order during rollback",
				zap.String("order_no", line.order.OrderNo),
				zap.Error(err))
		}
		if err := s.reserver.Release(ctx, line.account.ID); err != nil {
			s.logger.Error("Failed to release account during rollback",
				zap.Int64("account_id", line.account.ID),
				zap.Error(err))
		}
		util.OrdersCancelledTotal.Inc()
		s.publishCancelled(ctx, line.order, reason)
	}
}

// PurchaseResult is returned by the single-item balance purchase
type PurchaseResult struct {
	OrderID string          `json:"order_id"`
	Account AccountSnapshot `json:"account"`
	Seller  string          `json:"seller"`
}

// PurchaseWithBalance buys one account with the registered buyer's balance.
// Same reserve/confirm core as Checkout; the balance debit replaces the
// gateway call as the failure boundary, so the order is written directly in
// its settled state.
func (s *CheckoutService) PurchaseWithBalance(ctx context.Context, buyerID, accountID int64) (*PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PurchaseWithBalance")
	defer span.End()

	buyer, err := s.store.GetUserByID(ctx, buyerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if buyer == nil {
		return nil, apperrors.NotFound("Kullanıcı bulunamadı")
	}

	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Ürün bulunamadı")
	}
	if account.Status != models.AccountStatusAvailable || account.Stock <= 0 {
		return nil, apperrors.Conflict(fmt.Sprintf("%s şu anda satışta değil", account.Title))
	}
	if buyer.Balance < account.Price {
		return nil, apperrors.Validation("Bakiyeniz bu satın alma için yetersiz")
	}

	seller, err := s.store.GetUserByID(ctx, account.SellerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if seller == nil {
		return nil, apperrors.NotFound("Satıcı bulunamadı")
	}

	ok, err := s.reserver.Reserve(ctx, account.ID, 1)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		return nil, apperrors.Conflict(fmt.Sprintf("%s şu anda satışta değil", account.Title))
	}

	debited, err := s.store.DebitBuyer(ctx, buyer.ID, account.Price)
	if err != nil {
		_ = s.reserver.Release(ctx, account.ID)
		return nil, apperrors.Internal(err)
	}
	if !debited {
		_ = s.reserver.Release(ctx, account.ID)
		return nil, apperrors.Validation("Bakiyeniz bu satın alma için yetersiz")
	}

	buyerRecordID := strconv.FormatInt(buyer.ID, 10)
	order := &models.Order{
		OrderNo:        NewOrderNo(),
		BuyerID:        buyerRecordID,
		BuyerName:      buyer.FirstName + " " + buyer.LastName,
		BuyerEmail:     buyer.Email,
		SellerID:       seller.ID,
		SellerName:     seller.FirstName + " " + seller.LastName,
		SellerEmail:    seller.Email,
		AccountID:      account.ID,
		AccountTitle:   account.Title,
		AccountGame:    account.Game,
		Amount:         account.Price,
		Commission:     Commission(account.Price),
		Status:         models.OrderStatusCompleted,
		PaymentStatus:  models.PaymentStatusPaid,
		PaymentMethod:  "balance",
		IdempotencyKey: uuid.New().String(),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		if refundErr := s.store.CreditBuyer(ctx, buyer.ID, account.Price); refundErr != nil {
			s.logger.Error("Failed to refund buyer after order write failure",
				zap.Int64("buyer_id", buyer.ID),
				zap.Error(refundErr))
		}
		_ = s.reserver.Release(ctx, account.ID)
		return nil, apperrors.Internal(err)
	}

	if err := s.reserver.Commit(ctx, account.ID, 1, buyerRecordID); err != nil {
		s.logger.Error("Failed to settle account after purchase",
			zap.Int64("account_id", account.ID),
			zap.Error(err))
	}

	if err := s.store.CreditSeller(ctx, seller.ID, order.Amount-order.Commission); err != nil {
		s.logger.Error("Failed to credit seller",
			zap.Int64("seller_id", seller.ID),
			zap.Error(err))
	}
	if err := s.store.IncrementPurchases(ctx, buyer.ID); err != nil {
		s.logger.Error("Failed to increment buyer purchases",
			zap.Int64("buyer_id", buyer.ID),
			zap.Error(err))
	}

	util.PurchasesTotal.Inc()
	s.publishCompleted(ctx, order, "balance")

	return &PurchaseResult{
		OrderID: order.OrderNo,
		Account: AccountSnapshot{ID: account.ID, Title: account.Title, Game: account.Game},
		Seller:  order.SellerName,
	}, nil
}

func buyerName(buyer *models.User, info CustomerInfo) string {
	if buyer != nil {
		return buyer.FirstName + " " + buyer.LastName
	}
	return info.FirstName + " " + info.LastName
}

func buyerEmail(buyer *models.User, info CustomerInfo) string {
	if buyer != nil {
		return buyer.Email
	}
	return info.Email
}

func (s *CheckoutService) publishCreated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:   order.ID,
		OrderNo:   order.OrderNo,
		BuyerID:   order.BuyerID,
		AccountID: order.AccountID,
		Amount:    order.Amount,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *CheckoutService) publishCompleted(ctx context.Context, order *models.Order, paymentMethod string) {
	if s.events == nil {
		return
	}
	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		OrderNo:       order.OrderNo,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		AccountID:     order.AccountID,
		Amount:        order.Amount,
		Commission:    order.Commission,
		PaymentMethod: paymentMethod,
	}
	if err := s.events.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
}

func (s *CheckoutService) publishCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.events == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		OrderNo: order.OrderNo,
		Reason:  reason,
	}
	if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}
