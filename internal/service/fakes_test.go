package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/models"
	"hesapduragi/internal/store"

	"github.com/lib/pq"
)

// fakeStore is an in-memory stand-in for store.Store. The mutex makes the
// reservation primitive atomic, matching the conditional-update semantics of
// the real store.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	users    map[int64]*models.User
	orders   map[int64]*models.Order
	reviews  map[int64]*models.Review

	nextOrderID  int64
	nextReviewID int64
	nextUserID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[int64]*models.Account),
		users:    make(map[int64]*models.User),
		orders:   make(map[int64]*models.Order),
		reviews:  make(map[int64]*models.Review),
	}
}

func (f *fakeStore) addAccount(a models.Account) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := a
	f.accounts[a.ID] = &copied
	return &copied
}

func (f *fakeStore) addUser(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := u
	f.users[u.ID] = &copied
	return &copied
}

func (f *fakeStore) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOrderID++
	order.ID = f.nextOrderID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) GetOrderByNo(ctx context.Context, orderNo string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNo == orderNo {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.IdempotencyKey == key {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateOrderPayment(ctx context.Context, orderID int64, status, paymentStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %d", orderID)
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		orders = append(orders, *o)
		if len(orders) >= limit {
			break
		}
	}
	return orders, nil
}

func (f *fakeStore) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (f *fakeStore) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (f *fakeStore) CreditSeller(ctx context.Context, sellerID int64, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[sellerID]
	if !ok {
		return fmt.Errorf("user not found: %d", sellerID)
	}
	u.Balance += amount
	u.TotalSales++
	return nil
}

func (f *fakeStore) DebitBuyer(ctx context.Context, buyerID int64, amount int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[buyerID]
	if !ok {
		return false, fmt.Errorf("user not found: %d", buyerID)
	}
	if u.Balance < amount {
		return false, nil
	}
	u.Balance -= amount
	return true, nil
}

func (f *fakeStore) CreditBuyer(ctx context.Context, buyerID int64, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[buyerID]
	if !ok {
		return fmt.Errorf("user not found: %d", buyerID)
	}
	u.Balance += amount
	return nil
}

func (f *fakeStore) IncrementPurchases(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %d", userID)
	}
	u.TotalPurchases++
	return nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return &pq.Error{Code: "23505"}
		}
	}
	f.nextUserID++
	user.ID = f.nextUserID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

// Reservation primitive: conditional transition under the lock

func (f *fakeStore) ReserveAccount(ctx context.Context, accountID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return false, nil
	}
	if a.Status != models.AccountStatusAvailable || a.Stock <= 0 {
		return false, nil
	}
	a.Status = models.AccountStatusPending
	return true, nil
}

func (f *fakeStore) ReleaseAccount(ctx context.Context, accountID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return nil
	}
	if a.Status == models.AccountStatusPending {
		a.Status = models.AccountStatusAvailable
	}
	return nil
}

func (f *fakeStore) FinalizeAccountSale(ctx context.Context, accountID int64, quantity int, buyerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found: %d", accountID)
	}
	if a.Status != models.AccountStatusPending || a.Stock < quantity {
		return fmt.Errorf("account %d not in reserved state or insufficient stock", accountID)
	}
	a.Stock -= quantity
	if a.Stock <= 0 {
		a.Status = models.AccountStatusSold
	} else {
		a.Status = models.AccountStatusAvailable
	}
	a.BuyerID.String = buyerID
	a.BuyerID.Valid = true
	return nil
}

// Catalog surface

func (f *fakeStore) ListAccounts(ctx context.Context, filter store.AccountFilter) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var accounts []models.Account
	for _, a := range f.accounts {
		if a.Status == models.AccountStatusSuspended {
			continue
		}
		if filter.Game != "" && a.Game != filter.Game {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.Featured && !a.IsFeatured {
			continue
		}
		if filter.OnSale && !a.IsOnSale {
			continue
		}
		if filter.WeeklyDeal && !a.IsWeeklyDeal {
			continue
		}
		accounts = append(accounts, *a)
	}
	return accounts, nil
}

func (f *fakeStore) CreateAccount(ctx context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account.ID = int64(len(f.accounts) + 1)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteAccount(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) ListAccountIDs(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

// Reviews

func (f *fakeStore) CreateReview(ctx context.Context, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.UserID == review.UserID && r.AccountID == review.AccountID {
			return &pq.Error{Code: "23505"}
		}
	}
	f.nextReviewID++
	review.ID = f.nextReviewID
	review.IsApproved = false
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	copied := *review
	f.reviews[review.ID] = &copied
	return nil
}

func (f *fakeStore) GetReviewByID(ctx context.Context, id int64) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) SetReviewApproval(ctx context.Context, id int64, approved bool) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return nil, nil
	}
	r.IsApproved = approved
	r.UpdatedAt = time.Now()
	copied := *r
	return &copied, nil
}

func (f *fakeStore) ListApprovedReviews(ctx context.Context, accountID int64) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var reviews []models.Review
	for _, r := range f.reviews {
		if r.AccountID == accountID && r.IsApproved {
			reviews = append(reviews, *r)
		}
	}
	return reviews, nil
}

func (f *fakeStore) GetApprovedReviewStats(ctx context.Context, accountID int64) (float64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum, count int
	for _, r := range f.reviews {
		if r.AccountID == accountID && r.IsApproved {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

func (f *fakeStore) UpdateAccountRating(ctx context.Context, id int64, rating float64, reviews int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %d", id)
	}
	a.Rating = rating
	a.Reviews = reviews
	return nil
}

// fakeGateway is a deterministic payment gateway for tests
type fakeGateway struct {
	fail bool
}

func (g *fakeGateway) Charge(ctx context.Context, amount int64, method string) (string, error) {
	if g.fail {
		return "", apperrors.Payment("Ödeme işlemi başarısız oldu, lütfen tekrar deneyin")
	}
	return "TXN-TEST", nil
}

// eventRecorder counts published lifecycle events
type eventRecorder struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	completed []*models.OrderCompletedEvent
	cancelled []*models.OrderCancelledEvent
}

func (r *eventRecorder) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, e)
	return nil
}

func (r *eventRecorder) PublishOrderCompleted(ctx context.Context, e *models.OrderCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, e)
	return nil
}

func (r *eventRecorder) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, e)
	return nil
}
