package service

import (
	"context"
	"sync"
	"testing"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCheckout(store *fakeStore, gateway PaymentGateway) (*CheckoutService, *eventRecorder) {
	events := &eventRecorder{}
	reserver := NewReserver(store, nil)
	return NewCheckoutService(store, reserver, gateway, events), events
}

func seedMarket(store *fakeStore) (*models.User, *models.Account) {
	seller := store.addUser(models.User{
		ID:        10,
		Email:     "satici@example.com",
		FirstName: "Ayşe",
		LastName:  "Yılmaz",
		Role:      models.RoleUser,
	})
	account := store.addAccount(models.Account{
		ID:       1,
		Title:    "Valorant Immortal Hesap",
		Game:     "Valorant",
		Category: "fps",
		Price:    1000,
		Stock:    1,
		Status:   models.AccountStatusAvailable,
		SellerID: seller.ID,
	})
	return seller, account
}

func cartRequest(account *models.Account, key string) *CheckoutRequest {
	return &CheckoutRequest{
		Items: []CheckoutItem{
			{AccountID: account.ID, Title: account.Title, Price: account.Price, Quantity: 1},
		},
		PaymentMethod:  "credit_card",
		IdempotencyKey: key,
		CustomerInfo: CustomerInfo{
			Email:     "alici@example.com",
			FirstName: "Mehmet",
			LastName:  "Demir",
			Phone:     "+905551112233",
		},
	}
}

func TestCommission(t *testing.T) {
	assert.Equal(t, int64(100), Commission(1000))
	assert.Equal(t, int64(100), Commission(999))
	assert.Equal(t, int64(1), Commission(5))
	assert.Equal(t, int64(0), Commission(1))
	assert.Equal(t, int64(0), Commission(0))
}

func TestNewOrderNo(t *testing.T) {
	a := NewOrderNo()
	b := NewOrderNo()

	assert.Regexp(t, `^HD-\d{14}-[0-9A-F]{6}$`, a)
	assert.NotEqual(t, a, b)
}

func TestCheckoutGuestSuccess(t *testing.T) {
	store := newFakeStore()
	seller, account := seedMarket(store)
	svc, events := newTestCheckout(store, &fakeGateway{})

	result, err := svc.Checkout(context.Background(), cartRequest(account, "key-1"), nil)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	assert.Equal(t, int64(1000), result.TotalAmount)
	assert.Equal(t, "alici@example.com", result.CustomerEmail)
	assert.Equal(t, account.Title, result.Orders[0].Account.Title)

	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusSold, got.Status)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, models.GuestBuyerID, got.BuyerID.String)

	order, err := store.GetOrderByNo(context.Background(), result.Orders[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, int64(1000), order.Amount)
	assert.Equal(t, int64(100), order.Commission)
	assert.Equal(t, models.GuestBuyerID, order.BuyerID)
	assert.Equal(t, "Mehmet Demir", order.BuyerName)
	assert.Equal(t, account.Title, order.AccountTitle)

	sellerAfter, err := store.GetUserByID(context.Background(), seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), sellerAfter.Balance)
	assert.Equal(t, 1, sellerAfter.TotalSales)

	assert.Len(t, events.created, 1)
	assert.Len(t, events.completed, 1)
	assert.Empty(t, events.cancelled)
}

func TestCheckoutRegisteredBuyer(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	buyer := store.addUser(models.User{
		ID:        20,
		Email:     "uye@example.com",
		FirstName: "Zeynep",
		LastName:  "Kaya",
		Role:      models.RoleUser,
	})
	svc, _ := newTestCheckout(store, &fakeGateway{})

	result, err := svc.Checkout(context.Background(), cartRequest(account, "key-2"), &buyer.ID)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	order, err := store.GetOrderByNo(context.Background(), result.Orders[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, "20", order.BuyerID)
	assert.Equal(t, "Zeynep Kaya", order.BuyerName)
	assert.Equal(t, "uye@example.com", order.BuyerEmail)

	buyerAfter, err := store.GetUserByID(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, buyerAfter.TotalPurchases)
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := newFakeStore()
	seedMarket(store)
	svc, _ := newTestCheckout(store, &fakeGateway{})

	req := &CheckoutRequest{
		CustomerInfo: CustomerInfo{Email: "a@b.c", FirstName: "A", LastName: "B"},
	}
	_, err := svc.Checkout(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCheckoutMissingCustomerInfo(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	svc, _ := newTestCheckout(store, &fakeGateway{})

	req := cartRequest(account, "key-3")
	req.CustomerInfo.Email = ""
	_, err := svc.Checkout(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCheckoutUnknownAccount(t *testing.T) {
	store := newFakeStore()
	seedMarket(store)
	svc, _ := newTestCheckout(store, &fakeGateway{})

	req := cartRequest(&models.Account{ID: 999, Title: "Hayalet Ürün", Price: 500}, "key-4")
	_, err := svc.Checkout(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCheckoutUnavailableAccount(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	store.addAccount(models.Account{
		ID: account.ID, Title: account.Title, Game: account.Game,
		Price: account.Price, Stock: 1,
		Status: models.AccountStatusPending, SellerID: account.SellerID,
	})
	svc, _ := newTestCheckout(store, &fakeGateway{})

	_, err := svc.Checkout(context.Background(), cartRequest(account, "key-5"), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestCheckoutPriceMismatch(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	svc, _ := newTestCheckout(store, &fakeGateway{})

	req := cartRequest(account, "key-6")
	req.Items[0].Price = 900

	_, err := svc.Checkout(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// nothing may change on a rejected cart
	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusAvailable, got.Status)
	assert.Equal(t, 1, got.Stock)

	orders, err := store.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckoutPaymentFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	seller, account := seedMarket(store)
	svc, events := newTestCheckout(store, &fakeGateway{fail: true})

	_, err := svc.Checkout(context.Background(), cartRequest(account, "key-7"), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPayment, apperrors.KindOf(err))

	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusAvailable, got.Status)
	assert.Equal(t, 1, got.Stock)

	orders, err := store.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)
	assert.Equal(t, models.PaymentStatusFailed, orders[0].PaymentStatus)

	sellerAfter, err := store.GetUserByID(context.Background(), seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sellerAfter.Balance)
	assert.Equal(t, 0, sellerAfter.TotalSales)

	assert.Len(t, events.cancelled, 1)
	assert.Empty(t, events.completed)
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	svc, _ := newTestCheckout(store, &fakeGateway{})

	_, err := svc.Checkout(context.Background(), cartRequest(account, "key-8"), nil)
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), cartRequest(account, "key-8"), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	orders, err := store.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckoutConcurrentSingleStock(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	svc, _ := newTestCheckout(store, &fakeGateway{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "concurrent-a"
			if i == 1 {
				key = "concurrent-b"
			}
			_, errs[i] = svc.Checkout(context.Background(), cartRequest(account, key), nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two concurrent checkouts may win the single copy")

	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusSold, got.Status)
	assert.Equal(t, 0, got.Stock)

	paid := 0
	orders, err := store.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	for _, o := range orders {
		if o.PaymentStatus == models.PaymentStatusPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestCheckoutMultiCopyListingStaysAvailable(t *testing.T) {
	store := newFakeStore()
	seller, _ := seedMarket(store)
	account := store.addAccount(models.Account{
		ID:       2,
		Title:    "Steam Cüzdan Kodu 100 TL",
		Game:     "Steam",
		Price:    100,
		Stock:    5,
		Status:   models.AccountStatusAvailable,
		SellerID: seller.ID,
	})
	svc, _ := newTestCheckout(store, &fakeGateway{})

	req := cartRequest(account, "key-9")
	req.Items[0].Quantity = 2

	result, err := svc.Checkout(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.TotalAmount)

	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusAvailable, got.Status)
	assert.Equal(t, 3, got.Stock)
}

func TestPurchaseWithBalance(t *testing.T) {
	store := newFakeStore()
	seller, account := seedMarket(store)
	buyer := store.addUser(models.User{
		ID:        30,
		Email:     "bakiye@example.com",
		FirstName: "Emre",
		LastName:  "Şahin",
		Balance:   1500,
		Role:      models.RoleUser,
	})
	svc, events := newTestCheckout(store, &fakeGateway{fail: true})

	result, err := svc.PurchaseWithBalance(context.Background(), buyer.ID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Title, result.Account.Title)
	assert.Equal(t, "Ayşe Yılmaz", result.Seller)

	order, err := store.GetOrderByNo(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "balance", order.PaymentMethod)
	assert.Equal(t, int64(1000), order.Amount)
	assert.Equal(t, int64(100), order.Commission)

	buyerAfter, err := store.GetUserByID(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), buyerAfter.Balance)
	assert.Equal(t, 1, buyerAfter.TotalPurchases)

	sellerAfter, err := store.GetUserByID(context.Background(), seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), sellerAfter.Balance)

	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusSold, got.Status)

	assert.Len(t, events.completed, 1)
}

func TestPurchaseWithBalanceInsufficient(t *testing.T) {
	store := newFakeStore()
	_, account := seedMarket(store)
	buyer := store.addUser(models.User{
		ID: 31, Email: "fakir@example.com", FirstName: "Ali", LastName: "Veli",
		Balance: 500, Role: models.RoleUser,
	})
	svc, _ := newTestCheckout(store, &fakeGateway{})

	_, err := svc.PurchaseWithBalance(context.Background(), buyer.ID, account.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	got, err := store.GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusAvailable, got.Status)

	buyerAfter, err := store.GetUserByID(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), buyerAfter.Balance)
}

func TestPurchaseWithBalanceUnavailable(t *testing.T) {
	store := newFakeStore()
	seller, _ := seedMarket(store)
	account := store.addAccount(models.Account{
		ID: 3, Title: "Satılmış Hesap", Game: "LoL", Price: 700,
		Stock: 0, Status: models.AccountStatusSold, SellerID: seller.ID,
	})
	buyer := store.addUser(models.User{
		ID: 32, Email: "gec@example.com", FirstName: "Can", LastName: "Öz",
		Balance: 5000, Role: models.RoleUser,
	})
	svc, _ := newTestCheckout(store, &fakeGateway{})

	_, err := svc.PurchaseWithBalance(context.Background(), buyer.ID, account.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}
