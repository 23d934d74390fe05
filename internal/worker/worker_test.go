package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hesapduragi/internal/models"
	"hesapduragi/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	processed map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{processed: make(map[string]bool)}
}

func (l *memoryLedger) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	return l.processed[eventID], nil
}

func (l *memoryLedger) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	l.processed[eventID] = true
	return nil
}

type memorySink struct {
	totals map[string]int64
}

func newMemorySink() *memorySink {
	return &memorySink{totals: make(map[string]int64)}
}

func (s *memorySink) IncrementDailySales(ctx context.Context, day string, amount int64) error {
	s.totals[day] += amount
	return nil
}

func completedMessage(t *testing.T, eventID string, amount int64, ts time.Time) kafka.Message {
	t.Helper()
	event := models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeOrderCompleted,
			Timestamp: ts,
		},
		OrderID: 1,
		OrderNo: "HD-20260831120000-ABCDEF",
		Amount:  amount,
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestStatsWorkerCountsCompletedOrders(t *testing.T) {
	ledger := newMemoryLedger()
	sink := newMemorySink()
	w := NewStatsWorker(nil, ledger, sink)

	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	err := w.HandleMessage(context.Background(), completedMessage(t, "evt-1", 1000, ts))
	require.NoError(t, err)

	assert.Equal(t, int64(1000), sink.totals["2026-08-31"])
	assert.True(t, ledger.processed["evt-1"])
}

func TestStatsWorkerIgnoresRedelivery(t *testing.T) {
	ledger := newMemoryLedger()
	sink := newMemorySink()
	w := NewStatsWorker(nil, ledger, sink)

	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	msg := completedMessage(t, "evt-1", 1000, ts)

	require.NoError(t, w.HandleMessage(context.Background(), msg))
	require.NoError(t, w.HandleMessage(context.Background(), msg))

	assert.Equal(t, int64(1000), sink.totals["2026-08-31"])
}

func TestStatsWorkerIgnoresOtherEventTypes(t *testing.T) {
	ledger := newMemoryLedger()
	sink := newMemorySink()
	w := NewStatsWorker(nil, ledger, sink)

	event := models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: 2,
		Reason:  "payment_failed",
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, w.HandleMessage(context.Background(), kafka.Message{Value: value}))
	assert.Empty(t, sink.totals)
	assert.Empty(t, ledger.processed)
}

type sweepFixture struct {
	orders   map[int64]*models.Order
	accounts map[int64]string
}

func newSweepFixture() *sweepFixture {
	return &sweepFixture{
		orders:   make(map[int64]*models.Order),
		accounts: make(map[int64]string),
	}
}

func (f *sweepFixture) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var stale []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			stale = append(stale, *o)
		}
	}
	return stale, nil
}

func (f *sweepFixture) UpdateOrderPayment(ctx context.Context, orderID int64, status, paymentStatus string) error {
	o := f.orders[orderID]
	o.Status = status
	o.PaymentStatus = paymentStatus
	return nil
}

func (f *sweepFixture) ReserveAccount(ctx context.Context, accountID int64) (bool, error) {
	if f.accounts[accountID] != models.AccountStatusAvailable {
		return false, nil
	}
	f.accounts[accountID] = models.AccountStatusPending
	return true, nil
}

func (f *sweepFixture) ReleaseAccount(ctx context.Context, accountID int64) error {
	if f.accounts[accountID] == models.AccountStatusPending {
		f.accounts[accountID] = models.AccountStatusAvailable
	}
	return nil
}

func (f *sweepFixture) FinalizeAccountSale(ctx context.Context, accountID int64, quantity int, buyerID string) error {
	f.accounts[accountID] = models.AccountStatusSold
	return nil
}

func TestSweepOnceReleasesStaleOrders(t *testing.T) {
	fixture := newSweepFixture()
	fixture.accounts[1] = models.AccountStatusPending
	fixture.orders[100] = &models.Order{
		ID:        100,
		OrderNo:   "HD-20260831110000-STALE1",
		AccountID: 1,
		Status:    models.OrderStatusPending,
		CreatedAt: time.Now().Add(-10 * time.Minute),
	}

	// fresh pending order inside the timeout window must survive
	fixture.accounts[2] = models.AccountStatusPending
	fixture.orders[101] = &models.Order{
		ID:        101,
		OrderNo:   "HD-20260831120000-FRESH1",
		AccountID: 2,
		Status:    models.OrderStatusPending,
		CreatedAt: time.Now(),
	}

	reserver := service.NewReserver(fixture, nil)
	r := NewReconciler(fixture, reserver, 5*time.Minute, time.Minute)

	require.NoError(t, r.SweepOnce(context.Background()))

	assert.Equal(t, models.OrderStatusCancelled, fixture.orders[100].Status)
	assert.Equal(t, models.PaymentStatusFailed, fixture.orders[100].PaymentStatus)
	assert.Equal(t, models.AccountStatusAvailable, fixture.accounts[1])

	assert.Equal(t, models.OrderStatusPending, fixture.orders[101].Status)
	assert.Equal(t, models.AccountStatusPending, fixture.accounts[2])
}
