package worker

import (
	"context"
	"time"

	"hesapduragi/internal/models"
	"hesapduragi/internal/service"
	"hesapduragi/internal/util"

	"go.uber.org/zap"
)

// SweepStore covers the order reads and writes the sweep needs
type SweepStore interface {
	ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID int64, status, paymentStatus string) error
}

// Reconciler sweeps up the debris of interrupted checkouts: orders stuck
// pending past the order timeout are cancelled and their reserved accounts
// put back on sale. Without it a crash between reservation and finalization
// leaves listings unavailable but unsold forever.
type Reconciler struct {
	store    SweepStore
	reserver *service.Reserver
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(store SweepStore, reserver *service.Reserver, timeout, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		reserver: reserver,
		timeout:  timeout,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep on a ticker until ctx is cancelled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting order reconciler",
		zap.Duration("timeout", r.timeout),
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Order reconciler stopped")
			return
		case <-ticker.C:
			if err := r.SweepOnce(ctx); err != nil {
				r.logger.Error("Reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce cancels every order stuck pending past the timeout and releases
// its account. Returns the first listing error; per-order failures are
// logged and retried on the next tick.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-r.timeout)
	stale, err := r.store.ListStalePendingOrders(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, order := range stale {
		if err := r.store.UpdateOrderPayment(ctx, order.ID, models.OrderStatusCancelled, models.PaymentStatusFailed); err != nil {
			r.logger.Error("Failed to cancel stale order",
				zap.String("order_no", order.OrderNo),
				zap.Error(err))
			continue
		}
		if err := r.reserver.Release(ctx, order.AccountID); err != nil {
			r.logger.Error("Failed to release account for stale order",
				zap.String("order_no", order.OrderNo),
				zap.Int64("account_id", order.AccountID),
				zap.Error(err))
		}
		util.OrdersReconciledTotal.Inc()
		r.logger.Warn("Reconciled stale pending order",
			zap.String("order_no", order.OrderNo),
			zap.Int64("account_id", order.AccountID))
	}
	return nil
}
