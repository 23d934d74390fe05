package service

import (
	"context"
	"time"

	"hesapduragi/internal/util"

	"go.uber.org/zap"
)

// ReservationStore is the authoritative reservation primitive. ReserveAccount
// must be an atomic conditional update so that of two concurrent checkouts
// for a single-stock account at most one succeeds.
type ReservationStore interface {
	ReserveAccount(ctx context.Context, accountID int64) (bool, error)
	ReleaseAccount(ctx context.Context, accountID int64) error
	FinalizeAccountSale(ctx context.Context, accountID int64, quantity int, buyerID string) error
}

// AvailabilityMirror is the Redis-side copy of listing availability, used for
// fast rejection and storefront display. It is advisory; the store decides.
type AvailabilityMirror interface {
	ReserveAccount(ctx context.Context, accountID int64, quantity int) (bool, error)
	ReleaseAccount(ctx context.Context, accountID int64) error
	CommitSale(ctx context.Context, accountID int64, quantity int) error
}

// Reserver coordinates the reserve/release/commit cycle across the database
// and the Redis mirror
type Reserver struct {
	store  ReservationStore
	mirror AvailabilityMirror
	logger *zap.Logger
}

// NewReserver creates a new reserver. mirror may be nil when Redis is not
// configured; reservations then run against the database alone.
func NewReserver(store ReservationStore, mirror AvailabilityMirror) *Reserver {
	return &Reserver{
		store:  store,
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// Reserve takes an account off sale ahead of payment. The mirror is tried
// first as a cheap rejection; the database conditional update decides.
func (r *Reserver) Reserve(ctx context.Context, accountID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "Reserver.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	mirrored := false
	if r.mirror != nil {
		ok, err := r.mirror.ReserveAccount(ctx, accountID, quantity)
		if err != nil {
			r.logger.Warn("Mirror reservation failed, falling through to database",
				zap.Int64("account_id", accountID),
				zap.Error(err))
		} else {
			mirrored = true
			if !ok {
				util.ReservationsFailedTotal.WithLabelValues("mirror_unavailable").Inc()
				return false, nil
			}
		}
	}

	ok, err := r.store.ReserveAccount(ctx, accountID)
	if err != nil {
		if mirrored {
			r.releaseMirror(ctx, accountID)
		}
		util.ReservationsFailedTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if !ok {
		if mirrored {
			r.releaseMirror(ctx, accountID)
		}
		util.ReservationsFailedTotal.WithLabelValues("unavailable").Inc()
		return false, nil
	}

	return true, nil
}

// Release puts a reserved account back on sale (compensation)
func (r *Reserver) Release(ctx context.Context, accountID int64) error {
	ctx, span := util.StartSpan(ctx, "Reserver.Release")
	defer span.End()

	r.releaseMirror(ctx, accountID)
	return r.store.ReleaseAccount(ctx, accountID)
}

// Commit settles a reserved account after payment: stock is decremented and
// the listing goes sold when the last copy is gone.
func (r *Reserver) Commit(ctx context.Context, accountID int64, quantity int, buyerID string) error {
	ctx, span := util.StartSpan(ctx, "Reserver.Commit")
	defer span.End()

	if err := r.store.FinalizeAccountSale(ctx, accountID, quantity, buyerID); err != nil {
		return err
	}

	if r.mirror != nil {
		if err := r.mirror.CommitSale(ctx, accountID, quantity); err != nil {
			r.logger.Error("Failed to commit sale in mirror",
				zap.Int64("account_id", accountID),
				zap.Error(err))
		}
	}
	return nil
}

func (r *Reserver) releaseMirror(ctx context.Context, accountID int64) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.ReleaseAccount(ctx, accountID); err != nil {
		r.logger.Error("Failed to release account in mirror",
			zap.Int64("account_id", accountID),
			zap.Error(err))
	}
}
