package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentGateway is the integration point for a real payment provider. A
// charge either settles with a provider transaction ID or fails with a
// payment-kind error.
type PaymentGateway interface {
	Charge(ctx context.Context, amount int64, method string) (string, error)
}

// SimulatedGateway stands in for a real provider: a fixed delay models
// gateway latency and a configured success probability decides the outcome.
type SimulatedGateway struct {
	delay       time.Duration
	successRate float64
	logger      *zap.Logger
}

// NewSimulatedGateway creates a simulated gateway
func NewSimulatedGateway(delay time.Duration, successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		delay:       delay,
		successRate: successRate,
		logger:      util.GetLogger(),
	}
}

// Charge runs a simulated payment for the given total
func (g *SimulatedGateway) Charge(ctx context.Context, amount int64, method string) (string, error) {
	ctx, span := util.StartSpan(ctx, "SimulatedGateway.Charge")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentLatency.Observe(time.Since(start).Seconds())
	}()

	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if rand.Float64() >= g.successRate {
		util.PaymentFailedTotal.Inc()
		g.logger.Warn("Payment declined",
			zap.Int64("amount", amount),
			zap.String("method", method))
		return "", apperrors.Payment("Ödeme işlemi başarısız oldu, lütfen tekrar deneyin")
	}

	txID := fmt.Sprintf("TXN-%s", uuid.New().String()[:8])
	util.PaymentSuccessTotal.Inc()
	g.logger.Info("Payment settled",
		zap.Int64("amount", amount),
		zap.String("method", method),
		zap.String("tx_id", txID))
	return txID, nil
}
