package worker

import (
	"context"
	"encoding/json"

	"hesapduragi/internal/broker"
	"hesapduragi/internal/models"
	"hesapduragi/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventLedger records which events have already been applied
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// StatsSink accumulates dashboard counters
type StatsSink interface {
	IncrementDailySales(ctx context.Context, day string, amount int64) error
}

// StatsWorker consumes order events and maintains the admin dashboard's
// daily sales counters. Idempotent through the processed-events ledger, so
// redelivered messages do not double-count.
type StatsWorker struct {
	consumer *broker.Consumer
	ledger   EventLedger
	sink     StatsSink
	logger   *zap.Logger
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(consumer *broker.Consumer, ledger EventLedger, sink StatsSink) *StatsWorker {
	return &StatsWorker{
		consumer: consumer,
		ledger:   ledger,
		sink:     sink,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *StatsWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stats worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *StatsWorker) Stop() error {
	w.logger.Info("Stopping stats worker")
	return w.consumer.Close()
}

// HandleMessage applies one order event to the counters
func (w *StatsWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		w.logger.Error("Failed to unmarshal event", zap.Error(err))
		return err
	}

	if base.EventType != models.EventTypeOrderCompleted {
		return nil
	}

	var event models.OrderCompletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Error("Failed to unmarshal OrderCompleted event", zap.Error(err))
		return err
	}

	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	day := event.Timestamp.Format("2006-01-02")
	if err := w.sink.IncrementDailySales(ctx, day, event.Amount); err != nil {
		return err
	}

	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
	return nil
}
