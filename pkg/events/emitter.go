// Package events handles event emission for billing batch lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/enerflux/voltcore/pkg/kafka"
	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes billing lifecycle events.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitPeriodsComputed emits a billing.batch.computed event carrying the full
// period sets of one batch.
func (e *Emitter) EmitPeriodsComputed(ctx context.Context, batchID string, subscriptionPeriods []models.SubscriptionPeriod, energyPeriods []models.EnergyPeriod) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPeriodsComputed")
	defer span.End()

	event := &BatchComputedEvent{
		BaseEvent:           NewBaseEvent(EventTypeBatchComputed),
		BatchID:             batchID,
		SubscriptionPeriods: subscriptionPeriods,
		EnergyPeriods:       energyPeriods,
		SubscriptionCount:   len(subscriptionPeriods),
		EnergyCount:         len(energyPeriods),
	}

	err := e.producer.Publish(ctx, &kafka.OutgoingEvent{
		EventType: string(EventTypeBatchComputed),
		Key:       batchID,
		Payload:   event,
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit batch computed event")
		return err
	}
	return nil
}

// EmitBatchFailed emits a billing.batch.failed event.
func (e *Emitter) EmitBatchFailed(ctx context.Context, batchID string, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchFailed")
	defer span.End()

	event := &BatchFailedEvent{
		BaseEvent: NewBaseEvent(EventTypeBatchFailed),
		BatchID:   batchID,
		Reason:    reason,
	}

	err := e.producer.Publish(ctx, &kafka.OutgoingEvent{
		EventType: string(EventTypeBatchFailed),
		Key:       batchID,
		Payload:   event,
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit batch failed event")
		return err
	}
	return nil
}

// EmitHistoryStaged emits a perimeter.history.staged event.
func (e *Emitter) EmitHistoryStaged(ctx context.Context, deliveryPointID string, count int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitHistoryStaged")
	defer span.End()

	event := &HistoryStagedEvent{
		BaseEvent:       NewBaseEvent(EventTypeHistoryStaged),
		DeliveryPointID: deliveryPointID,
		EventCount:      count,
	}

	return e.producer.Publish(ctx, &kafka.OutgoingEvent{
		EventType: string(EventTypeHistoryStaged),
		Key:       deliveryPointID,
		Payload:   event,
	})
}

// EmitReadingsStaged emits a readings.staged event.
func (e *Emitter) EmitReadingsStaged(ctx context.Context, deliveryPointID string, count int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReadingsStaged")
	defer span.End()

	event := &ReadingsStagedEvent{
		BaseEvent:       NewBaseEvent(EventTypeReadingsStaged),
		DeliveryPointID: deliveryPointID,
		ReadingCount:    count,
	}

	return e.producer.Publish(ctx, &kafka.OutgoingEvent{
		EventType: string(EventTypeReadingsStaged),
		Key:       deliveryPointID,
		Payload:   event,
	})
}
