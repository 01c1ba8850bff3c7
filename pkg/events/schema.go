package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/enerflux/voltcore/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	// Batch lifecycle events
	EventTypeBatchComputed EventType = "billing.batch.computed"
	EventTypeBatchFailed   EventType = "billing.batch.failed"

	// Ingestion events
	EventTypeHistoryStaged  EventType = "perimeter.history.staged"
	EventTypeReadingsStaged EventType = "readings.staged"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// BatchComputedEvent is emitted after a billing batch has been computed and
// persisted. It carries counts plus the full period sets so downstream
// pricing does not have to query them back.
type BatchComputedEvent struct {
	BaseEvent
	BatchID             string                      `json:"batch_id"`
	SubscriptionPeriods []models.SubscriptionPeriod `json:"subscription_periods"`
	EnergyPeriods       []models.EnergyPeriod       `json:"energy_periods"`
	SubscriptionCount   int                         `json:"subscription_count"`
	EnergyCount         int                         `json:"energy_count"`
}

// BatchFailedEvent is emitted when a billing batch could not be computed.
type BatchFailedEvent struct {
	BaseEvent
	BatchID string `json:"batch_id"`
	Reason  string `json:"reason"`
}

// HistoryStagedEvent is emitted when new contract events have been staged.
type HistoryStagedEvent struct {
	BaseEvent
	DeliveryPointID string `json:"delivery_point_id"`
	EventCount      int    `json:"event_count"`
}

// ReadingsStagedEvent is emitted when new meter readings have been staged.
type ReadingsStagedEvent struct {
	BaseEvent
	DeliveryPointID string `json:"delivery_point_id"`
	ReadingCount    int    `json:"reading_count"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
