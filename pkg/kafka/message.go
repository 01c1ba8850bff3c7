package kafka

import (
	"encoding/json"
	"time"

	"github.com/enerflux/voltcore/pkg/models"
)

// Message types carried on the flux ingestion topic.
const (
	MessageTypeContractEvent = "flux.contract_event" // C15 contract lifecycle rows
	MessageTypeMeterReading  = "flux.meter_reading"  // R151 periodic index rows
	MessageTypeComputeBatch  = "billing.compute"     // request to compute a billing batch
)

// FluxEnvelope is the wire format shared by all ingestion messages. The
// payload shape depends on Type.
type FluxEnvelope struct {
	Type            string          `json:"type"`
	DeliveryPointID string          `json:"delivery_point_id,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
	Payload         json.RawMessage `json:"payload"`
}

// ComputeRequest asks the pipeline to run one billing batch. An empty
// DeliveryPointIDs slice means the whole perimeter. Reference anchors the
// billing month grid; zero means "now".
type ComputeRequest struct {
	BatchID          string    `json:"batch_id"`
	DeliveryPointIDs []string  `json:"delivery_point_ids,omitempty"`
	Reference        time.Time `json:"reference,omitempty"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Envelope *FluxEnvelope
}

// ParseEnvelope parses the message value as a flux envelope.
func (m *IncomingMessage) ParseEnvelope() error {
	var env FluxEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	m.Envelope = &env
	return nil
}

// GetType returns the message type, preferring the parsed envelope and
// falling back to the type header.
func (m *IncomingMessage) GetType() string {
	if m.Envelope != nil && m.Envelope.Type != "" {
		return m.Envelope.Type
	}
	return m.Headers["type"]
}

// GetDeliveryPointID returns the delivery point the message concerns.
func (m *IncomingMessage) GetDeliveryPointID() string {
	if m.Envelope != nil && m.Envelope.DeliveryPointID != "" {
		return m.Envelope.DeliveryPointID
	}
	return m.Key
}

func (m *IncomingMessage) IsContractEvent() bool {
	return m.GetType() == MessageTypeContractEvent
}

func (m *IncomingMessage) IsMeterReading() bool {
	return m.GetType() == MessageTypeMeterReading
}

func (m *IncomingMessage) IsComputeRequest() bool {
	return m.GetType() == MessageTypeComputeBatch
}

// ParseContractEvent parses the payload as a contract event.
func (m *IncomingMessage) ParseContractEvent() (*models.ContractEvent, error) {
	var event models.ContractEvent
	if err := json.Unmarshal(m.payload(), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ParseMeterReading parses the payload as a meter reading.
func (m *IncomingMessage) ParseMeterReading() (*models.MeterReading, error) {
	var reading models.MeterReading
	if err := json.Unmarshal(m.payload(), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// ParseComputeRequest parses the payload as a batch compute request.
func (m *IncomingMessage) ParseComputeRequest() (*ComputeRequest, error) {
	var req ComputeRequest
	if err := json.Unmarshal(m.payload(), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (m *IncomingMessage) payload() []byte {
	if m.Envelope != nil && len(m.Envelope.Payload) > 0 {
		return m.Envelope.Payload
	}
	return m.Value
}
