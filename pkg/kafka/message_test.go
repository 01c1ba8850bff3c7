package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerflux/voltcore/pkg/models"
)

func TestParseEnvelope(t *testing.T) {
	msg := &IncomingMessage{
		Key: "PDL001",
		Value: []byte(`{
			"type": "flux.contract_event",
			"delivery_point_id": "PDL001",
			"payload": {"contract_ref": "CT001", "delivery_point_id": "PDL001", "trigger_code": "MES"}
		}`),
	}

	require.NoError(t, msg.ParseEnvelope())
	assert.True(t, msg.IsContractEvent())
	assert.Equal(t, "PDL001", msg.GetDeliveryPointID())

	event, err := msg.ParseContractEvent()
	require.NoError(t, err)
	assert.Equal(t, "CT001", event.ContractRef)
	assert.Equal(t, models.TriggerMES, event.Trigger)
}

func TestParseEnvelopeMalformed(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{not json`)}
	assert.Error(t, msg.ParseEnvelope())
}

func TestGetTypeFallsBackToHeader(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"type": MessageTypeMeterReading},
		Value:   []byte(`{"delivery_point_id": "PDL001", "read_at": "2024-02-01T00:00:00Z", "source": "flux_R151", "unit": "kWh"}`),
	}

	assert.True(t, msg.IsMeterReading())

	// Without an envelope the whole value is the payload.
	reading, err := msg.ParseMeterReading()
	require.NoError(t, err)
	assert.Equal(t, "PDL001", reading.DeliveryPointID)
	assert.Equal(t, models.SourcePeriodicFlux, reading.Source)
}

func TestGetDeliveryPointIDFallsBackToKey(t *testing.T) {
	msg := &IncomingMessage{Key: "PDL042", Headers: map[string]string{"type": MessageTypeMeterReading}}
	assert.Equal(t, "PDL042", msg.GetDeliveryPointID())
}

func TestParseComputeRequest(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{
			"type": "billing.compute",
			"payload": {"batch_id": "batch-7", "delivery_point_ids": ["PDL001", "PDL002"]}
		}`),
	}

	require.NoError(t, msg.ParseEnvelope())
	require.True(t, msg.IsComputeRequest())

	req, err := msg.ParseComputeRequest()
	require.NoError(t, err)
	assert.Equal(t, "batch-7", req.BatchID)
	assert.Equal(t, []string{"PDL001", "PDL002"}, req.DeliveryPointIDs)
	assert.True(t, req.Reference.IsZero(), "zero reference means now")
}
