package perimeter

import (
	"github.com/enerflux/voltcore/pkg/models"
)

// ExtractEventReadings turns the before/after snapshots of contractual events
// into standalone meter readings. Each event side becomes one reading at the
// event timestamp: the before picture with sequence order 0, the after
// picture with sequence order 1, both tagged with the contract-flux source.
// Sides with no calendar and no register value are dropped.
func ExtractEventReadings(events []models.ContractEvent) []models.MeterReading {
	readings := make([]models.MeterReading, 0, 2*len(events))
	for i := range events {
		e := &events[i]
		if e.IsSynthetic() {
			continue
		}
		if r, ok := snapshotReading(e, e.Before, models.SequenceBefore); ok {
			readings = append(readings, r)
		}
		if r, ok := snapshotReading(e, e.After, models.SequenceAfter); ok {
			readings = append(readings, r)
		}
	}
	return readings
}

func snapshotReading(e *models.ContractEvent, snap *models.EventSnapshot, order int) (models.MeterReading, bool) {
	if snap.IsEmpty() {
		return models.MeterReading{}, false
	}
	contractRef := e.ContractRef
	formula := e.TariffFormula
	return models.MeterReading{
		DeliveryPointID: e.DeliveryPointID,
		ReadAt:          e.Timestamp,
		Source:          models.SourceContractFlux,
		SequenceOrder:   order,
		ContractRef:     &contractRef,
		TariffFormula:   &formula,
		CalendarID:      snap.CalendarID,
		Unit:            models.UnitKWh,
		Precision:       models.UnitKWh,
		Registers:       snap.Registers,
	}, true
}
