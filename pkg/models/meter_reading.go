package models

import (
	"time"
)

// Reading units accepted on ingestion. Everything is normalized to kWh.
const (
	UnitKWh = "kWh"
	UnitWh  = "Wh"
	UnitMWh = "MWh"
)

// Sequence order values for same-instant readings. A contract event produces
// two readings at the same timestamp: the closing picture of the old state and
// the opening picture of the new one.
const (
	SequenceBefore = 0
	SequenceAfter  = 1
)

// MeterReading is one timestamped index snapshot for a delivery point.
// At most one reading may survive deduplication for a given
// (contract_ref, read_at, sequence_order).
type MeterReading struct {
	DeliveryPointID string    `json:"delivery_point_id" db:"delivery_point_id" validate:"required"`
	ReadAt          time.Time `json:"read_at" db:"read_at" validate:"required"`
	Source          string    `json:"source" db:"source" validate:"required"`
	SequenceOrder   int       `json:"sequence_order" db:"sequence_order" validate:"gte=0,lte=1"`

	// Contract context, forward-filled from the most recent contractual event
	// during chronology reconciliation. Nil on raw periodic readings.
	ContractRef   *string `json:"contract_ref,omitempty" db:"contract_ref"`
	TariffFormula *string `json:"tariff_formula,omitempty" db:"tariff_formula"`

	CalendarID *MeterCalendar `json:"calendar_id,omitempty" db:"calendar_id"`
	Unit       string         `json:"unit" db:"unit" validate:"required"`
	Precision  string         `json:"precision_unit" db:"precision_unit"`
	Registers  RegisterValues `json:"registers"`
}

// NormalizeUnit converts the register values to kWh when the reading was
// delivered in Wh or MWh. Unit conversion is an upstream responsibility; this
// is the defensive re-check.
func (r MeterReading) NormalizeUnit() MeterReading {
	switch r.Unit {
	case UnitWh:
		r.Registers = r.Registers.Scale(0.001)
	case UnitMWh:
		r.Registers = r.Registers.Scale(1000)
	default:
		return r
	}
	r.Unit = UnitKWh
	return r
}
