package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/enerflux/voltcore/pkg/models"
)

// Validator checks input tables against their declared contracts.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a table-contract validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// column names reported to the caller, matching the wire schema rather than
// the Go field names.
var contractEventColumns = map[string]string{
	"ContractRef":     "contract_ref",
	"DeliveryPointID": "delivery_point_id",
	"Timestamp":       "event_at",
	"Trigger":         "trigger_code",
	"Kind":            "event_kind",
	"SubscribedPower": "subscribed_power",
}

var meterReadingColumns = map[string]string{
	"DeliveryPointID": "delivery_point_id",
	"ReadAt":          "read_at",
	"Source":          "source",
	"SequenceOrder":   "sequence_order",
	"Unit":            "unit",
}

// ValidateContractEvents checks the event-history table. It returns the first
// violation found, or nil when the table conforms.
func (v *Validator) ValidateContractEvents(events []models.ContractEvent) error {
	const table = "contract_events"

	for i := range events {
		e := &events[i]
		if err := v.validate.Struct(e); err != nil {
			return firstViolation(table, i, contractEventColumns, err)
		}
		if e.Timestamp.IsZero() {
			return violation(table, "event_at", i, "timestamp is required")
		}
		if !models.ValidTriggerCode(e.Trigger) {
			return violation(table, "trigger_code", i, fmt.Sprintf("unknown trigger code %q", e.Trigger))
		}
		if e.Kind != models.EventKindContractual && e.Kind != models.EventKindSynthetic {
			return violation(table, "event_kind", i, fmt.Sprintf("unknown event kind %q", e.Kind))
		}
		if err := validateSnapshot(table, "before_calendar_id", i, e.Before); err != nil {
			return err
		}
		if err := validateSnapshot(table, "after_calendar_id", i, e.After); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMeterReadings checks the reading table. It returns the first
// violation found, or nil when the table conforms.
func (v *Validator) ValidateMeterReadings(readings []models.MeterReading) error {
	const table = "meter_readings"

	for i := range readings {
		r := &readings[i]
		if err := v.validate.Struct(r); err != nil {
			return firstViolation(table, i, meterReadingColumns, err)
		}
		if r.ReadAt.IsZero() {
			return violation(table, "read_at", i, "timestamp is required")
		}
		switch r.Unit {
		case models.UnitKWh, models.UnitWh, models.UnitMWh:
		default:
			return violation(table, "unit", i, fmt.Sprintf("unit %q is not one of kWh, Wh, MWh", r.Unit))
		}
		if r.CalendarID != nil && !models.ValidMeterCalendar(*r.CalendarID) {
			return violation(table, "calendar_id", i, fmt.Sprintf("calendar %q outside enumerated set", *r.CalendarID))
		}
	}
	return nil
}

// ValidateContractEvent checks a single event, used on ingestion.
func (v *Validator) ValidateContractEvent(event *models.ContractEvent) error {
	return v.ValidateContractEvents([]models.ContractEvent{*event})
}

// ValidateMeterReading checks a single reading, used on ingestion.
func (v *Validator) ValidateMeterReading(reading *models.MeterReading) error {
	return v.ValidateMeterReadings([]models.MeterReading{*reading})
}

func validateSnapshot(table, column string, row int, snap *models.EventSnapshot) error {
	if snap == nil || snap.CalendarID == nil {
		return nil
	}
	if !models.ValidMeterCalendar(*snap.CalendarID) {
		return violation(table, column, row, fmt.Sprintf("calendar %q outside enumerated set", *snap.CalendarID))
	}
	return nil
}

func firstViolation(table string, row int, columns map[string]string, err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return violation(table, "", row, err.Error())
	}
	fieldErr := errs[0]
	column, ok := columns[fieldErr.Field()]
	if !ok {
		column = fieldErr.Field()
	}
	return violation(table, column, row, fmt.Sprintf("failed %q constraint", fieldErr.Tag()))
}
