package models

import (
	"time"
)

// TriggerCode classifies the administrative act behind a contract event.
type TriggerCode string

const (
	TriggerMES         TriggerCode = "MES"         // service start on an existing installation
	TriggerPMES        TriggerCode = "PMES"        // first-ever service start
	TriggerCFNE        TriggerCode = "CFNE"        // incoming supplier change
	TriggerRES         TriggerCode = "RES"         // termination
	TriggerCFNS        TriggerCode = "CFNS"        // outgoing supplier change
	TriggerMCT         TriggerCode = "MCT"         // mid-contract modification
	TriggerFacturation TriggerCode = "FACTURATION" // synthetic monthly billing point
)

// IsServiceStart reports whether the trigger opens a contract.
func (t TriggerCode) IsServiceStart() bool {
	return t == TriggerMES || t == TriggerPMES || t == TriggerCFNE
}

// IsServiceEnd reports whether the trigger closes a contract.
func (t TriggerCode) IsServiceEnd() bool {
	return t == TriggerRES || t == TriggerCFNS
}

// IsStructural reports whether the trigger is an entry or exit event. Those
// always open or close a billing period regardless of what actually changed.
func (t TriggerCode) IsStructural() bool {
	return t.IsServiceStart() || t.IsServiceEnd()
}

// ValidTriggerCode reports whether code is a member of the trigger enum.
func ValidTriggerCode(code TriggerCode) bool {
	switch code {
	case TriggerMES, TriggerPMES, TriggerCFNE, TriggerRES, TriggerCFNS, TriggerMCT, TriggerFacturation:
		return true
	}
	return false
}

// EventKind distinguishes real utility-feed events from billing points this
// service injects itself.
type EventKind string

const (
	EventKindContractual EventKind = "contractual"
	EventKindSynthetic   EventKind = "synthetic"
)

// Source tags for readings and events.
const (
	SourceContractFlux     = "flux_C15"          // readings derived from contract events
	SourcePeriodicFlux     = "flux_R151"         // periodic daily index feed
	SourceBillingSynthesis = "synthese_mensuelle" // injected monthly billing events
	SourceBillingPlaceholder = "FACTURATION"     // placeholder reading for an unmatched billing point
)

// EventSnapshot is one side of the before/after meter picture attached to a
// contract event (meter swap, calendar change).
type EventSnapshot struct {
	ReadAt     time.Time      `json:"read_at"`
	CalendarID *MeterCalendar `json:"calendar_id,omitempty"`
	Registers  RegisterValues `json:"registers"`
}

// IsEmpty reports whether the snapshot carries neither a calendar nor any
// register value.
func (s *EventSnapshot) IsEmpty() bool {
	return s == nil || (s.CalendarID == nil && s.Registers.IsEmpty())
}

// ContractEvent is one real or synthetic occurrence affecting a contract.
// Within one ContractRef events are totally ordered by Timestamp; duplicate
// timestamps are the upstream producer's responsibility.
type ContractEvent struct {
	ID              string      `json:"id" db:"id"`
	ContractRef     string      `json:"contract_ref" db:"contract_ref" validate:"required"`
	DeliveryPointID string      `json:"delivery_point_id" db:"delivery_point_id" validate:"required"`
	Timestamp       time.Time   `json:"event_at" db:"event_at" validate:"required"`
	Trigger         TriggerCode `json:"trigger_code" db:"trigger_code" validate:"required"`
	Kind            EventKind   `json:"event_kind" db:"event_kind" validate:"required"`
	Source          string      `json:"source" db:"source"`

	// Contractual attributes, forward-filled onto synthetic events.
	CustomerSegment string  `json:"customer_segment" db:"customer_segment"`
	ContractState   string  `json:"contract_state" db:"contract_state"` // "EN SERVICE", "RESILIE", ...
	MeterSerial     string  `json:"meter_serial" db:"meter_serial"`
	SubscribedPower float64 `json:"subscribed_power" db:"subscribed_power" validate:"gte=0"` // kVA
	TariffFormula   string  `json:"tariff_formula" db:"tariff_formula"`

	// Before/after reading snapshot, present on events that touch the meter.
	Before *EventSnapshot `json:"before,omitempty"`
	After  *EventSnapshot `json:"after,omitempty"`

	// Derived by the break-point detector.
	ImpactsSubscription bool   `json:"impacts_subscription" db:"impacts_subscription"`
	ImpactsEnergy       bool   `json:"impacts_energy" db:"impacts_energy"`
	ChangeSummary       string `json:"change_summary" db:"change_summary"`
}

// IsSynthetic reports whether the event is an injected billing point.
func (e *ContractEvent) IsSynthetic() bool {
	return e.Kind == EventKindSynthetic || e.Trigger == TriggerFacturation
}
