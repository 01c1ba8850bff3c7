package models

import (
	"time"
)

// SubscriptionPeriod is a maximal [Start, End) interval during which the
// subscribed power and tariff formula are constant for one contract. For a
// fixed ContractRef the periods tile the time axis: each period's End equals
// the next period's Start.
type SubscriptionPeriod struct {
	ContractRef     string    `json:"contract_ref" db:"contract_ref"`
	DeliveryPointID string    `json:"delivery_point_id" db:"delivery_point_id"`
	MonthLabel      string    `json:"month_label" db:"month_label"` // "janvier 2025"
	StartLabel      string    `json:"start_label" db:"start_label"` // "1 janvier 2025"
	EndLabel        string    `json:"end_label" db:"end_label"`     // "31 janvier 2025" or "en cours"
	TariffFormula   string    `json:"tariff_formula" db:"tariff_formula"`
	SubscribedPower float64   `json:"subscribed_power" db:"subscribed_power"`
	DurationDays    int       `json:"duration_days" db:"duration_days"`
	Start           time.Time `json:"start" db:"start_at"`
	End             time.Time `json:"end" db:"end_at"`
}

// EnergyPeriod is a maximal [Start, End) interval bounded by two successive
// reconciled readings for one delivery point, with per-register energy deltas.
type EnergyPeriod struct {
	DeliveryPointID string  `json:"delivery_point_id" db:"delivery_point_id"`
	ContractRef     *string `json:"contract_ref,omitempty" db:"contract_ref"`
	TariffFormula   *string `json:"tariff_formula,omitempty" db:"tariff_formula"`

	Start        time.Time `json:"start" db:"start_at"`
	End          time.Time `json:"end" db:"end_at"`
	DurationDays int       `json:"duration_days" db:"duration_days"`

	SourceBefore string `json:"source_before" db:"source_before"`
	SourceAfter  string `json:"source_after" db:"source_after"`

	// Quality flags. Incomplete or irregular periods stay in the output; the
	// downstream tariff engine decides their disposition.
	DataComplete    bool `json:"data_complete" db:"data_complete"`
	PeriodIrregular bool `json:"period_irregular" db:"period_irregular"`

	// Energy deltas in kWh, nil when either bounding index is missing.
	Energy RegisterValues `json:"energy"`
}

// PricedSubscriptionPeriod is a subscription period with the fixed charge
// attached by the pricing engine. Amounts are in euros excluding tax.
type PricedSubscriptionPeriod struct {
	SubscriptionPeriod
	FixedAmount float64 `json:"fixed_amount" db:"fixed_amount"`
}

// PricedEnergyPeriod is an energy period with the variable charge attached
// by the pricing engine. Amounts are in euros excluding tax.
type PricedEnergyPeriod struct {
	EnergyPeriod
	VariableAmount float64 `json:"variable_amount" db:"variable_amount"`
}
