package perimeter

import (
	"github.com/enerflux/voltcore/pkg/models"
)

// fillRule declares one forward-filled contractual column: how to tell a row
// is missing the value and how to copy it from the last row that had it. The
// rule set replaces scattered per-field loops with a single generic pass,
// matching the schema's non-nullable contractual columns.
type fillRule struct {
	column string
	empty  func(e *models.ContractEvent) bool
	fill   func(dst, src *models.ContractEvent)
}

var contractualFillRules = []fillRule{
	{
		column: "subscribed_power",
		empty:  func(e *models.ContractEvent) bool { return e.IsSynthetic() && e.SubscribedPower == 0 },
		fill:   func(dst, src *models.ContractEvent) { dst.SubscribedPower = src.SubscribedPower },
	},
	{
		column: "tariff_formula",
		empty:  func(e *models.ContractEvent) bool { return e.TariffFormula == "" },
		fill:   func(dst, src *models.ContractEvent) { dst.TariffFormula = src.TariffFormula },
	},
	{
		column: "customer_segment",
		empty:  func(e *models.ContractEvent) bool { return e.CustomerSegment == "" },
		fill:   func(dst, src *models.ContractEvent) { dst.CustomerSegment = src.CustomerSegment },
	},
	{
		column: "contract_state",
		empty:  func(e *models.ContractEvent) bool { return e.ContractState == "" },
		fill:   func(dst, src *models.ContractEvent) { dst.ContractState = src.ContractState },
	},
	{
		column: "meter_serial",
		empty:  func(e *models.ContractEvent) bool { return e.MeterSerial == "" },
		fill:   func(dst, src *models.ContractEvent) { dst.MeterSerial = src.MeterSerial },
	},
}

// propagateContractualFields forward-fills the declared columns within each
// contract group. events must already be sorted by (contract_ref, event_at).
func propagateContractualFields(events []models.ContractEvent) {
	var last *models.ContractEvent
	for i := range events {
		e := &events[i]
		if last != nil && last.ContractRef != e.ContractRef {
			last = nil
		}
		if last != nil {
			for _, rule := range contractualFillRules {
				if rule.empty(e) && !rule.empty(last) {
					rule.fill(e, last)
				}
			}
		}
		last = e
	}
}
