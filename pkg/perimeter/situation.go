package perimeter

import (
	"time"

	"github.com/enerflux/voltcore/pkg/models"
)

// SituationAt extracts the perimeter state at a given instant: the latest
// event on or before t for every contract that existed by then.
func SituationAt(history []models.ContractEvent, t time.Time) []models.ContractEvent {
	latest := make(map[string]models.ContractEvent)
	order := make([]string, 0)
	for i := range history {
		e := history[i]
		if e.Timestamp.After(t) {
			continue
		}
		current, ok := latest[e.ContractRef]
		if !ok {
			order = append(order, e.ContractRef)
		}
		if !ok || e.Timestamp.After(current.Timestamp) {
			latest[e.ContractRef] = e
		}
	}

	situation := make([]models.ContractEvent, 0, len(latest))
	for _, ref := range order {
		situation = append(situation, latest[ref])
	}
	return situation
}

// MCTVariation reports the power and tariff-formula movement around one
// mid-contract modification.
type MCTVariation struct {
	ContractRef  string    `json:"contract_ref"`
	OccurredAt   time.Time `json:"occurred_at"`
	PowerBefore  float64   `json:"power_before"`
	PowerAfter   float64   `json:"power_after"`
	TariffBefore string    `json:"tariff_before"`
	TariffAfter  string    `json:"tariff_after"`
}

// MCTVariations lists, for every MCT event inside [from, to], the contractual
// values before and after the modification. MCT events with no prior event on
// record are skipped: there is nothing to compare against.
func MCTVariations(history []models.ContractEvent, from, to time.Time) []MCTVariation {
	events := make([]models.ContractEvent, len(history))
	copy(events, history)
	SortEvents(events)

	var variations []MCTVariation
	var prev *models.ContractEvent
	for i := range events {
		e := &events[i]
		if prev != nil && prev.ContractRef != e.ContractRef {
			prev = nil
		}
		if e.Trigger == models.TriggerMCT && prev != nil &&
			!e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			variations = append(variations, MCTVariation{
				ContractRef:  e.ContractRef,
				OccurredAt:   e.Timestamp,
				PowerBefore:  prev.SubscribedPower,
				PowerAfter:   e.SubscribedPower,
				TariffBefore: prev.TariffFormula,
				TariffAfter:  e.TariffFormula,
			})
		}
		prev = e
	}
	return variations
}
