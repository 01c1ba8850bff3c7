// Package perimeter implements the contract-history enrichment stages: break
// point detection over the raw event stream and injection of the synthetic
// monthly billing events that anchor period boundaries.
package perimeter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Detector flags which events actually change a billable quantity versus
// administrative noise.
type Detector struct {
	logger ectologger.Logger
}

// NewDetector creates a break-point detector.
func NewDetector(logger ectologger.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect returns a new event table, sorted by (contract_ref, event_at), with
// the impact flags and a human-readable change summary filled in. The input
// is never mutated.
func (d *Detector) Detect(ctx context.Context, history []models.ContractEvent) []models.ContractEvent {
	_, span := tracing.StartSpan(ctx, "perimeter.Detector.Detect")
	defer span.End()

	events := make([]models.ContractEvent, len(history))
	copy(events, history)
	SortEvents(events)

	var prev *models.ContractEvent
	for i := range events {
		e := &events[i]
		if prev != nil && prev.ContractRef != e.ContractRef {
			prev = nil
		}

		powerChanged := prev != nil && prev.SubscribedPower != e.SubscribedPower
		formulaChanged := prev != nil && prev.TariffFormula != e.TariffFormula
		calendarChanged := calendarChange(e)
		registerChanged := registerChange(e)

		e.ImpactsSubscription = powerChanged || formulaChanged
		e.ImpactsEnergy = calendarChanged || registerChanged || formulaChanged

		// Entry and exit events always open or close a period, even when no
		// billable field moved.
		if e.Trigger.IsStructural() {
			e.ImpactsSubscription = true
			e.ImpactsEnergy = true
		}

		e.ChangeSummary = changeSummary(e, prev, powerChanged, formulaChanged, calendarChanged)
		prev = e
	}

	return events
}

// SortEvents orders events by (contract_ref, event_at), the canonical order
// for every per-contract pass.
func SortEvents(events []models.ContractEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ContractRef != events[j].ContractRef {
			return events[i].ContractRef < events[j].ContractRef
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

func calendarChange(e *models.ContractEvent) bool {
	if e.Before == nil || e.After == nil {
		return false
	}
	if e.Before.CalendarID == nil || e.After.CalendarID == nil {
		return false
	}
	return *e.Before.CalendarID != *e.After.CalendarID
}

func registerChange(e *models.ContractEvent) bool {
	if e.Before == nil || e.After == nil {
		return false
	}
	for _, r := range models.AllRegisters() {
		before, after := e.Before.Registers.Get(r), e.After.Registers.Get(r)
		if before != nil && after != nil && *before != *after {
			return true
		}
	}
	return false
}

func changeSummary(e, prev *models.ContractEvent, powerChanged, formulaChanged, calendarChanged bool) string {
	var parts []string
	if e.ImpactsSubscription {
		if powerChanged {
			parts = append(parts, fmt.Sprintf("P: %v → %v", prev.SubscribedPower, e.SubscribedPower))
		}
		if formulaChanged {
			parts = append(parts, fmt.Sprintf("FTA: %s → %s", prev.TariffFormula, e.TariffFormula))
		}
	}
	if e.ImpactsEnergy {
		parts = append(parts, "rupture index")
	}
	if calendarChanged {
		parts = append(parts, fmt.Sprintf("Cal: %s → %s", *e.Before.CalendarID, *e.After.CalendarID))
	}
	return strings.Join(parts, ", ")
}
