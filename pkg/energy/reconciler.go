// Package energy reconstructs the reading chronology per delivery point and
// materializes it into energy periods with per-register deltas and quality
// flags.
package energy

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/perimeter"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Source priority for same-instant readings. Readings derived from contract
// events win over the periodic feed, placeholders lose to everything. The
// priority is an explicit list rather than an ordering accident of the source
// tag strings.
const (
	priorityContractual = 0
	priorityPeriodic    = 1
	priorityPlaceholder = 2
)

func sourcePriority(source string) int {
	switch source {
	case models.SourceContractFlux:
		return priorityContractual
	case models.SourceBillingPlaceholder:
		return priorityPlaceholder
	default:
		return priorityPeriodic
	}
}

// Reconciler assembles the complete reading timeline needed for billing from
// the enriched event history and the periodic reading feed.
type Reconciler struct {
	logger ectologger.Logger
}

// NewReconciler creates a chronology reconciler.
func NewReconciler(logger ectologger.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile returns one deduplicated, chronologically sorted reading stream:
// - contractual events contribute their before/after snapshots,
// - each billing point is matched against the stored readings at the exact
//   (delivery point, instant); unmatched billing points become placeholder
//   readings with nil registers so the period boundary still exists,
// - contract reference and tariff formula are forward-filled per delivery
//   point so periodic readings inherit their contract context,
// - duplicates on (contract_ref, read_at, sequence_order) are resolved by
//   source priority.
func (r *Reconciler) Reconcile(ctx context.Context, history []models.ContractEvent, readings []models.MeterReading) []models.MeterReading {
	ctx, span := tracing.StartSpan(ctx, "energy.Reconciler.Reconcile")
	defer span.End()

	var contractual, billing []models.ContractEvent
	for i := range history {
		if history[i].Trigger == models.TriggerFacturation {
			billing = append(billing, history[i])
		} else {
			contractual = append(contractual, history[i])
		}
	}

	timeline := perimeter.ExtractEventReadings(contractual)
	timeline = append(timeline, r.billingPointReadings(ctx, billing, readings)...)

	sortReadings(timeline)
	propagateContractContext(timeline)
	return dedupeByContract(timeline)
}

// billingPointReadings looks up a stored reading for every billing point and
// synthesizes a placeholder when none exists. The placeholder still occupies
// a timeline slot so downstream period boundaries stay correct; it surfaces
// later as data_complete=false.
func (r *Reconciler) billingPointReadings(ctx context.Context, billing []models.ContractEvent, readings []models.MeterReading) []models.MeterReading {
	type key struct {
		pdl string
		at  time.Time
	}
	// Keys are normalized to UTC: time.Time equality includes the location,
	// and billing points and stored readings rarely share one.
	byInstant := make(map[key][]models.MeterReading, len(readings))
	for i := range readings {
		rd := readings[i].NormalizeUnit()
		k := key{pdl: rd.DeliveryPointID, at: rd.ReadAt.UTC()}
		byInstant[k] = append(byInstant[k], rd)
	}

	var missing int
	out := make([]models.MeterReading, 0, len(billing))
	for i := range billing {
		e := &billing[i]
		k := key{pdl: e.DeliveryPointID, at: e.Timestamp.UTC()}
		if matched, ok := byInstant[k]; ok {
			out = append(out, matched...)
			continue
		}
		missing++
		out = append(out, models.MeterReading{
			DeliveryPointID: e.DeliveryPointID,
			ReadAt:          e.Timestamp,
			Source:          models.SourceBillingPlaceholder,
			SequenceOrder:   models.SequenceBefore,
			Unit:            models.UnitKWh,
			Precision:       models.UnitKWh,
		})
	}

	if missing > 0 {
		r.logger.WithContext(ctx).WithField("missing_readings", missing).Warn("Billing points without a stored reading, placeholders synthesized")
	}
	return out
}

func sortReadings(readings []models.MeterReading) {
	sort.SliceStable(readings, func(i, j int) bool {
		a, b := &readings[i], &readings[j]
		if a.DeliveryPointID != b.DeliveryPointID {
			return a.DeliveryPointID < b.DeliveryPointID
		}
		if !a.ReadAt.Equal(b.ReadAt) {
			return a.ReadAt.Before(b.ReadAt)
		}
		return a.SequenceOrder < b.SequenceOrder
	})
}

// propagateContractContext forward-fills contract reference and tariff
// formula per delivery point. Readings must be sorted first.
func propagateContractContext(readings []models.MeterReading) {
	var lastRef, lastFormula *string
	lastPDL := ""
	for i := range readings {
		rd := &readings[i]
		if rd.DeliveryPointID != lastPDL {
			lastPDL = rd.DeliveryPointID
			lastRef, lastFormula = nil, nil
		}
		if rd.ContractRef != nil {
			lastRef = rd.ContractRef
		} else {
			rd.ContractRef = lastRef
		}
		if rd.TariffFormula != nil {
			lastFormula = rd.TariffFormula
		} else {
			rd.TariffFormula = lastFormula
		}
	}
}

// dedupeByContract keeps, for each (contract_ref, read_at, sequence_order),
// the reading whose source has the highest priority.
func dedupeByContract(readings []models.MeterReading) []models.MeterReading {
	type key struct {
		ref   string
		at    time.Time
		order int
	}
	best := make(map[key]int, len(readings))
	keep := make([]bool, len(readings))

	for i := range readings {
		rd := &readings[i]
		ref := ""
		if rd.ContractRef != nil {
			ref = *rd.ContractRef
		}
		k := key{ref: ref, at: rd.ReadAt.UTC(), order: rd.SequenceOrder}
		prev, ok := best[k]
		if !ok {
			best[k] = i
			keep[i] = true
			continue
		}
		if sourcePriority(rd.Source) < sourcePriority(readings[prev].Source) {
			keep[prev] = false
			best[k] = i
			keep[i] = true
		}
	}

	out := make([]models.MeterReading, 0, len(best))
	for i := range readings {
		if keep[i] {
			out = append(out, readings[i])
		}
	}
	return out
}
