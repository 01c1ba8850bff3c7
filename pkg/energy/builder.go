package energy

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/timeutil"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// irregularAfterDays marks periods longer than a billing month plus slack as
// suspect. A regular monthly period never exceeds 31 days.
const irregularAfterDays = 35

// Builder turns a reconciled reading timeline into consumption periods with
// per-register deltas.
type Builder struct {
	logger ectologger.Logger
}

// NewBuilder creates an energy period builder.
func NewBuilder(logger ectologger.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build pairs each reading with its successor inside the same contract group
// and emits one period per pair. Readings belonging to the same contract
// reference form a group; readings without a reference group by delivery
// point. Deltas are end minus start per register, nil whenever either side is
// missing. Periods with no start boundary or spanning zero time are dropped.
func (b *Builder) Build(ctx context.Context, timeline []models.MeterReading) []models.EnergyPeriod {
	ctx, span := tracing.StartSpan(ctx, "energy.Builder.Build")
	defer span.End()

	sortReadings(timeline)

	periods := make([]models.EnergyPeriod, 0, len(timeline))
	var negatives []string

	for i := 0; i < len(timeline); i++ {
		end := &timeline[i]
		start := previousInGroup(timeline, i)
		if start == nil {
			continue
		}
		if start.ReadAt.Equal(end.ReadAt) {
			continue
		}

		deltas := end.Registers.Sub(start.Registers)
		p := models.EnergyPeriod{
			DeliveryPointID: end.DeliveryPointID,
			ContractRef:     end.ContractRef,
			TariffFormula:   end.TariffFormula,
			Start:           start.ReadAt,
			End:             end.ReadAt,
			DurationDays:    timeutil.WholeDays(start.ReadAt, end.ReadAt),
			SourceBefore:    start.Source,
			SourceAfter:     end.Source,
			DataComplete:    !deltas.IsEmpty(),
			Energy:          deltas,
		}
		p.PeriodIrregular = p.DurationDays > irregularAfterDays

		if hasNegative(deltas) {
			negatives = append(negatives, p.DeliveryPointID)
		}
		periods = append(periods, p)
	}

	if len(negatives) > 0 {
		b.logger.WithContext(ctx).
			WithField("delivery_points", strings.Join(dedupeStrings(negatives), ",")).
			Warn("Negative energy deltas, check for meter rollover or swapped readings")
	}
	return periods
}

// previousInGroup returns the reading immediately before index i within the
// same contract group, or nil when i opens its group. Grouping follows the
// contract reference when present, the delivery point otherwise.
func previousInGroup(timeline []models.MeterReading, i int) *models.MeterReading {
	if i == 0 {
		return nil
	}
	prev := &timeline[i-1]
	if !sameGroup(prev, &timeline[i]) {
		return nil
	}
	return prev
}

func sameGroup(a, b *models.MeterReading) bool {
	if a.ContractRef != nil && b.ContractRef != nil {
		return *a.ContractRef == *b.ContractRef
	}
	if a.ContractRef != nil || b.ContractRef != nil {
		return false
	}
	return a.DeliveryPointID == b.DeliveryPointID
}

func hasNegative(v models.RegisterValues) bool {
	for _, reg := range models.AllRegisters() {
		if d := v.Get(reg); d != nil && *d < 0 {
			return true
		}
	}
	return false
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
