package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/perimeter"
	"github.com/enerflux/voltcore/pkg/timeutil"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func contractEvent(ref string, ts time.Time, trigger models.TriggerCode, power float64) models.ContractEvent {
	return models.ContractEvent{
		ContractRef:     ref,
		DeliveryPointID: "PDL001",
		Timestamp:       ts,
		Trigger:         trigger,
		Kind:            models.EventKindContractual,
		SubscribedPower: power,
		TariffFormula:   "BTINFCU4",
	}
}

// enrich runs the upstream stages the builder normally consumes.
func enrich(t *testing.T, history []models.ContractEvent, reference time.Time) []models.ContractEvent {
	t.Helper()
	log := testLogger()
	detected := perimeter.NewDetector(log).Detect(context.Background(), history)
	return perimeter.NewInjector(log).Inject(context.Background(), detected, reference)
}

func TestBuildPeriodsFromEnrichedHistory(t *testing.T) {
	paris := timeutil.MustLoadParis()
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	enriched := enrich(t, []models.ContractEvent{
		contractEvent("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6),
		contractEvent("CT001", time.Date(2024, 2, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 9),
		contractEvent("CT001", time.Date(2024, 3, 20, 0, 0, 0, 0, paris), models.TriggerRES, 9),
	}, reference)

	periods := NewBuilder(testLogger()).Build(context.Background(), enriched)
	require.Len(t, periods, 4)

	// Boundaries: entry, two billing points, the modification, termination.
	wantStarts := []time.Time{
		time.Date(2024, 1, 15, 0, 0, 0, 0, paris),
		time.Date(2024, 2, 1, 0, 0, 0, 0, paris),
		time.Date(2024, 2, 10, 0, 0, 0, 0, paris),
		time.Date(2024, 3, 1, 0, 0, 0, 0, paris),
	}
	wantPowers := []float64{6, 6, 9, 9}
	wantDays := []int{17, 9, 20, 19}

	var total int
	for i, p := range periods {
		assert.Equal(t, wantStarts[i], p.Start, "period %d start", i)
		assert.Equal(t, wantPowers[i], p.SubscribedPower, "period %d power", i)
		assert.Equal(t, wantDays[i], p.DurationDays, "period %d duration", i)
		assert.Equal(t, "CT001", p.ContractRef)
		assert.Equal(t, "BTINFCU4", p.TariffFormula)
		total += p.DurationDays
	}
	assert.Equal(t, 65, total, "durations cover entry to termination exactly")

	// Periods tile the axis: each end is the next start.
	for i := 0; i+1 < len(periods); i++ {
		assert.Equal(t, periods[i].End, periods[i+1].Start, "gap between period %d and %d", i, i+1)
	}
	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, paris), periods[len(periods)-1].End)
}

func TestBuildLabels(t *testing.T) {
	paris := timeutil.MustLoadParis()
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	enriched := enrich(t, []models.ContractEvent{
		contractEvent("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6),
		contractEvent("CT001", time.Date(2024, 2, 20, 0, 0, 0, 0, paris), models.TriggerRES, 6),
	}, reference)

	periods := NewBuilder(testLogger()).Build(context.Background(), enriched)
	require.NotEmpty(t, periods)

	assert.Equal(t, "janvier 2024", periods[0].MonthLabel)
	assert.Contains(t, periods[0].StartLabel, "janvier")
	assert.Contains(t, periods[0].EndLabel, "février")
}

func TestBuildDropsZeroDayPeriods(t *testing.T) {
	paris := timeutil.MustLoadParis()

	// Entry and modification on the same calendar date collapse; the period
	// starts directly at the modified power.
	morning := models.ContractEvent{
		ContractRef:         "CT001",
		DeliveryPointID:     "PDL001",
		Timestamp:           time.Date(2024, 1, 15, 8, 0, 0, 0, paris),
		Trigger:             models.TriggerMES,
		SubscribedPower:     6,
		TariffFormula:       "BTINFCU4",
		ImpactsSubscription: true,
	}
	noon := morning
	noon.Timestamp = time.Date(2024, 1, 15, 12, 0, 0, 0, paris)
	noon.Trigger = models.TriggerMCT
	noon.SubscribedPower = 9
	closing := morning
	closing.Timestamp = time.Date(2024, 1, 25, 0, 0, 0, 0, paris)
	closing.Trigger = models.TriggerRES
	closing.SubscribedPower = 9

	periods := NewBuilder(testLogger()).Build(context.Background(), []models.ContractEvent{morning, noon, closing})
	require.Len(t, periods, 1)
	assert.Equal(t, 9.0, periods[0].SubscribedPower)
	assert.Equal(t, 10, periods[0].DurationDays)
}

func TestBuildIgnoresNonImpactingEvents(t *testing.T) {
	paris := timeutil.MustLoadParis()

	impacting := models.ContractEvent{
		ContractRef:         "CT001",
		DeliveryPointID:     "PDL001",
		Timestamp:           time.Date(2024, 1, 15, 0, 0, 0, 0, paris),
		Trigger:             models.TriggerMES,
		SubscribedPower:     6,
		ImpactsSubscription: true,
	}
	administrative := impacting
	administrative.Timestamp = time.Date(2024, 1, 20, 0, 0, 0, 0, paris)
	administrative.Trigger = models.TriggerMCT
	administrative.ImpactsSubscription = false
	closing := impacting
	closing.Timestamp = time.Date(2024, 2, 1, 0, 0, 0, 0, paris)
	closing.Trigger = models.TriggerRES

	periods := NewBuilder(testLogger()).Build(context.Background(), []models.ContractEvent{impacting, administrative, closing})
	require.Len(t, periods, 1, "the administrative event does not split the period")
	assert.Equal(t, 17, periods[0].DurationDays)
}

func TestBuildMultipleContractsStayIndependent(t *testing.T) {
	paris := timeutil.MustLoadParis()
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	ct2Entry := contractEvent("CT002", time.Date(2024, 1, 20, 0, 0, 0, 0, paris), models.TriggerMES, 3)
	ct2Entry.DeliveryPointID = "PDL002"
	ct2Exit := contractEvent("CT002", time.Date(2024, 1, 30, 0, 0, 0, 0, paris), models.TriggerRES, 3)
	ct2Exit.DeliveryPointID = "PDL002"

	enriched := enrich(t, []models.ContractEvent{
		contractEvent("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6),
		contractEvent("CT001", time.Date(2024, 2, 20, 0, 0, 0, 0, paris), models.TriggerRES, 6),
		ct2Entry,
		ct2Exit,
	}, reference)

	periods := NewBuilder(testLogger()).Build(context.Background(), enriched)

	perContract := make(map[string][]models.SubscriptionPeriod)
	for _, p := range periods {
		perContract[p.ContractRef] = append(perContract[p.ContractRef], p)
	}
	require.Len(t, perContract["CT001"], 2, "split by the February billing point")
	require.Len(t, perContract["CT002"], 1)
	assert.Equal(t, 10, perContract["CT002"][0].DurationDays)
	assert.Equal(t, "PDL002", perContract["CT002"][0].DeliveryPointID)

	// No period crosses a contract boundary.
	for ref, ps := range perContract {
		for i := 0; i+1 < len(ps); i++ {
			assert.Equal(t, ps[i].End, ps[i+1].Start, "contract %s", ref)
		}
	}
}

func TestBuildOpenContractEndsAtLastBillingPoint(t *testing.T) {
	paris := timeutil.MustLoadParis()
	reference := time.Date(2024, 3, 10, 0, 0, 0, 0, paris)

	enriched := enrich(t, []models.ContractEvent{
		contractEvent("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6),
	}, reference)

	periods := NewBuilder(testLogger()).Build(context.Background(), enriched)
	require.Len(t, periods, 2, "the trailing open-ended period is not billable yet")
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, paris), periods[len(periods)-1].End)
}
