package perimeter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/timeutil"
)

func syntheticTimestamps(events []models.ContractEvent) []time.Time {
	var out []time.Time
	for i := range events {
		if events[i].IsSynthetic() {
			out = append(out, events[i].Timestamp)
		}
	}
	return out
}

func TestInjectMonthlyBillingPoints(t *testing.T) {
	paris := timeutil.MustLoadParis()
	in := NewInjector(testLogger())
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	// Service start mid-January, power change mid-February, termination
	// mid-March. Billing points land on the month boundaries strictly inside
	// the activity window.
	history := []models.ContractEvent{
		event("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
		event("CT001", time.Date(2024, 2, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 9, "BTINFCU4"),
		event("CT001", time.Date(2024, 3, 20, 0, 0, 0, 0, paris), models.TriggerRES, 9, "BTINFCU4"),
	}

	got := in.Inject(context.Background(), history, reference)
	require.Len(t, got, 5)

	synthetic := syntheticTimestamps(got)
	require.Len(t, synthetic, 2, "one billing point per full month inside the window")
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, paris), synthetic[0])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, paris), synthetic[1])

	for i := range got {
		if !got[i].IsSynthetic() {
			continue
		}
		assert.Equal(t, models.TriggerFacturation, got[i].Trigger)
		assert.Equal(t, models.EventKindSynthetic, got[i].Kind)
		assert.Equal(t, models.SourceBillingSynthesis, got[i].Source)
		assert.True(t, got[i].ImpactsSubscription)
		assert.True(t, got[i].ImpactsEnergy)
		assert.NotEmpty(t, got[i].ID)
	}
}

func TestInjectForwardFillsContractualFields(t *testing.T) {
	paris := timeutil.MustLoadParis()
	in := NewInjector(testLogger())
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	mes := event("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4")
	mes.ContractState = "EN SERVICE"
	mes.MeterSerial = "CPT-42"

	got := in.Inject(context.Background(), []models.ContractEvent{
		mes,
		event("CT001", time.Date(2024, 2, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 9, "BTINFCU4"),
		event("CT001", time.Date(2024, 3, 20, 0, 0, 0, 0, paris), models.TriggerRES, 9, "BTINFCU4"),
	}, reference)

	synthetic := make(map[time.Time]models.ContractEvent)
	for i := range got {
		if got[i].IsSynthetic() {
			synthetic[got[i].Timestamp] = got[i]
		}
	}
	require.Len(t, synthetic, 2)

	feb := synthetic[time.Date(2024, 2, 1, 0, 0, 0, 0, paris)]
	assert.Equal(t, 6.0, feb.SubscribedPower, "power before the February modification")
	assert.Equal(t, "BTINFCU4", feb.TariffFormula)
	assert.Equal(t, "EN SERVICE", feb.ContractState)
	assert.Equal(t, "CPT-42", feb.MeterSerial)

	mar := synthetic[time.Date(2024, 3, 1, 0, 0, 0, 0, paris)]
	assert.Equal(t, 9.0, mar.SubscribedPower, "power after the February modification")
}

func TestInjectOpenContractStopsAtReferenceMonth(t *testing.T) {
	paris := timeutil.MustLoadParis()
	in := NewInjector(testLogger())
	reference := time.Date(2024, 4, 18, 0, 0, 0, 0, paris)

	got := in.Inject(context.Background(), []models.ContractEvent{
		event("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
	}, reference)

	synthetic := syntheticTimestamps(got)
	require.Len(t, synthetic, 3, "February through April, the reference month boundary included")
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, paris), synthetic[2])
}

func TestInjectSyntheticsAreOrderedMonthStarts(t *testing.T) {
	paris := timeutil.MustLoadParis()
	in := NewInjector(testLogger())
	reference := time.Date(2025, 1, 10, 0, 0, 0, 0, paris)

	got := in.Inject(context.Background(), []models.ContractEvent{
		event("CT001", time.Date(2024, 3, 7, 14, 30, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
		event("CT001", time.Date(2024, 11, 22, 9, 0, 0, 0, paris), models.TriggerRES, 6, "BTINFCU4"),
	}, reference)

	synthetic := syntheticTimestamps(got)
	require.NotEmpty(t, synthetic)
	for i, ts := range synthetic {
		assert.Equal(t, 1, ts.Day())
		assert.Zero(t, ts.Hour())
		assert.Zero(t, ts.Minute())
		if i > 0 {
			assert.True(t, synthetic[i-1].Before(ts), "billing points must advance month by month")
		}
	}
	// History must also come back globally ordered after the injection.
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
	}
}

func TestInjectEdgeCases(t *testing.T) {
	paris := timeutil.MustLoadParis()
	in := NewInjector(testLogger())
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	t.Run("contract without entry event injects nothing", func(t *testing.T) {
		got := in.Inject(context.Background(), []models.ContractEvent{
			event("CT001", time.Date(2024, 2, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 9, "BTINFCU4"),
		}, reference)
		assert.Empty(t, syntheticTimestamps(got))
	})

	t.Run("contract entering after the reference cutoff is skipped", func(t *testing.T) {
		got := in.Inject(context.Background(), []models.ContractEvent{
			event("CT001", time.Date(2024, 8, 1, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
		}, reference)
		assert.Empty(t, syntheticTimestamps(got))
	})

	t.Run("window shorter than a month injects nothing", func(t *testing.T) {
		got := in.Inject(context.Background(), []models.ContractEvent{
			event("CT001", time.Date(2024, 1, 5, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
			event("CT001", time.Date(2024, 1, 25, 0, 0, 0, 0, paris), models.TriggerRES, 6, "BTINFCU4"),
		}, reference)
		assert.Empty(t, syntheticTimestamps(got))
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Empty(t, in.Inject(context.Background(), nil, reference))
	})
}

func TestInjectPerContractWindows(t *testing.T) {
	paris := timeutil.MustLoadParis()
	in := NewInjector(testLogger())
	reference := time.Date(2024, 6, 15, 0, 0, 0, 0, paris)

	// CT002 is active January through February only; it must not receive the
	// billing points of CT001's longer window.
	ct002Entry := event("CT002", time.Date(2024, 1, 10, 0, 0, 0, 0, paris), models.TriggerMES, 3, "BTINFCU4")
	ct002Entry.DeliveryPointID = "PDL002"
	ct002Exit := event("CT002", time.Date(2024, 2, 20, 0, 0, 0, 0, paris), models.TriggerRES, 3, "BTINFCU4")
	ct002Exit.DeliveryPointID = "PDL002"

	got := in.Inject(context.Background(), []models.ContractEvent{
		event("CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
		event("CT001", time.Date(2024, 4, 20, 0, 0, 0, 0, paris), models.TriggerRES, 6, "BTINFCU4"),
		ct002Entry,
		ct002Exit,
	}, reference)

	perContract := make(map[string][]time.Time)
	for i := range got {
		if got[i].IsSynthetic() {
			perContract[got[i].ContractRef] = append(perContract[got[i].ContractRef], got[i].Timestamp)
		}
	}

	assert.Len(t, perContract["CT001"], 3, "February, March, April")
	require.Len(t, perContract["CT002"], 1)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, paris), perContract["CT002"][0])

	for i := range got {
		if got[i].IsSynthetic() && got[i].ContractRef == "CT002" {
			assert.Equal(t, "PDL002", got[i].DeliveryPointID)
		}
	}
}
