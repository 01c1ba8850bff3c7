package perimeter

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/timeutil"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func f(v float64) *float64 { return &v }

func cal(c models.MeterCalendar) *models.MeterCalendar { return &c }

func event(ref string, ts time.Time, trigger models.TriggerCode, power float64, formula string) models.ContractEvent {
	return models.ContractEvent{
		ContractRef:     ref,
		DeliveryPointID: "PDL001",
		Timestamp:       ts,
		Trigger:         trigger,
		Kind:            models.EventKindContractual,
		Source:          models.SourceContractFlux,
		SubscribedPower: power,
		TariffFormula:   formula,
	}
}

func TestDetectImpactFlags(t *testing.T) {
	paris := timeutil.MustLoadParis()
	d := NewDetector(testLogger())

	day := func(dayOfMonth int) time.Time {
		return time.Date(2024, 1, dayOfMonth, 0, 0, 0, 0, paris)
	}

	tests := []struct {
		name              string
		history           []models.ContractEvent
		wantSubscription  []bool
		wantEnergy        []bool
	}{
		{
			name: "entry and exit always impact both",
			history: []models.ContractEvent{
				event("CT001", day(1), models.TriggerMES, 6, "BTINFCU4"),
				event("CT001", day(20), models.TriggerRES, 6, "BTINFCU4"),
			},
			wantSubscription: []bool{true, true},
			wantEnergy:       []bool{true, true},
		},
		{
			name: "power change impacts subscription only",
			history: []models.ContractEvent{
				event("CT001", day(1), models.TriggerMES, 6, "BTINFCU4"),
				event("CT001", day(10), models.TriggerMCT, 9, "BTINFCU4"),
			},
			wantSubscription: []bool{true, true},
			wantEnergy:       []bool{true, false},
		},
		{
			name: "formula change impacts both",
			history: []models.ContractEvent{
				event("CT001", day(1), models.TriggerMES, 6, "BTINFCU4"),
				event("CT001", day(10), models.TriggerMCT, 6, "BTINFMU4"),
			},
			wantSubscription: []bool{true, true},
			wantEnergy:       []bool{true, true},
		},
		{
			name: "administrative MCT impacts nothing",
			history: []models.ContractEvent{
				event("CT001", day(1), models.TriggerMES, 6, "BTINFCU4"),
				event("CT001", day(10), models.TriggerMCT, 6, "BTINFCU4"),
			},
			wantSubscription: []bool{true, false},
			wantEnergy:       []bool{true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(context.Background(), tt.history)
			require.Len(t, got, len(tt.history))
			for i := range got {
				assert.Equal(t, tt.wantSubscription[i], got[i].ImpactsSubscription, "event %d subscription flag", i)
				assert.Equal(t, tt.wantEnergy[i], got[i].ImpactsEnergy, "event %d energy flag", i)
			}
		})
	}
}

func TestDetectCalendarAndRegisterChanges(t *testing.T) {
	paris := timeutil.MustLoadParis()
	d := NewDetector(testLogger())

	t.Run("calendar change impacts energy", func(t *testing.T) {
		mct := event("CT001", time.Date(2024, 1, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 6, "BTINFCU4")
		mct.Before = &models.EventSnapshot{CalendarID: cal(models.CalendarSingleRegister)}
		mct.After = &models.EventSnapshot{CalendarID: cal(models.CalendarDualRegister)}

		got := d.Detect(context.Background(), []models.ContractEvent{
			event("CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
			mct,
		})
		require.Len(t, got, 2)
		assert.True(t, got[1].ImpactsEnergy)
		assert.False(t, got[1].ImpactsSubscription)
		assert.Contains(t, got[1].ChangeSummary, "Cal:")
	})

	t.Run("register movement impacts energy", func(t *testing.T) {
		mct := event("CT001", time.Date(2024, 1, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 6, "BTINFCU4")
		mct.Before = &models.EventSnapshot{Registers: models.RegisterValues{Base: f(1000)}}
		mct.After = &models.EventSnapshot{Registers: models.RegisterValues{Base: f(0)}}

		got := d.Detect(context.Background(), []models.ContractEvent{
			event("CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
			mct,
		})
		require.Len(t, got, 2)
		assert.True(t, got[1].ImpactsEnergy)
	})

	t.Run("one-sided snapshot is not a change", func(t *testing.T) {
		mct := event("CT001", time.Date(2024, 1, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 6, "BTINFCU4")
		mct.After = &models.EventSnapshot{Registers: models.RegisterValues{Base: f(1000)}}

		got := d.Detect(context.Background(), []models.ContractEvent{
			event("CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
			mct,
		})
		require.Len(t, got, 2)
		assert.False(t, got[1].ImpactsEnergy)
	})
}

func TestDetectContractIsolation(t *testing.T) {
	paris := timeutil.MustLoadParis()
	d := NewDetector(testLogger())

	// The first event of CT002 has a different power than the last event of
	// CT001. Comparison never crosses the contract boundary.
	got := d.Detect(context.Background(), []models.ContractEvent{
		event("CT002", time.Date(2024, 2, 1, 0, 0, 0, 0, paris), models.TriggerMCT, 9, "BTINFCU4"),
		event("CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.TriggerMCT, 6, "BTINFCU4"),
	})
	require.Len(t, got, 2)

	assert.Equal(t, "CT001", got[0].ContractRef, "sorted by contract then time")
	assert.False(t, got[1].ImpactsSubscription, "CT002 opener has no predecessor to differ from")
}

func TestDetectDoesNotMutateInput(t *testing.T) {
	paris := timeutil.MustLoadParis()
	d := NewDetector(testLogger())

	history := []models.ContractEvent{
		event("CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
	}
	_ = d.Detect(context.Background(), history)
	assert.False(t, history[0].ImpactsSubscription)
	assert.Empty(t, history[0].ChangeSummary)
}

func TestDetectChangeSummary(t *testing.T) {
	paris := timeutil.MustLoadParis()
	d := NewDetector(testLogger())

	got := d.Detect(context.Background(), []models.ContractEvent{
		event("CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.TriggerMES, 6, "BTINFCU4"),
		event("CT001", time.Date(2024, 1, 10, 0, 0, 0, 0, paris), models.TriggerMCT, 9, "BTINFCU4"),
	})
	require.Len(t, got, 2)
	assert.Contains(t, got[1].ChangeSummary, "P: 6")
	assert.Contains(t, got[1].ChangeSummary, "9")
}
