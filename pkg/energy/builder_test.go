package energy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/timeutil"
)

func reading(pdl, ref string, ts time.Time, registers models.RegisterValues) models.MeterReading {
	return models.MeterReading{
		DeliveryPointID: pdl,
		ReadAt:          ts,
		Source:          models.SourcePeriodicFlux,
		SequenceOrder:   models.SequenceBefore,
		ContractRef:     str(ref),
		TariffFormula:   str("BTINFCU4"),
		Unit:            models.UnitKWh,
		Registers:       registers,
	}
}

func TestBuildEnergyPeriods(t *testing.T) {
	paris := timeutil.MustLoadParis()
	b := NewBuilder(testLogger())

	timeline := []models.MeterReading{
		reading("PDL001", "CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)}),
		reading("PDL001", "CT001", time.Date(2024, 2, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1170)}),
		reading("PDL001", "CT001", time.Date(2024, 3, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1480)}),
	}

	periods := b.Build(context.Background(), timeline)
	require.Len(t, periods, 2)

	first := periods[0]
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, paris), first.Start)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, paris), first.End)
	assert.Equal(t, 17, first.DurationDays)
	assert.True(t, first.DataComplete)
	assert.False(t, first.PeriodIrregular)
	require.NotNil(t, first.Energy.Base)
	assert.Equal(t, 170.0, *first.Energy.Base)

	require.NotNil(t, periods[1].Energy.Base)
	assert.Equal(t, 310.0, *periods[1].Energy.Base)

	// Consumption over the whole window equals last index minus first.
	var total float64
	for _, p := range periods {
		total += *p.Energy.Base
	}
	assert.Equal(t, 480.0, total)
}

func TestBuildMissingRegisterYieldsIncompletePeriod(t *testing.T) {
	paris := timeutil.MustLoadParis()
	b := NewBuilder(testLogger())

	placeholder := models.MeterReading{
		DeliveryPointID: "PDL001",
		ReadAt:          time.Date(2024, 2, 1, 0, 0, 0, 0, paris),
		Source:          models.SourceBillingPlaceholder,
		ContractRef:     str("CT001"),
		Unit:            models.UnitKWh,
	}
	timeline := []models.MeterReading{
		reading("PDL001", "CT001", time.Date(2024, 1, 15, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)}),
		placeholder,
		reading("PDL001", "CT001", time.Date(2024, 3, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1480)}),
	}

	periods := b.Build(context.Background(), timeline)
	require.Len(t, periods, 2)

	assert.False(t, periods[0].DataComplete, "delta against a placeholder is unknowable")
	assert.Nil(t, periods[0].Energy.Base)
	assert.Equal(t, models.SourceBillingPlaceholder, periods[0].SourceAfter)

	assert.False(t, periods[1].DataComplete)
	assert.Equal(t, models.SourceBillingPlaceholder, periods[1].SourceBefore)
}

func TestBuildFlagsIrregularPeriods(t *testing.T) {
	paris := timeutil.MustLoadParis()
	b := NewBuilder(testLogger())

	timeline := []models.MeterReading{
		reading("PDL001", "CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)}),
		reading("PDL001", "CT001", time.Date(2024, 2, 15, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1400)}),
	}

	periods := b.Build(context.Background(), timeline)
	require.Len(t, periods, 1)
	assert.Equal(t, 45, periods[0].DurationDays)
	assert.True(t, periods[0].PeriodIrregular)
}

func TestBuildKeepsNegativeDeltas(t *testing.T) {
	paris := timeutil.MustLoadParis()
	b := NewBuilder(testLogger())

	// A decreasing index is suspicious but the period still ships; the
	// anomaly is the operator's to investigate.
	timeline := []models.MeterReading{
		reading("PDL001", "CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1400)}),
		reading("PDL001", "CT001", time.Date(2024, 2, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)}),
	}

	periods := b.Build(context.Background(), timeline)
	require.Len(t, periods, 1)
	require.NotNil(t, periods[0].Energy.Base)
	assert.Equal(t, -400.0, *periods[0].Energy.Base)
}

func TestBuildGroupBoundaries(t *testing.T) {
	paris := timeutil.MustLoadParis()
	b := NewBuilder(testLogger())

	t.Run("no period across contract references", func(t *testing.T) {
		timeline := []models.MeterReading{
			reading("PDL001", "CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)}),
			reading("PDL001", "CT002", time.Date(2024, 2, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(0)}),
		}
		assert.Empty(t, b.Build(context.Background(), timeline))
	})

	t.Run("no period across delivery points", func(t *testing.T) {
		a := reading("PDL001", "CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)})
		a.ContractRef = nil
		z := reading("PDL002", "CT001", time.Date(2024, 2, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(500)})
		z.ContractRef = nil
		assert.Empty(t, b.Build(context.Background(), []models.MeterReading{a, z}))
	})

	t.Run("zero-span pair is dropped", func(t *testing.T) {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, paris)
		before := reading("PDL001", "CT001", ts, models.RegisterValues{Base: f(1000)})
		after := reading("PDL001", "CT001", ts, models.RegisterValues{Base: f(1000)})
		after.SequenceOrder = models.SequenceAfter
		assert.Empty(t, b.Build(context.Background(), []models.MeterReading{before, after}))
	})

	t.Run("single reading yields nothing", func(t *testing.T) {
		timeline := []models.MeterReading{
			reading("PDL001", "CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.RegisterValues{Base: f(1000)}),
		}
		assert.Empty(t, b.Build(context.Background(), timeline))
	})
}

func TestBuildMultiRegisterDeltas(t *testing.T) {
	paris := timeutil.MustLoadParis()
	b := NewBuilder(testLogger())

	timeline := []models.MeterReading{
		reading("PDL001", "CT001", time.Date(2024, 1, 1, 0, 0, 0, 0, paris), models.RegisterValues{HP: f(600), HC: f(400)}),
		reading("PDL001", "CT001", time.Date(2024, 2, 1, 0, 0, 0, 0, paris), models.RegisterValues{HP: f(720), HC: f(480)}),
	}

	periods := b.Build(context.Background(), timeline)
	require.Len(t, periods, 1)

	p := periods[0]
	require.NotNil(t, p.Energy.HP)
	require.NotNil(t, p.Energy.HC)
	assert.Equal(t, 120.0, *p.Energy.HP)
	assert.Equal(t, 80.0, *p.Energy.HC)
	assert.Nil(t, p.Energy.Base, "roll-up happens in a later stage")
}
