package energyperiod

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerflux/voltcore/pkg/models"
)

func f(v float64) *float64 {
	return &v
}

func TestPeriodRowToModel(t *testing.T) {
	ref := "CT001"
	formula := "BTINFCU4"
	row := periodRow{
		ID:              "8f7a1c2e-0000-0000-0000-000000000001",
		BatchID:         "batch-42",
		DeliveryPointID: "PDL001",
		ContractRef:     &ref,
		TariffFormula:   &formula,
		StartAt:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndAt:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DurationDays:    29,
		SourceBefore:    models.SourceContractFlux,
		SourceAfter:     models.SourcePeriodicFlux,
		DataComplete:    true,
		HPEnergy:        f(190),
		HCEnergy:        f(120),
	}

	p := row.toModel()

	require.NotNil(t, p.ContractRef)
	assert.Equal(t, "CT001", *p.ContractRef)
	require.NotNil(t, p.TariffFormula)
	assert.Equal(t, "BTINFCU4", *p.TariffFormula)
	assert.Equal(t, row.StartAt, p.Start)
	assert.Equal(t, row.EndAt, p.End)
	assert.Equal(t, 29, p.DurationDays)
	assert.Equal(t, models.SourceContractFlux, p.SourceBefore)
	assert.True(t, p.DataComplete)
	assert.False(t, p.PeriodIrregular)
	require.NotNil(t, p.Energy.HP)
	assert.Equal(t, 190.0, *p.Energy.HP)
	require.NotNil(t, p.Energy.HC)
	assert.Equal(t, 120.0, *p.Energy.HC)
	assert.Nil(t, p.Energy.Base)
	assert.Nil(t, p.Energy.HPH)
}

func TestPeriodRowToModelOrphanPoint(t *testing.T) {
	row := periodRow{
		DeliveryPointID: "PDL009",
		StartAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndAt:           time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		DurationDays:    45,
		SourceBefore:    models.SourceBillingPlaceholder,
		SourceAfter:     models.SourceBillingPlaceholder,
		PeriodIrregular: true,
	}

	p := row.toModel()

	assert.Nil(t, p.ContractRef)
	assert.Nil(t, p.TariffFormula)
	assert.False(t, p.DataComplete)
	assert.True(t, p.PeriodIrregular)
	assert.True(t, p.Energy.IsEmpty())
}
