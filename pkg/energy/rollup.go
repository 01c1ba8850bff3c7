package energy

import "github.com/enerflux/voltcore/pkg/models"

// RollUpRegisters back-fills the main registers from their sub-registers,
// strictly in order: seasonal peak/off-peak fold into HC and HP, then HC and
// HP fold into BASE. A parent already carrying a value is left untouched, so
// the roll-up saturates and applying it twice equals applying it once. A
// missing parent becomes the sum of its non-nil inputs and stays nil only
// when every input is nil.
//
// Meter layouts this covers:
//   - 4-register meters: HPH/HPB and HCH/HCB fold into HP and HC, then BASE
//   - peak/off-peak meters: HP and HC fold into BASE
//   - single-register meters: BASE unchanged
func RollUpRegisters(v models.RegisterValues) models.RegisterValues {
	out := v
	if out.HC == nil {
		out.HC = sumPresent(out.HCH, out.HCB)
	}
	if out.HP == nil {
		out.HP = sumPresent(out.HPH, out.HPB)
	}
	if out.Base == nil {
		out.Base = sumPresent(out.HP, out.HC)
	}
	return out
}

// RollUpPeriods applies the register roll-up to every period in place.
func RollUpPeriods(periods []models.EnergyPeriod) {
	for i := range periods {
		periods[i].Energy = RollUpRegisters(periods[i].Energy)
	}
}

func sumPresent(vals ...*float64) *float64 {
	var total float64
	seen := false
	for _, v := range vals {
		if v == nil {
			continue
		}
		total += *v
		seen = true
	}
	if !seen {
		return nil
	}
	return &total
}
