package models

// Register identifies a metering sub-channel (cadran). Which registers a meter
// actually reports depends on its distributor calendar: single-register meters
// only fill BASE, dual meters fill HP/HC, four-register meters fill the
// seasonal HPH/HCH/HPB/HCB splits.
type Register string

const (
	RegisterBase Register = "BASE"
	RegisterHP   Register = "HP"
	RegisterHC   Register = "HC"
	RegisterHPH  Register = "HPH"
	RegisterHCH  Register = "HCH"
	RegisterHPB  Register = "HPB"
	RegisterHCB  Register = "HCB"
)

// AllRegisters lists every register in canonical order.
func AllRegisters() []Register {
	return []Register{RegisterBase, RegisterHP, RegisterHC, RegisterHPH, RegisterHCH, RegisterHPB, RegisterHCB}
}

// RegisterValues holds one nullable value per register. A nil entry means the
// register was not reported, which is normal for meters that do not carry it.
type RegisterValues struct {
	Base *float64 `json:"base,omitempty" db:"base"`
	HP   *float64 `json:"hp,omitempty" db:"hp"`
	HC   *float64 `json:"hc,omitempty" db:"hc"`
	HPH  *float64 `json:"hph,omitempty" db:"hph"`
	HCH  *float64 `json:"hch,omitempty" db:"hch"`
	HPB  *float64 `json:"hpb,omitempty" db:"hpb"`
	HCB  *float64 `json:"hcb,omitempty" db:"hcb"`
}

// Get returns the value for a register, nil when absent.
func (v RegisterValues) Get(r Register) *float64 {
	switch r {
	case RegisterBase:
		return v.Base
	case RegisterHP:
		return v.HP
	case RegisterHC:
		return v.HC
	case RegisterHPH:
		return v.HPH
	case RegisterHCH:
		return v.HCH
	case RegisterHPB:
		return v.HPB
	case RegisterHCB:
		return v.HCB
	}
	return nil
}

// Set assigns the value for a register.
func (v *RegisterValues) Set(r Register, val *float64) {
	switch r {
	case RegisterBase:
		v.Base = val
	case RegisterHP:
		v.HP = val
	case RegisterHC:
		v.HC = val
	case RegisterHPH:
		v.HPH = val
	case RegisterHCH:
		v.HCH = val
	case RegisterHPB:
		v.HPB = val
	case RegisterHCB:
		v.HCB = val
	}
}

// IsEmpty reports whether no register carries a value.
func (v RegisterValues) IsEmpty() bool {
	for _, r := range AllRegisters() {
		if v.Get(r) != nil {
			return false
		}
	}
	return true
}

// Sub returns the per-register difference v - prev. A register whose value is
// missing on either side yields nil, mirroring null propagation in arithmetic.
func (v RegisterValues) Sub(prev RegisterValues) RegisterValues {
	var out RegisterValues
	for _, r := range AllRegisters() {
		a, b := v.Get(r), prev.Get(r)
		if a == nil || b == nil {
			continue
		}
		d := *a - *b
		out.Set(r, &d)
	}
	return out
}

// Scale multiplies every present register by factor, used for unit
// normalization (Wh and MWh readings are converted to kWh on ingestion).
func (v RegisterValues) Scale(factor float64) RegisterValues {
	var out RegisterValues
	for _, r := range AllRegisters() {
		if val := v.Get(r); val != nil {
			scaled := *val * factor
			out.Set(r, &scaled)
		}
	}
	return out
}

// MeterCalendar enumerates the distributor calendar layouts describing which
// registers a meter reports.
type MeterCalendar string

const (
	CalendarSingleRegister MeterCalendar = "DI000001" // BASE only
	CalendarDualRegister   MeterCalendar = "DI000002" // HP/HC
	CalendarQuadRegister   MeterCalendar = "DI000003" // HPH/HCH/HPB/HCB
)

// ValidMeterCalendar reports whether code is one of the enumerated layouts.
func ValidMeterCalendar(code MeterCalendar) bool {
	switch code {
	case CalendarSingleRegister, CalendarDualRegister, CalendarQuadRegister:
		return true
	}
	return false
}
