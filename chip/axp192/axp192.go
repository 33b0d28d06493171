// Package axp192 drives the X-Powers AXP192 power management unit.
package axp192

import (
	"context"
	"fmt"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/chip"
)

// DefaultAddress is the factory slave address.
const DefaultAddress = 0x34

const (
	regPowerStatus  = 0x00
	regChargeStatus = 0x01
	regChipID       = 0x03
	regOutputCtl    = 0x12
	regDC2Voltage   = 0x23
	regDC1Voltage   = 0x26
	regDC3Voltage   = 0x27
	regLDO23Voltage = 0x28
	regShutdown     = 0x32
	regAcinVHigh    = 0x56
	regAcinVLow     = 0x57
	regAcinIHigh    = 0x58
	regAcinILow     = 0x59
	regVbusVHigh    = 0x5A
	regVbusVLow     = 0x5B
	regVbusIHigh    = 0x5C
	regVbusILow     = 0x5D
	regTempHigh     = 0x5E
	regTempLow      = 0x5F
	regBatVHigh     = 0x78
	regBatVLow      = 0x79
	regChargeIHigh  = 0x7A
	regChargeILow   = 0x7B
	regDischgIHigh  = 0x7C
	regDischgILow   = 0x7D
	regADCEnable1   = 0x82
	regADCEnable2   = 0x83

	chipID = 0x03
)

// ADC channels, as bits of the two ADC enable registers.
var (
	ADCBatteryVoltage = chip.Bit{Name: "battery voltage adc", Reg: regADCEnable1, Bit: 7}
	ADCBatteryCurrent = chip.Bit{Name: "battery current adc", Reg: regADCEnable1, Bit: 6}
	ADCAcinVoltage    = chip.Bit{Name: "acin voltage adc", Reg: regADCEnable1, Bit: 5}
	ADCAcinCurrent    = chip.Bit{Name: "acin current adc", Reg: regADCEnable1, Bit: 4}
	ADCVbusVoltage    = chip.Bit{Name: "vbus voltage adc", Reg: regADCEnable1, Bit: 3}
	ADCVbusCurrent    = chip.Bit{Name: "vbus current adc", Reg: regADCEnable1, Bit: 2}
	ADCTemperature    = chip.Bit{Name: "internal temperature adc", Reg: regADCEnable2, Bit: 7}
)

var (
	DC1 = chip.Rail{
		Bit:     chip.Bit{Name: "DC1", Reg: regOutputCtl, Bit: 0},
		VoltReg: regDC1Voltage,
		Mask:    0x7F,
		Min:     700,
		Max:     3500,
		Step:    25,
	}
	DC2 = chip.Rail{
		Bit:     chip.Bit{Name: "DC2", Reg: regOutputCtl, Bit: 4},
		VoltReg: regDC2Voltage,
		Mask:    0x3F,
		Min:     700,
		Max:     2275,
		Step:    25,
	}
	DC3 = chip.Rail{
		Bit:     chip.Bit{Name: "DC3", Reg: regOutputCtl, Bit: 1},
		VoltReg: regDC3Voltage,
		Mask:    0x7F,
		Min:     700,
		Max:     3500,
		Step:    25,
	}
	LDO2 = chip.Rail{
		Bit:     chip.Bit{Name: "LDO2", Reg: regOutputCtl, Bit: 2},
		VoltReg: regLDO23Voltage,
		Mask:    0x0F,
		Shift:   4,
		Min:     1800,
		Max:     3300,
		Step:    100,
	}
	LDO3 = chip.Rail{
		Bit:     chip.Bit{Name: "LDO3", Reg: regOutputCtl, Bit: 3},
		VoltReg: regLDO23Voltage,
		Mask:    0x0F,
		Min:     1800,
		Max:     3300,
		Step:    100,
	}
	EXTEN = chip.Rail{Bit: chip.Bit{Name: "EXTEN", Reg: regOutputCtl, Bit: 6}}
)

// Rails lists every rail by name.
var Rails = map[string]chip.Rail{
	"dc1": DC1, "dc2": DC2, "dc3": DC3,
	"ldo2": LDO2, "ldo3": LDO3, "exten": EXTEN,
}

// AXP192 is bound like any accessor: call Begin or BeginWithCallbacks, then
// use the register helpers or the typed methods below.
type AXP192 struct {
	*pmic.Accessor[*AXP192]
}

func New(opts ...pmic.Option) *AXP192 {
	d := &AXP192{}
	d.Accessor = pmic.NewAccessor(d, opts...)
	return d
}

// InitChip verifies the chip id.
func (d *AXP192) InitChip(ctx context.Context) error {
	return chip.CheckID(ctx, d, "axp192", regChipID, chipID)
}

func (d *AXP192) scaled(ctx context.Context, l pmic.FieldLayout, hi, lo uint8, lsb float32) (float32, error) {
	v, err := d.ReadField(ctx, l, hi, lo)
	if err != nil {
		return 0, err
	}
	return float32(v) * lsb, nil
}

// BatteryVoltage returns the battery voltage in millivolts.
func (d *AXP192) BatteryVoltage(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L4, regBatVHigh, regBatVLow, 1.1)
}

// ChargeCurrent returns the battery charge current in milliamps.
func (d *AXP192) ChargeCurrent(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L5, regChargeIHigh, regChargeILow, 0.5)
}

// DischargeCurrent returns the battery discharge current in milliamps.
func (d *AXP192) DischargeCurrent(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L5, regDischgIHigh, regDischgILow, 0.5)
}

func (d *AXP192) VbusVoltage(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L4, regVbusVHigh, regVbusVLow, 1.7)
}

func (d *AXP192) VbusCurrent(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L4, regVbusIHigh, regVbusILow, 0.375)
}

func (d *AXP192) AcinVoltage(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L4, regAcinVHigh, regAcinVLow, 1.7)
}

func (d *AXP192) AcinCurrent(ctx context.Context) (float32, error) {
	return d.scaled(ctx, pmic.H8L4, regAcinIHigh, regAcinILow, 0.625)
}

// Temperature returns the internal temperature in degrees Celsius.
func (d *AXP192) Temperature(ctx context.Context) (float32, error) {
	v, err := d.scaled(ctx, pmic.H8L4, regTempHigh, regTempLow, 0.1)
	if err != nil {
		return 0, err
	}
	return v - 144.7, nil
}

func (d *AXP192) IsAcinPresent(ctx context.Context) (bool, error) {
	return d.RegisterBit(ctx, regPowerStatus, 7)
}

func (d *AXP192) IsVbusPresent(ctx context.Context) (bool, error) {
	return d.RegisterBit(ctx, regPowerStatus, 5)
}

func (d *AXP192) IsCharging(ctx context.Context) (bool, error) {
	return d.RegisterBit(ctx, regChargeStatus, 6)
}

func (d *AXP192) IsBatteryConnected(ctx context.Context) (bool, error) {
	return d.RegisterBit(ctx, regChargeStatus, 5)
}

func (d *AXP192) EnableADC(ctx context.Context, ch chip.Bit) error {
	return ch.Set(ctx, d, true)
}

func (d *AXP192) DisableADC(ctx context.Context, ch chip.Bit) error {
	return ch.Set(ctx, d, false)
}

// PowerOff switches every rail off; the host loses power with them.
func (d *AXP192) PowerOff(ctx context.Context) error {
	if !d.SetRegisterBit(ctx, regShutdown, 7) {
		return fmt.Errorf("power off: %w", chip.ErrRegisterAccess)
	}
	return nil
}

type Status struct {
	AcinPresent      bool            `yaml:"acin_present"`
	AcinVoltage      float32         `yaml:"acin_mv,omitempty"`
	AcinCurrent      float32         `yaml:"acin_ma,omitempty"`
	VbusPresent      bool            `yaml:"vbus_present"`
	VbusVoltage      float32         `yaml:"vbus_mv,omitempty"`
	VbusCurrent      float32         `yaml:"vbus_ma,omitempty"`
	BatteryConnected bool            `yaml:"battery_connected"`
	Charging         bool            `yaml:"charging"`
	BatteryVoltage   float32         `yaml:"battery_mv,omitempty"`
	ChargeCurrent    float32         `yaml:"charge_ma,omitempty"`
	DischargeCurrent float32         `yaml:"discharge_ma,omitempty"`
	Temperature      float32         `yaml:"temperature_c"`
	Rails            map[string]bool `yaml:"rails"`
}

// Status reads a snapshot of the measurements. The ADC channels must be
// enabled for the values to be meaningful.
func (d *AXP192) Status(ctx context.Context) (*Status, error) {
	var s Status
	var err error
	if s.AcinPresent, err = d.IsAcinPresent(ctx); err != nil {
		return nil, fmt.Errorf("acin status: %w", err)
	}
	if s.VbusPresent, err = d.IsVbusPresent(ctx); err != nil {
		return nil, fmt.Errorf("vbus status: %w", err)
	}
	if s.BatteryConnected, err = d.IsBatteryConnected(ctx); err != nil {
		return nil, fmt.Errorf("battery presence: %w", err)
	}
	if s.Charging, err = d.IsCharging(ctx); err != nil {
		return nil, fmt.Errorf("charge status: %w", err)
	}
	if s.AcinPresent {
		if s.AcinVoltage, err = d.AcinVoltage(ctx); err != nil {
			return nil, fmt.Errorf("acin voltage: %w", err)
		}
		if s.AcinCurrent, err = d.AcinCurrent(ctx); err != nil {
			return nil, fmt.Errorf("acin current: %w", err)
		}
	}
	if s.VbusPresent {
		if s.VbusVoltage, err = d.VbusVoltage(ctx); err != nil {
			return nil, fmt.Errorf("vbus voltage: %w", err)
		}
		if s.VbusCurrent, err = d.VbusCurrent(ctx); err != nil {
			return nil, fmt.Errorf("vbus current: %w", err)
		}
	}
	if s.BatteryConnected {
		if s.BatteryVoltage, err = d.BatteryVoltage(ctx); err != nil {
			return nil, fmt.Errorf("battery voltage: %w", err)
		}
		if s.ChargeCurrent, err = d.ChargeCurrent(ctx); err != nil {
			return nil, fmt.Errorf("charge current: %w", err)
		}
		if s.DischargeCurrent, err = d.DischargeCurrent(ctx); err != nil {
			return nil, fmt.Errorf("discharge current: %w", err)
		}
	}
	if s.Temperature, err = d.Temperature(ctx); err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}
	s.Rails = make(map[string]bool, len(Rails))
	for name, r := range Rails {
		if s.Rails[name], err = r.IsEnabled(ctx, d); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
