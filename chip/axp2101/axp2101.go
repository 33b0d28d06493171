// Package axp2101 drives the X-Powers AXP2101 power management unit.
package axp2101

import (
	"context"
	"fmt"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/chip"
)

// DefaultAddress is the factory slave address.
const DefaultAddress = 0x34

const (
	regStatus1     = 0x00
	regStatus2     = 0x01
	regChipID      = 0x03
	regPowerOff    = 0x10
	regADCEnable   = 0x30
	regVbatHigh    = 0x34
	regVbatLow     = 0x35
	regTSHigh      = 0x36
	regTSLow       = 0x37
	regVbusHigh    = 0x38
	regVbusLow     = 0x39
	regVsysHigh    = 0x3A
	regVsysLow     = 0x3B
	regTempHigh    = 0x3C
	regTempLow     = 0x3D
	regDCEnable    = 0x80
	regDC1Voltage  = 0x82
	regLDOEnable   = 0x90
	regALDO1Volt   = 0x92
	regBatteryPerc = 0xA4

	chipID = 0x4A
)

// ADC channels, as bits of the ADC enable register.
var (
	ADCBattery     = chip.Bit{Name: "vbat adc", Reg: regADCEnable, Bit: 0}
	ADCTS          = chip.Bit{Name: "ts adc", Reg: regADCEnable, Bit: 1}
	ADCVbus        = chip.Bit{Name: "vbus adc", Reg: regADCEnable, Bit: 2}
	ADCVsys        = chip.Bit{Name: "vsys adc", Reg: regADCEnable, Bit: 3}
	ADCTemperature = chip.Bit{Name: "die temperature adc", Reg: regADCEnable, Bit: 4}
)

func ldo(name string, bit uint8, voltReg uint8) chip.Rail {
	return chip.Rail{
		Bit:     chip.Bit{Name: name, Reg: regLDOEnable, Bit: bit},
		VoltReg: voltReg,
		Mask:    0x1F,
		Min:     500,
		Max:     3500,
		Step:    100,
	}
}

var (
	DC1 = chip.Rail{
		Bit:     chip.Bit{Name: "DC1", Reg: regDCEnable, Bit: 0},
		VoltReg: regDC1Voltage,
		Mask:    0x1F,
		Min:     1500,
		Max:     3400,
		Step:    100,
	}
	DC2   = chip.Rail{Bit: chip.Bit{Name: "DC2", Reg: regDCEnable, Bit: 1}}
	DC3   = chip.Rail{Bit: chip.Bit{Name: "DC3", Reg: regDCEnable, Bit: 2}}
	DC4   = chip.Rail{Bit: chip.Bit{Name: "DC4", Reg: regDCEnable, Bit: 3}}
	DC5   = chip.Rail{Bit: chip.Bit{Name: "DC5", Reg: regDCEnable, Bit: 4}}
	ALDO1 = ldo("ALDO1", 0, regALDO1Volt)
	ALDO2 = ldo("ALDO2", 1, regALDO1Volt+1)
	ALDO3 = ldo("ALDO3", 2, regALDO1Volt+2)
	ALDO4 = ldo("ALDO4", 3, regALDO1Volt+3)
	BLDO1 = ldo("BLDO1", 4, regALDO1Volt+4)
	BLDO2 = ldo("BLDO2", 5, regALDO1Volt+5)
)

// Rails lists every rail by name.
var Rails = map[string]chip.Rail{
	"dc1": DC1, "dc2": DC2, "dc3": DC3, "dc4": DC4, "dc5": DC5,
	"aldo1": ALDO1, "aldo2": ALDO2, "aldo3": ALDO3, "aldo4": ALDO4,
	"bldo1": BLDO1, "bldo2": BLDO2,
}

type ChargeState uint8

const (
	ChargeStandby ChargeState = iota
	Charging
	Discharging
)

func (s ChargeState) String() string {
	switch s {
	case ChargeStandby:
		return "standby"
	case Charging:
		return "charging"
	case Discharging:
		return "discharging"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// MarshalYAML keeps snapshots readable.
func (s ChargeState) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// AXP2101 is bound like any accessor: call Begin or BeginWithCallbacks, then
// use the register helpers or the typed methods below.
type AXP2101 struct {
	*pmic.Accessor[*AXP2101]
}

func New(opts ...pmic.Option) *AXP2101 {
	d := &AXP2101{}
	d.Accessor = pmic.NewAccessor(d, opts...)
	return d
}

// InitChip verifies the chip id.
func (d *AXP2101) InitChip(ctx context.Context) error {
	return chip.CheckID(ctx, d, "axp2101", regChipID, chipID)
}

// BatteryVoltage returns the battery voltage in millivolts.
func (d *AXP2101) BatteryVoltage(ctx context.Context) (int, error) {
	v, err := d.ReadField(ctx, pmic.H5L8, regVbatHigh, regVbatLow)
	return int(v), err
}

// VbusVoltage returns the USB input voltage in millivolts.
func (d *AXP2101) VbusVoltage(ctx context.Context) (int, error) {
	v, err := d.ReadField(ctx, pmic.H6L8, regVbusHigh, regVbusLow)
	return int(v), err
}

// SystemVoltage returns VSYS in millivolts.
func (d *AXP2101) SystemVoltage(ctx context.Context) (int, error) {
	v, err := d.ReadField(ctx, pmic.H6L8, regVsysHigh, regVsysLow)
	return int(v), err
}

// TSVoltage returns the battery thermistor voltage in millivolts.
func (d *AXP2101) TSVoltage(ctx context.Context) (float32, error) {
	v, err := d.ReadField(ctx, pmic.H6L8, regTSHigh, regTSLow)
	return float32(v) * 0.5, err
}

// Temperature returns the die temperature in degrees Celsius.
func (d *AXP2101) Temperature(ctx context.Context) (float32, error) {
	v, err := d.ReadField(ctx, pmic.H6L8, regTempHigh, regTempLow)
	if err != nil {
		return 0, err
	}
	return 22 + (7274-float32(v))/20, nil
}

// BatteryPercent is the fuel gauge estimate, 0-100.
func (d *AXP2101) BatteryPercent(ctx context.Context) (int, error) {
	var b [1]byte
	err := d.ReadBytes(ctx, regBatteryPerc, b[:])
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

func (d *AXP2101) IsVbusGood(ctx context.Context) (bool, error) {
	return d.RegisterBit(ctx, regStatus1, 5)
}

func (d *AXP2101) IsBatteryConnected(ctx context.Context) (bool, error) {
	return d.RegisterBit(ctx, regStatus1, 3)
}

func (d *AXP2101) ChargeState(ctx context.Context) (ChargeState, error) {
	var b [1]byte
	err := d.ReadBytes(ctx, regStatus2, b[:])
	if err != nil {
		return 0, err
	}
	return ChargeState(b[0] >> 5 & 0x03), nil
}

func (d *AXP2101) EnableADC(ctx context.Context, ch chip.Bit) error {
	return ch.Set(ctx, d, true)
}

func (d *AXP2101) DisableADC(ctx context.Context, ch chip.Bit) error {
	return ch.Set(ctx, d, false)
}

// PowerOff switches every rail off; the host loses power with them.
func (d *AXP2101) PowerOff(ctx context.Context) error {
	if !d.SetRegisterBit(ctx, regPowerOff, 0) {
		return fmt.Errorf("power off: %w", chip.ErrRegisterAccess)
	}
	return nil
}

type Status struct {
	BatteryConnected bool            `yaml:"battery_connected"`
	BatteryVoltage   int             `yaml:"battery_mv"`
	BatteryPercent   int             `yaml:"battery_percent"`
	VbusGood         bool            `yaml:"vbus_good"`
	VbusVoltage      int             `yaml:"vbus_mv"`
	SystemVoltage    int             `yaml:"vsys_mv"`
	Temperature      float32         `yaml:"temperature_c"`
	ChargeState      ChargeState     `yaml:"charge_state"`
	Rails            map[string]bool `yaml:"rails"`
}

// Status reads a snapshot of the measurements. The ADC channels must be
// enabled for the voltages to be meaningful.
func (d *AXP2101) Status(ctx context.Context) (*Status, error) {
	var s Status
	var err error
	if s.BatteryConnected, err = d.IsBatteryConnected(ctx); err != nil {
		return nil, fmt.Errorf("battery presence: %w", err)
	}
	if s.VbusGood, err = d.IsVbusGood(ctx); err != nil {
		return nil, fmt.Errorf("vbus status: %w", err)
	}
	if s.ChargeState, err = d.ChargeState(ctx); err != nil {
		return nil, fmt.Errorf("charge state: %w", err)
	}
	if s.BatteryConnected {
		if s.BatteryVoltage, err = d.BatteryVoltage(ctx); err != nil {
			return nil, fmt.Errorf("battery voltage: %w", err)
		}
		if s.BatteryPercent, err = d.BatteryPercent(ctx); err != nil {
			return nil, fmt.Errorf("battery percent: %w", err)
		}
	}
	if s.VbusGood {
		if s.VbusVoltage, err = d.VbusVoltage(ctx); err != nil {
			return nil, fmt.Errorf("vbus voltage: %w", err)
		}
	}
	if s.SystemVoltage, err = d.SystemVoltage(ctx); err != nil {
		return nil, fmt.Errorf("system voltage: %w", err)
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
