// Package chip holds the pieces shared by the PMIC variants: identity
// checks, switchable bits and voltage-programmable rails.
package chip

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnexpectedChip = errors.New("unexpected chip id")
	ErrRegisterAccess = errors.New("register access failed")
	ErrOutOfRange     = errors.New("value out of range")
	ErrNotAdjustable  = errors.New("rail voltage is fixed")
)

// Registers is the register access a variant needs from its accessor.
type Registers interface {
	ReadBytes(ctx context.Context, reg uint8, buf []byte) error
	RegisterBit(ctx context.Context, reg, bit uint8) (bool, error)
	SetRegisterBit(ctx context.Context, reg, bit uint8) bool
	ClrRegisterBit(ctx context.Context, reg, bit uint8) bool
	UpdateRegister(ctx context.Context, reg, mask, value byte) bool
}

// CheckID reads the chip id register and compares it with want.
func CheckID(ctx context.Context, r Registers, name string, reg, want uint8) error {
	var id [1]byte
	err := r.ReadBytes(ctx, reg, id[:])
	if err != nil {
		return fmt.Errorf("%s: could not read chip id: %w", name, err)
	}
	if id[0] != want {
		return fmt.Errorf("%s: %w %#04x, expected %#04x", name, ErrUnexpectedChip, id[0], want)
	}
	return nil
}

// Bit is a single switch in a control register.
type Bit struct {
	Name string
	Reg  uint8
	Bit  uint8
}

func (b Bit) Set(ctx context.Context, r Registers, on bool) error {
	var ok bool
	if on {
		ok = r.SetRegisterBit(ctx, b.Reg, b.Bit)
	} else {
		ok = r.ClrRegisterBit(ctx, b.Reg, b.Bit)
	}
	if !ok {
		return fmt.Errorf("%s: %w", b.Name, ErrRegisterAccess)
	}
	return nil
}

func (b Bit) Get(ctx context.Context, r Registers) (bool, error) {
	on, err := r.RegisterBit(ctx, b.Reg, b.Bit)
	if err != nil {
		return false, fmt.Errorf("%s: %w", b.Name, err)
	}
	return on, nil
}

// Rail is a power output with an enable bit and, when Step is not zero, a
// voltage selector: value = (mV - Min) / Step, stored under Mask << Shift.
type Rail struct {
	Bit
	VoltReg uint8
	Mask    uint8
	Shift   uint8
	Min     int
	Max     int
	Step    int
}

func (r Rail) Enable(ctx context.Context, regs Registers) error {
	return r.Set(ctx, regs, true)
}

func (r Rail) Disable(ctx context.Context, regs Registers) error {
	return r.Set(ctx, regs, false)
}

func (r Rail) IsEnabled(ctx context.Context, regs Registers) (bool, error) {
	return r.Get(ctx, regs)
}

// Selector converts a voltage into the register value of the rail.
func (r Rail) Selector(mv int) (uint8, error) {
	if r.Step == 0 {
		return 0, fmt.Errorf("%s: %w", r.Name, ErrNotAdjustable)
	}
	if mv < r.Min || mv > r.Max || (mv-r.Min)%r.Step != 0 {
		return 0, fmt.Errorf("%s: %w: %d mV (%d..%d, step %d)", r.Name, ErrOutOfRange, mv, r.Min, r.Max, r.Step)
	}
	return uint8((mv - r.Min) / r.Step), nil
}

// Voltage converts a raw voltage register back into millivolts.
func (r Rail) Voltage(raw uint8) int {
	return r.Min + int(raw>>r.Shift&r.Mask)*r.Step
}

func (r Rail) SetVoltage(ctx context.Context, regs Registers, mv int) error {
	sel, err := r.Selector(mv)
	if err != nil {
		return err
	}
	mask := r.Mask << r.Shift
	if !regs.UpdateRegister(ctx, r.VoltReg, mask, sel<<r.Shift) {
		return fmt.Errorf("%s: %w", r.Name, ErrRegisterAccess)
	}
	return nil
}

func (r Rail) GetVoltage(ctx context.Context, regs Registers) (int, error) {
	if r.Step == 0 {
		return 0, fmt.Errorf("%s: %w", r.Name, ErrNotAdjustable)
	}
	var raw [1]byte
	err := regs.ReadBytes(ctx, r.VoltReg, raw[:])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.Name, err)
	}
	return r.Voltage(raw[0]), nil
}
