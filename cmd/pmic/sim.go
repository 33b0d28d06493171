package main

import (
	"github.com/mklimuk/pmic/config"
	"github.com/mklimuk/pmic/pmictest"
)

// newSimulator returns a register file preloaded with a plausible snapshot
// of a board running from USB with a charging battery.
func newSimulator(addr uint8, variant string) *pmictest.RegisterFile {
	dev := pmictest.NewRegisterFile(addr)
	if variant == config.VariantAXP192 {
		dev.Set(0x00, 0x20, 0x60, 0x00, 0x03)
		dev.Set(0x12, 0x5F)
		dev.Set(0x26, 0x68, 0x68, 0xFC)
		dev.Set(0x5A, 0xB7, 0x08, 0x10, 0x00, 0x6E, 0x02)
		dev.Set(0x78, 0xB4, 0x05, 0x0C, 0x10)
		dev.Set(0x82, 0xFF, 0x80)
		return dev
	}
	dev.Set(0x00, 0x28, 0x20, 0x00, 0x4A)
	dev.Set(0x30, 0x1F)
	dev.Set(0x34, 0x0F, 0xA0, 0x00, 0x00, 0x13, 0x88, 0x0C, 0xE4, 0x1C, 0x6A)
	dev.Set(0x80, 0x01)
	dev.Set(0x82, 0x12)
	dev.Set(0x90, 0x03, 0x00, 0x1C, 0x1C)
	dev.Set(0xA4, 87)
	return dev
}
