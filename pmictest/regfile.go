// Package pmictest provides an in-memory register file that stands in for a
// PMIC on the bus. It is used by tests and by the command line "sim" adapter.
package pmictest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/pmic"
)

// Tx is a recorded bus transaction.
type Tx struct {
	Addr uint8
	W    []byte
	R    int
}

// RegisterFile models a byte addressable device with 256 registers.
// Reads and writes auto-increment the register pointer.
type RegisterFile struct {
	mx        sync.Mutex
	addr      uint8
	regs      [256]byte
	failRead  map[uint8]bool
	failWrite map[uint8]bool
	nack      bool

	Txs        []Tx
	Configs    []pmic.BusConfig
	Reads      int
	Writes     int
	Configured int
}

// NewRegisterFile creates a device answering at addr.
func NewRegisterFile(addr uint8) *RegisterFile {
	return &RegisterFile{
		addr:      addr,
		failRead:  map[uint8]bool{},
		failWrite: map[uint8]bool{},
	}
}

// Set presets registers starting at reg without recording a transaction.
func (f *RegisterFile) Set(reg uint8, values ...byte) {
	f.mx.Lock()
	defer f.mx.Unlock()
	for i, v := range values {
		f.regs[reg+uint8(i)] = v
	}
}

func (f *RegisterFile) Get(reg uint8) byte {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.regs[reg]
}

// FailRead makes every read that starts at reg fail.
func (f *RegisterFile) FailRead(reg uint8) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.failRead[reg] = true
}

// FailWrite makes every write that starts at reg fail.
func (f *RegisterFile) FailWrite(reg uint8) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.failWrite[reg] = true
}

// Detach makes the device stop acknowledging its address.
func (f *RegisterFile) Detach() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.nack = true
}

func (f *RegisterFile) Tx(ctx context.Context, addr uint8, w, r []byte) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Txs = append(f.Txs, Tx{Addr: addr, W: append([]byte(nil), w...), R: len(r)})
	if addr != f.addr || f.nack {
		return fmt.Errorf("address %#04x: %w", addr, pmic.ErrNoAck)
	}
	if len(w) == 0 {
		return fmt.Errorf("no register pointer: %w", pmic.ErrNoAck)
	}
	reg := w[0]
	if len(r) > 0 {
		return f.read(reg, r)
	}
	return f.write(reg, w[1:])
}

func (f *RegisterFile) Configure(_ context.Context, cfg pmic.BusConfig) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.Configured++
	f.Configs = append(f.Configs, cfg)
	return nil
}

// Callbacks returns a read/write pair operating on the same registers,
// suitable for Accessor.BeginWithCallbacks.
func (f *RegisterFile) Callbacks() (read, write pmic.RegFunc) {
	read = func(addr, reg uint8, data []byte) int {
		f.mx.Lock()
		defer f.mx.Unlock()
		if addr != f.addr || f.nack {
			return -1
		}
		if f.read(reg, data) != nil {
			return -1
		}
		return 0
	}
	write = func(addr, reg uint8, data []byte) int {
		f.mx.Lock()
		defer f.mx.Unlock()
		if addr != f.addr || f.nack {
			return -1
		}
		if f.write(reg, data) != nil {
			return -1
		}
		return 0
	}
	return read, write
}

func (f *RegisterFile) read(reg uint8, r []byte) error {
	f.Reads++
	if f.failRead[reg] {
		return fmt.Errorf("register %#04x: %w", reg, pmic.ErrNoAck)
	}
	for i := range r {
		r[i] = f.regs[reg+uint8(i)]
	}
	return nil
}

func (f *RegisterFile) write(reg uint8, data []byte) error {
	f.Writes++
	if f.failWrite[reg] {
		return fmt.Errorf("register %#04x: %w", reg, pmic.ErrNoAck)
	}
	for i, v := range data {
		f.regs[reg+uint8(i)] = v
	}
	return nil
}
