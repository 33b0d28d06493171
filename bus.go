package pmic

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// DefaultFrequency is the clock rate requested from a Configurer on bind.
const DefaultFrequency = 400_000

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a bus that can only issue plain write and plain read transfers.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Bus performs a single combined transaction: w is written to the device and,
// when r is not empty, r is filled after a repeated start.
// Implementations return an error wrapping ErrShortRead when fewer than len(r)
// bytes arrive and ErrNoAck when the device does not acknowledge.
type Bus interface {
	Tx(ctx context.Context, addr uint8, w, r []byte) error
}

// BusConfig is passed to a Configurer when an accessor binds to a bus.
// Pin ids of -1 select the platform default.
type BusConfig struct {
	SDA       int
	SCL       int
	Frequency uint32
}

// Configurer is implemented by buses that need pin/clock setup before use.
type Configurer interface {
	Configure(ctx context.Context, cfg BusConfig) error
}

// FromI2CBus turns a write/read bus into a Bus. The register pointer is written
// first and the payload read in a second transfer.
func FromI2CBus(b I2CBus) Bus {
	return splitBus{b: b}
}

type splitBus struct {
	b I2CBus
}

func (s splitBus) Tx(ctx context.Context, addr uint8, w, r []byte) error {
	if len(w) > 0 || len(r) == 0 {
		err := s.b.WriteToAddr(ctx, addr, w)
		if err != nil {
			if errors.Is(err, ErrBusBusy) {
				// leave the engine usable for the next call
				_ = s.b.Release(ctx)
			}
			return fmt.Errorf("write to %#x failed: %w", addr, err)
		}
	}
	if len(r) == 0 {
		return nil
	}
	err := s.b.ReadFromAddr(ctx, addr, r)
	if err != nil {
		return fmt.Errorf("read from %#x failed: %w", addr, err)
	}
	return nil
}

// Configure forwards to the wrapped bus when it supports configuration.
func (s splitBus) Configure(ctx context.Context, cfg BusConfig) error {
	if c, ok := s.b.(Configurer); ok {
		return c.Configure(ctx, cfg)
	}
	return nil
}

// Close forwards to the wrapped bus when it can be closed.
func (s splitBus) Close() error {
	if c, ok := s.b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
