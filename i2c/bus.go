package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/pmic"
)

var (
	_ pmic.Bus        = &GenericBus{}
	_ pmic.Configurer = &GenericBus{}
)

// GenericBus is a Linux i2c-dev bus opened through periph.io.
type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus initializes the host drivers and opens the named bus,
// e.g. "/dev/i2c-1" or "1". An empty name opens the first available bus.
func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewBus(bus), nil
}

// NewBus wraps an already opened periph.io bus.
func NewBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

func (b *GenericBus) Tx(ctx context.Context, addr uint8, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.bus.Tx(uint16(addr), w, r)
	if err != nil {
		return fmt.Errorf("i2c transaction with %#x failed: %w", addr, err)
	}
	return nil
}

// Configure sets the bus clock. i2c-dev buses have their pins fixed by the
// platform; requested pins are checked against them when the bus reports them.
func (b *GenericBus) Configure(_ context.Context, cfg pmic.BusConfig) error {
	if p, ok := b.bus.(i2c.Pins); ok {
		if err := checkPin("SDA", cfg.SDA, p.SDA().Number()); err != nil {
			return err
		}
		if err := checkPin("SCL", cfg.SCL, p.SCL().Number()); err != nil {
			return err
		}
	}
	if cfg.Frequency == 0 {
		return nil
	}
	return b.SetSpeed(physic.Frequency(cfg.Frequency) * physic.Hertz)
}

func checkPin(name string, requested, actual int) error {
	if requested < 0 || actual < 0 || requested == actual {
		return nil
	}
	return fmt.Errorf("%w: %s is pin %d on this bus, not %d", pmic.ErrInvalidPin, name, actual, requested)
}

func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	err := b.bus.SetSpeed(f)
	if err != nil {
		return fmt.Errorf("could not set bus speed to %s: %w", f, err)
	}
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
