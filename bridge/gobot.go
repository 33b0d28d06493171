// Package bridge connects accessors to buses owned by other driver
// frameworks: gobot adaptors and tinygo drivers.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/pmic"
)

var _ pmic.I2CBus = &GobotBus{}

// GobotBus issues plain writes and reads through connections obtained from a
// gobot adaptor. Use pmic.FromI2CBus to bind it to an accessor.
type GobotBus struct {
	mx        sync.Mutex
	connector i2c.Connector
	bus       int
	conns     map[byte]i2c.Connection
}

// NewGobotBus uses the given bus number of the adaptor; a negative number
// selects the adaptor's default bus.
func NewGobotBus(c i2c.Connector, bus int) *GobotBus {
	if bus < 0 {
		bus = c.DefaultI2cBus()
	}
	return &GobotBus{
		connector: c,
		bus:       bus,
		conns:     map[byte]i2c.Connection{},
	}
}

func (g *GobotBus) connection(address byte) (i2c.Connection, error) {
	if c, ok := g.conns[address]; ok {
		return c, nil
	}
	c, err := g.connector.GetI2cConnection(int(address), g.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#x on bus %d: %w", address, g.bus, err)
	}
	g.conns[address] = c
	return c, nil
}

func (g *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.connection(address)
	if err != nil {
		return err
	}
	n, err := c.Write(buffer)
	if err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to %#x: %d of %d", address, n, len(buffer))
	}
	return nil
}

func (g *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.connection(address)
	if err != nil {
		return err
	}
	n, err := c.Read(buffer)
	if err != nil {
		return fmt.Errorf("read from %#x failed: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("read %d of %d bytes: %w", n, len(buffer), pmic.ErrShortRead)
	}
	return nil
}

// Release is a no-op: the kernel driver owns the bus state.
func (g *GobotBus) Release(context.Context) error {
	return nil
}

// Close closes every connection opened so far. The adaptor itself is left
// to its owner.
func (g *GobotBus) Close() error {
	g.mx.Lock()
	defer g.mx.Unlock()
	var errs []error
	for addr, c := range g.conns {
		errs = append(errs, c.Close())
		delete(g.conns, addr)
	}
	return errors.Join(errs...)
}
