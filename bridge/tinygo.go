package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/pmic"
)

var (
	_ pmic.Bus    = TinyGoBus{}
	_ drivers.I2C = DriversI2C{}
)

// TinyGoBus binds an accessor to a bus shared with tinygo drivers.
type TinyGoBus struct {
	I2C drivers.I2C
}

func (t TinyGoBus) Tx(ctx context.Context, addr uint8, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := t.I2C.Tx(uint16(addr), w, r)
	if err != nil {
		return fmt.Errorf("i2c transaction with %#x failed: %w", addr, err)
	}
	return nil
}

// DriversI2C exposes a bus to tinygo drivers. Every transaction runs under
// the context returned by Context, or a background one.
type DriversI2C struct {
	Bus     pmic.Bus
	Context func() context.Context
}

func (d DriversI2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%w: %#x", pmic.ErrInvalidAddress, addr)
	}
	ctx := context.Background()
	if d.Context != nil {
		ctx = d.Context()
	}
	return d.Bus.Tx(ctx, uint8(addr), w, r)
}

// Status codes returned by the callbacks made by Callbacks.
const (
	StatusOK    = 0
	StatusNoAck = 2
	StatusOther = 4
)

// NoAck reports whether a bus error means the device did not acknowledge.
type NoAck func(err error) bool

type CallbackOption func(*callbackConfig)

type callbackConfig struct {
	noAck NoAck
}

// WithNoAck replaces the default NACK detection, e.g. with a match on the
// errors of a specific machine.I2C port.
func WithNoAck(f NoAck) CallbackOption {
	return func(c *callbackConfig) {
		c.noAck = f
	}
}

// Callbacks builds a read/write pair for callback mode on top of a tinygo
// bus. Failures are reported with the status codes of the Arduino Wire
// library: 2 when the device did not acknowledge, 4 otherwise.
//
// machine.I2C ports return their own, mostly unexported, errors. By default
// an error counts as a NACK when it wraps pmic.ErrNoAck or its message
// mentions a NACK or a missing acknowledge; everything else is 4.
func Callbacks(bus drivers.I2C, opts ...CallbackOption) (read, write pmic.RegFunc) {
	c := callbackConfig{noAck: isNoAck}
	for _, opt := range opts {
		opt(&c)
	}
	read = func(addr, reg uint8, data []byte) int {
		return c.status(bus.Tx(uint16(addr), []byte{reg}, data))
	}
	write = func(addr, reg uint8, data []byte) int {
		w := make([]byte, 0, len(data)+1)
		w = append(w, reg)
		w = append(w, data...)
		return c.status(bus.Tx(uint16(addr), w, nil))
	}
	return read, write
}

func (c callbackConfig) status(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case c.noAck(err):
		return StatusNoAck
	default:
		return StatusOther
	}
}

func isNoAck(err error) bool {
	if errors.Is(err, pmic.ErrNoAck) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nack") ||
		strings.Contains(msg, "acknowledge") ||
		strings.Contains(msg, "expected ack")
}
