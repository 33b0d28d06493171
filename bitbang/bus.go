// Package bitbang drives an I2C bus directly from two GPIO lines.
//
// The lines come from the GPIO character device through gpiod and are used
// open-drain: a line is released (input, pulled up externally) for a high
// level and driven as an output for a low level. Framing, acknowledgement and
// timing are done by periph's bit-banged I2C master.
package bitbang

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	pbitbang "periph.io/x/devices/v3/bitbang"

	"github.com/mklimuk/pmic"
)

var (
	_ pmic.Bus        = &Bus{}
	_ pmic.Configurer = &Bus{}
)

// Line is one open-drain GPIO line.
type Line interface {
	Release() error
	Low() error
	Value() (int, error)
	Close() error
}

type Options struct {
	Consumer  string
	Frequency uint32
	Master    Master
}

type Option func(*Options)

func WithConsumer(name string) Option {
	return func(o *Options) {
		o.Consumer = name
	}
}

func WithFrequency(hz uint32) Option {
	return func(o *Options) {
		o.Frequency = hz
	}
}

// WithMaster replaces periph's bit-banged master.
func WithMaster(m Master) Option {
	return func(o *Options) {
		o.Master = m
	}
}

// Master creates the I2C master running on the two pins.
type Master func(scl, sda gpio.PinIO, f physic.Frequency) (i2c.Bus, error)

// Bus is a software I2C master. Lines are requested from the GPIO chip on
// Configure, using the pin ids supplied on bind.
type Bus struct {
	mx        sync.Mutex
	opener    lineOpener
	sda       gpio.PinIO
	scl       gpio.PinIO
	frequency physic.Frequency
	newMaster Master
	master    i2c.Bus
}

type lineOpener interface {
	open(sda, scl int) (Line, Line, error)
	close() error
}

// NewBus prepares a bus on the named GPIO chip, e.g. "gpiochip0".
func NewBus(chip string, opts ...Option) *Bus {
	o := Options{Consumer: "pmic", Frequency: pmic.DefaultFrequency, Master: periphMaster}
	for _, opt := range opts {
		opt(&o)
	}
	b := newBus(o)
	b.opener = &gpiodOpener{chip: chip, consumer: o.Consumer}
	return b
}

// NewBusWithLines wraps lines that are already requested.
func NewBusWithLines(sda, scl Line, opts ...Option) *Bus {
	return NewBusWithPins(newLinePin("SDA", sda), newLinePin("SCL", scl), opts...)
}

// NewBusWithPins runs the bus on periph pins, e.g. gpioioctl lines.
func NewBusWithPins(sda, scl gpio.PinIO, opts ...Option) *Bus {
	o := Options{Frequency: pmic.DefaultFrequency, Master: periphMaster}
	for _, opt := range opts {
		opt(&o)
	}
	b := newBus(o)
	b.sda, b.scl = sda, scl
	return b
}

func newBus(o Options) *Bus {
	return &Bus{
		frequency: frequency(o.Frequency),
		newMaster: o.Master,
	}
}

func periphMaster(scl, sda gpio.PinIO, f physic.Frequency) (i2c.Bus, error) {
	m, err := pbitbang.New(scl, sda, f)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func frequency(hz uint32) physic.Frequency {
	if hz == 0 {
		hz = pmic.DefaultFrequency
	}
	return physic.Frequency(hz) * physic.Hertz
}

// Configure requests the SDA and SCL lines, starts the master and sets the
// clock rate.
func (b *Bus) Configure(_ context.Context, cfg pmic.BusConfig) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if cfg.Frequency > 0 {
		b.frequency = frequency(cfg.Frequency)
	}
	if b.master != nil {
		return b.setSpeed()
	}
	if b.sda == nil || b.scl == nil {
		if err := b.requestLines(cfg.SDA, cfg.SCL); err != nil {
			return err
		}
	}
	m, err := b.newMaster(b.scl, b.sda, b.frequency)
	if err != nil {
		return fmt.Errorf("could not start bit-banged master: %w", err)
	}
	b.master = m
	return nil
}

func (b *Bus) requestLines(sda, scl int) error {
	if sda < 0 || scl < 0 || sda == scl {
		return fmt.Errorf("%w: bit-banged bus needs two distinct lines (sda=%d scl=%d)", pmic.ErrInvalidPin, sda, scl)
	}
	if b.opener == nil {
		return fmt.Errorf("no GPIO chip to request lines from")
	}
	sdaLine, sclLine, err := b.opener.open(sda, scl)
	if err != nil {
		return fmt.Errorf("could not request bus lines: %w", err)
	}
	b.sda = newLinePin(fmt.Sprintf("GPIO%d", sda), sdaLine)
	b.scl = newLinePin(fmt.Sprintf("GPIO%d", scl), sclLine)
	return nil
}

func (b *Bus) setSpeed() error {
	err := b.master.SetSpeed(b.frequency)
	if err != nil {
		return fmt.Errorf("could not set bus speed to %s: %w", b.frequency, err)
	}
	return nil
}

func (b *Bus) Tx(ctx context.Context, addr uint8, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.master == nil {
		return fmt.Errorf("bus lines not configured: %w", pmic.ErrNotBound)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.master.Tx(uint16(addr), w, r)
	if err != nil {
		return fmt.Errorf("bit-banged transaction with %#04x failed: %w", addr, err)
	}
	return nil
}

// Close stops the master and releases both lines and the GPIO chip.
func (b *Bus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	if c, ok := b.master.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	for _, p := range []gpio.PinIO{b.sda, b.scl} {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if b.opener != nil {
		errs = append(errs, b.opener.close())
	}
	b.master = nil
	b.sda, b.scl = nil, nil
	return errors.Join(errs...)
}
