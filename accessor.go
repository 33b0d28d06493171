package pmic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// UnboundAddress is reported by Address before the first bind.
const UnboundAddress = 0xFF

const maxAddress = 0x7F

// Chip is the contract every concrete driver fulfils. InitChip runs after
// every bind, including repeated ones on an already bound accessor.
type Chip interface {
	InitChip(ctx context.Context) error
}

// RegFunc is an externally supplied register transport. len(data) bytes are read
// into (or written from) data starting at reg. Zero means success.
type RegFunc func(addr, reg uint8, data []byte) int

type Mode int

const (
	ModeNone Mode = iota
	ModeBuiltIn
	ModeCallback
)

func (m Mode) String() string {
	switch m {
	case ModeBuiltIn:
		return "built-in"
	case ModeCallback:
		return "callback"
	default:
		return "none"
	}
}

// Accessor gives a chip driver register level access to a single device.
// Drivers embed *Accessor[*Driver] and implement Chip.
//
// An Accessor does no locking. Callers serialize access to it and to the
// underlying bus when several accessors share one.
type Accessor[C Chip] struct {
	chip       C
	log        *slog.Logger
	timeout    time.Duration
	frequency  uint32
	defaultBus Bus

	hasInit bool
	mode    Mode
	addr    uint8
	sda     int
	scl     int
	bus     Bus
	ownsBus bool
	readFn  RegFunc
	writeFn RegFunc
}

func NewAccessor[C Chip](chip C, opts ...Option) *Accessor[C] {
	o := Options{
		Logger:    slog.Default(),
		Timeout:   DefaultTimeout,
		Frequency: DefaultFrequency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	a := &Accessor[C]{
		chip:       chip,
		log:        o.Logger,
		timeout:    o.Timeout,
		frequency:  o.Frequency,
		defaultBus: o.DefaultBus,
	}
	a.reset()
	return a
}

func (a *Accessor[C]) reset() {
	a.hasInit = false
	a.mode = ModeNone
	a.addr = UnboundAddress
	a.sda, a.scl = -1, -1
	a.bus = nil
	a.ownsBus = false
	a.readFn, a.writeFn = nil, nil
}

// Begin binds the accessor to a bus. A nil bus selects the default bus.
// On an accessor that is already bound only the chip initialization is repeated.
func (a *Accessor[C]) Begin(ctx context.Context, bus Bus, addr uint8, sda, scl int, opts ...BindOption) error {
	if a.hasInit {
		return a.initChip(ctx)
	}
	if addr > maxAddress {
		return fmt.Errorf("%w: %#x", ErrInvalidAddress, addr)
	}
	if sda < -1 || scl < -1 {
		return fmt.Errorf("%w: sda=%d scl=%d", ErrInvalidPin, sda, scl)
	}
	if bus == nil {
		bus = a.defaultBus
	}
	if bus == nil {
		return ErrNoTransport
	}
	var bc bindConfig
	for _, opt := range opts {
		opt(&bc)
	}
	if c, ok := bus.(Configurer); ok {
		cctx, cancel := a.txContext(ctx)
		err := c.Configure(cctx, BusConfig{SDA: sda, SCL: scl, Frequency: a.frequency})
		cancel()
		if err != nil {
			return fmt.Errorf("could not configure bus: %w", err)
		}
	}
	a.addr, a.sda, a.scl = addr, sda, scl
	a.bus = bus
	a.ownsBus = bc.owned
	a.readFn, a.writeFn = nil, nil
	a.mode = ModeBuiltIn
	a.hasInit = true
	a.log.Debug("bound to bus", "addr", hex8(addr), "sda", sda, "scl", scl, "frequency", a.frequency)
	return a.initChip(ctx)
}

// BeginWithCallbacks binds the accessor to caller supplied transport functions.
// Bound callbacks take priority over any bus for the accessor's lifetime.
func (a *Accessor[C]) BeginWithCallbacks(ctx context.Context, addr uint8, read, write RegFunc) error {
	if a.hasInit {
		return a.initChip(ctx)
	}
	if addr > maxAddress {
		return fmt.Errorf("%w: %#x", ErrInvalidAddress, addr)
	}
	if read == nil || write == nil {
		return ErrNoTransport
	}
	a.addr = addr
	a.readFn, a.writeFn = read, write
	a.bus = nil
	a.ownsBus = false
	a.mode = ModeCallback
	a.hasInit = true
	a.log.Debug("bound to callbacks", "addr", hex8(addr))
	return a.initChip(ctx)
}

// End releases an owned bus and returns the accessor to its unbound state.
func (a *Accessor[C]) End() error {
	var err error
	if a.ownsBus {
		if c, ok := a.bus.(io.Closer); ok {
			err = c.Close()
		}
	}
	a.reset()
	return err
}

func (a *Accessor[C]) initChip(ctx context.Context) error {
	err := a.chip.InitChip(ctx)
	if err != nil {
		a.log.Debug("chip init failed", "addr", hex8(a.addr), "error", err)
		return fmt.Errorf("%w: %w", ErrChipInit, err)
	}
	return nil
}

func (a *Accessor[C]) Address() uint8 {
	return a.addr
}

func (a *Accessor[C]) Pins() (sda, scl int) {
	return a.sda, a.scl
}

func (a *Accessor[C]) IsBound() bool {
	return a.hasInit
}

func (a *Accessor[C]) Mode() Mode {
	return a.mode
}

// ReadBytes fills buf from consecutive registers starting at reg.
func (a *Accessor[C]) ReadBytes(ctx context.Context, reg uint8, buf []byte) error {
	var err error
	switch {
	case a.readFn != nil:
		if st := a.readFn(a.addr, reg, buf); st != 0 {
			err = StatusError(st)
		}
	case a.bus != nil:
		tctx, cancel := a.txContext(ctx)
		err = a.bus.Tx(tctx, a.addr, []byte{reg}, buf)
		cancel()
	default:
		err = ErrNotBound
	}
	if err != nil {
		a.log.Debug("register read failed", "addr", hex8(a.addr), "reg", hex8(reg), "len", len(buf), "error", err)
		return fmt.Errorf("read register %s: %w", hex8(reg), err)
	}
	return nil
}

// WriteBytes writes buf to consecutive registers starting at reg.
// The built-in transport sends the register and the payload as one transaction.
func (a *Accessor[C]) WriteBytes(ctx context.Context, reg uint8, buf []byte) error {
	var err error
	switch {
	case a.writeFn != nil:
		if st := a.writeFn(a.addr, reg, buf); st != 0 {
			err = StatusError(st)
		}
	case a.bus != nil:
		payload := make([]byte, 0, len(buf)+1)
		payload = append(payload, reg)
		payload = append(payload, buf...)
		tctx, cancel := a.txContext(ctx)
		err = a.bus.Tx(tctx, a.addr, payload, nil)
		cancel()
	default:
		err = ErrNotBound
	}
	if err != nil {
		a.log.Debug("register write failed", "addr", hex8(a.addr), "reg", hex8(reg), "len", len(buf), "error", err)
		return fmt.Errorf("write register %s: %w", hex8(reg), err)
	}
	return nil
}

// ReadRegisters returns a callback's status unchanged, 0 on success and -1 on
// a built-in transport failure.
func (a *Accessor[C]) ReadRegisters(ctx context.Context, reg uint8, buf []byte) int {
	return statusOf(a.ReadBytes(ctx, reg, buf))
}

// WriteRegisters follows the status convention of ReadRegisters.
func (a *Accessor[C]) WriteRegisters(ctx context.Context, reg uint8, buf []byte) int {
	return statusOf(a.WriteBytes(ctx, reg, buf))
}

// ReadRegister returns the register value or -1 when it could not be read.
func (a *Accessor[C]) ReadRegister(ctx context.Context, reg uint8) int {
	var b [1]byte
	if a.ReadRegisters(ctx, reg, b[:]) != 0 {
		return -1
	}
	return int(b[0])
}

func (a *Accessor[C]) WriteRegister(ctx context.Context, reg uint8, value byte) int {
	return a.WriteRegisters(ctx, reg, []byte{value})
}

// SetRegisterBit is a read-modify-write over two transactions and is not atomic.
func (a *Accessor[C]) SetRegisterBit(ctx context.Context, reg, bit uint8) bool {
	if bit > 7 {
		return false
	}
	v := a.ReadRegister(ctx, reg)
	if v < 0 {
		return false
	}
	return a.WriteRegister(ctx, reg, byte(v)|1<<bit) == 0
}

// ClrRegisterBit is a read-modify-write over two transactions and is not atomic.
func (a *Accessor[C]) ClrRegisterBit(ctx context.Context, reg, bit uint8) bool {
	if bit > 7 {
		return false
	}
	v := a.ReadRegister(ctx, reg)
	if v < 0 {
		return false
	}
	return a.WriteRegister(ctx, reg, byte(v)&^(1<<bit)) == 0
}

// GetRegisterBit reports false both for a clear bit and for a failed read.
// Use RegisterBit to tell them apart.
func (a *Accessor[C]) GetRegisterBit(ctx context.Context, reg, bit uint8) bool {
	set, _ := a.RegisterBit(ctx, reg, bit)
	return set
}

func (a *Accessor[C]) RegisterBit(ctx context.Context, reg, bit uint8) (bool, error) {
	if bit > 7 {
		return false, fmt.Errorf("%w: %d", ErrInvalidBit, bit)
	}
	var b [1]byte
	err := a.ReadBytes(ctx, reg, b[:])
	if err != nil {
		return false, err
	}
	return b[0]&(1<<bit) != 0, nil
}

// UpdateRegister replaces the bits selected by mask with the matching bits of value.
func (a *Accessor[C]) UpdateRegister(ctx context.Context, reg, mask, value byte) bool {
	v := a.ReadRegister(ctx, reg)
	if v < 0 {
		return false
	}
	return a.WriteRegister(ctx, reg, byte(v)&^mask|value&mask) == 0
}

func (a *Accessor[C]) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func hex8(v uint8) string {
	return fmt.Sprintf("%#04x", v)
}
