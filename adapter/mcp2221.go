// Package adapter talks to USB-to-I2C bridges.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/pmicctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	reportSize = 64
	// maxChunk is the payload a single HID report can carry.
	maxChunk = 60
	// clockRate is the MCP2221 system clock the speed divider is derived from.
	clockRate = 12_000_000
	// writePolls bounds the status requests made while a write drains.
	writePolls         = 50
	statusPollInterval = 300 * time.Microsecond
)

const (
	cmdStatus          = 0x10
	cmdWrite           = 0x90
	cmdWriteNoStop     = 0x94
	cmdRead            = 0x91
	cmdReadRepeatStart = 0x93
	cmdGetData         = 0x40

	statusCancel   = 0x10
	statusSetSpeed = 0x20
	speedRejected  = 0x21
	getDataFailed  = 0x41
	addrNACK       = 0x40
	readNotReady   = 127
)

// I2C engine states reported in byte 8 of a status response.
const (
	stateIdle            = 0x00
	stateStartTimeout    = 0x12
	stateRepStartTimeout = 0x17
	stateAddrTimeout     = 0x23
	stateAddrNACK        = 0x25
	statePartialData     = 0x41
	stateWriteTimeout    = 0x44
	stateWritingNoStop   = 0x45
	stateReadTimeout     = 0x52
	stateStopTimeout     = 0x62
)

var (
	ErrCommandFailed   = errors.New("command failed")
	ErrTransferTimeout = errors.New("i2c transfer timed out")
)

var (
	_ pmic.Bus        = &MCP2221{}
	_ pmic.I2CBus     = &MCP2221{}
	_ pmic.Configurer = &MCP2221{}
)

// Device is an opened HID endpoint.
type Device interface {
	io.ReadWriteCloser
}

type Options struct {
	DeviceIndex  int
	ResponseWait time.Duration
	Dump         io.Writer
	Open         func(index int) (Device, error)
}

type Option func(*Options)

// WithDeviceIndex selects one of several attached adapters.
func WithDeviceIndex(i int) Option {
	return func(o *Options) {
		o.DeviceIndex = i
	}
}

func WithResponseWait(d time.Duration) Option {
	return func(o *Options) {
		o.ResponseWait = d
	}
}

// WithDump sets where raw reports go when the context is verbose.
func WithDump(w io.Writer) Option {
	return func(o *Options) {
		o.Dump = w
	}
}

// WithOpener replaces USB enumeration, mostly for tests.
func WithOpener(open func(index int) (Device, error)) Option {
	return func(o *Options) {
		o.Open = open
	}
}

// MCP2221 is a Microchip USB to I2C bridge. Every command opens the HID
// device, sends one 64 byte report and reads one 64 byte response.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	index        int
	dump         io.Writer
	open         func(index int) (Device, error)
}

type MCP2221Status struct {
	I2CState               int    `yaml:"i2c_state"`
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

func NewMCP2221(opts ...Option) *MCP2221 {
	o := Options{
		ResponseWait: 50 * time.Millisecond,
		Dump:         os.Stdout,
		Open:         openHID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: o.ResponseWait,
		index:        o.DeviceIndex,
		dump:         o.Dump,
		open:         o.Open,
	}
}

// Init checks that the adapter answers a status request.
func (d *MCP2221) Init(ctx context.Context) error {
	_, err := d.Status(ctx)
	return err
}

// Tx performs a combined transaction. A write followed by a read keeps the
// bus between the two transfers and restarts it for the read.
func (d *MCP2221) Tx(ctx context.Context, addr uint8, w, r []byte) error {
	if len(w) > maxChunk || len(r) > maxChunk {
		return fmt.Errorf("transfer exceeds %d bytes", maxChunk)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	switch {
	case len(r) == 0:
		return d.write(ctx, cmdWrite, addr, w)
	case len(w) == 0:
		return d.read(ctx, cmdRead, addr, r)
	}
	err := d.write(ctx, cmdWriteNoStop, addr, w)
	if err != nil {
		if errors.Is(err, pmic.ErrBusBusy) {
			_, _ = d.releaseBus(ctx)
		}
		return err
	}
	return d.read(ctx, cmdReadRepeatStart, addr, r)
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxChunk {
		return fmt.Errorf("transfer exceeds %d bytes", maxChunk)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdWrite, address, buffer)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxChunk {
		return fmt.Errorf("transfer exceeds %d bytes", maxChunk)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, cmdRead, address, buffer)
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "address", address)
		return pmic.ErrBusBusy
	}
	return d.waitWrite(ctx, cmd, address)
}

// waitWrite polls the engine until the data is on the bus. The write command
// is accepted before the device is addressed, so a NACK only shows up here.
func (d *MCP2221) waitWrite(ctx context.Context, cmd byte, address byte) error {
	for range writePolls {
		d.resetBuffers()
		d.request[0] = cmdStatus
		err := d.send(ctx, true)
		if err != nil {
			return fmt.Errorf("status after write to %#x failed: %w", address, err)
		}
		state := d.response[8]
		switch {
		case state == stateIdle, cmd == cmdWriteNoStop && state == stateWritingNoStop:
			return nil
		case state == stateAddrNACK:
			_, _ = d.releaseBus(ctx)
			return fmt.Errorf("writing %#x: %w", address, pmic.ErrNoAck)
		case isTimeoutState(state):
			_, _ = d.releaseBus(ctx)
			return fmt.Errorf("writing %#x (state %#04x): %w", address, state, ErrTransferTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(statusPollInterval):
		}
	}
	return fmt.Errorf("write to %#x did not complete: %w", address, ErrTransferTimeout)
}

func isTimeoutState(state byte) bool {
	switch state {
	case stateStartTimeout, stateRepStartTimeout, stateAddrTimeout,
		stateWriteTimeout, stateReadTimeout, stateStopTimeout:
		return true
	}
	return false
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("bus read from %#x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		return pmic.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	err = d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[2]&addrNACK != 0 {
		return fmt.Errorf("reading %#x: %w", address, pmic.ErrNoAck)
	}
	if d.response[1] == getDataFailed {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", ErrCommandFailed)
	}
	if d.response[3] == readNotReady || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("expected %d bytes, got %d: %w", len(buffer), d.response[3], pmic.ErrShortRead)
	}
	copy(buffer, d.response[4:])
	return nil
}

// SetSpeed changes the bus clock. The adapter refuses while a transfer is
// in progress.
func (d *MCP2221) SetSpeed(ctx context.Context, hz uint32) error {
	div, err := speedDivider(hz)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = statusSetSpeed
	d.request[4] = div
	err = d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	if d.response[3] == speedRejected {
		return fmt.Errorf("speed not accepted: %w", ErrCommandFailed)
	}
	return nil
}

func speedDivider(hz uint32) (byte, error) {
	if hz == 0 {
		return 0, fmt.Errorf("invalid speed 0")
	}
	div := clockRate/int(hz) - 3
	if div < 1 || div > 0xFF {
		return 0, fmt.Errorf("speed %d Hz out of adapter range", hz)
	}
	return byte(div), nil
}

// Configure sets the clock. The adapter has fixed SDA/SCL pins so pin ids
// are ignored.
func (d *MCP2221) Configure(ctx context.Context, cfg pmic.BusConfig) error {
	if cfg.Frequency == 0 {
		return nil
	}
	return d.SetSpeed(ctx, cfg.Frequency)
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		8:  Internal I2C state machine state value
		9:  Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11: Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12: Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13: Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16: Lower byte (16-bit value) of the I2C address being used
		17: Higher byte (16-bit value) of the I2C address being used
		25: I2C read pending
	*/
	status := &MCP2221Status{
		I2CState:             int(buffer[8]),
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

// ReleaseBus cancels the current transfer and returns the resulting status.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancel
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func openHID(index int) (Device, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d (%d attached)", index, len(devs))
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func (d *MCP2221) send(ctx context.Context, response bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := d.open(d.index)
	if err != nil {
		return err
	}
	defer func() {
		err := dev.Close()
		if err != nil {
			slog.Warn("could not close adapter", "error", err)
		}
	}()
	verbose := pmicctx.IsVerbose(ctx)
	if verbose {
		fmt.Fprintf(d.dump, "sending message to adapter:\n%s\n", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	if d.responseWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.responseWait):
		}
	}
	slog.Debug("reading response from adapter")
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		fmt.Fprintf(d.dump, "read message from adapter:\n%s\n", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
