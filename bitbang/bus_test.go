package bitbang

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/pmic"
)

type fakeLine struct {
	calls  []string
	value  int
	err    error
	closed bool
}

func (l *fakeLine) Release() error {
	l.calls = append(l.calls, "release")
	return nil
}

func (l *fakeLine) Low() error {
	l.calls = append(l.calls, "low")
	return nil
}

func (l *fakeLine) Value() (int, error) {
	return l.value, l.err
}

func (l *fakeLine) Close() error {
	l.closed = true
	return nil
}

type fakeOpener struct {
	sda, scl *fakeLine
	pins     []int
	closed   bool
}

func (o *fakeOpener) open(sda, scl int) (Line, Line, error) {
	o.pins = []int{sda, scl}
	return o.sda, o.scl, nil
}

func (o *fakeOpener) close() error {
	o.closed = true
	return nil
}

// speedBus records the speeds requested from a playback bus.
type speedBus struct {
	*i2ctest.Playback
	speeds []physic.Frequency
}

func (s *speedBus) SetSpeed(f physic.Frequency) error {
	s.speeds = append(s.speeds, f)
	return nil
}

type started struct {
	scl, sda gpio.PinIO
	f        physic.Frequency
}

func masterOf(bus i2c.Bus, got *started) Master {
	return func(scl, sda gpio.PinIO, f physic.Frequency) (i2c.Bus, error) {
		got.scl, got.sda, got.f = scl, sda, f
		return bus, nil
	}
}

func TestBus_ConfigureStartsMaster(t *testing.T) {
	sda, scl := &fakeLine{}, &fakeLine{}
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x34, W: []byte{0x34}, R: []byte{0x0C, 0xE4}},
	}}
	var got started
	b := NewBusWithLines(sda, scl, WithMaster(masterOf(pb, &got)))
	require.NoError(t, b.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1, Frequency: 100_000}))
	assert.Equal(t, 100*physic.KiloHertz, got.f)
	assert.Equal(t, "SCL", got.scl.Name())
	assert.Equal(t, "SDA", got.sda.Name())

	r := make([]byte, 2)
	require.NoError(t, b.Tx(context.Background(), 0x34, []byte{0x34}, r))
	assert.Equal(t, []byte{0x0C, 0xE4}, r)
	require.NoError(t, b.Close())
	assert.True(t, sda.closed)
	assert.True(t, scl.closed)
}

func TestBus_DefaultFrequency(t *testing.T) {
	var got started
	b := NewBusWithLines(&fakeLine{}, &fakeLine{}, WithMaster(masterOf(&i2ctest.Playback{}, &got)))
	require.NoError(t, b.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1}))
	assert.Equal(t, 400*physic.KiloHertz, got.f)
}

func TestBus_ReconfigureSetsSpeed(t *testing.T) {
	sb := &speedBus{Playback: &i2ctest.Playback{}}
	var got started
	b := NewBusWithLines(&fakeLine{}, &fakeLine{}, WithMaster(masterOf(sb, &got)))
	require.NoError(t, b.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1}))
	require.NoError(t, b.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1, Frequency: 100_000}))
	assert.Equal(t, []physic.Frequency{100 * physic.KiloHertz}, sb.speeds)
}

func TestBus_WithAccessor(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x34, W: []byte{0x10, 0x3C}},
		{Addr: 0x34, W: []byte{0x10}, R: []byte{0x3C}},
		{Addr: 0x34, W: []byte{0x10}, R: []byte{0x3C}},
		{Addr: 0x34, W: []byte{0x10, 0xBC}},
	}}
	var got started
	b := NewBusWithLines(&fakeLine{}, &fakeLine{}, WithMaster(masterOf(pb, &got)))
	acc := pmic.NewAccessor(noopChip{})
	ctx := context.Background()
	require.NoError(t, acc.Begin(ctx, b, 0x34, -1, -1))
	require.Equal(t, 0, acc.WriteRegister(ctx, 0x10, 0x3C))
	assert.Equal(t, 0x3C, acc.ReadRegister(ctx, 0x10))
	assert.True(t, acc.SetRegisterBit(ctx, 0x10, 7))
	assert.NoError(t, pb.Close())
}

func TestBus_TxFailure(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	var got started
	b := NewBusWithLines(&fakeLine{}, &fakeLine{}, WithMaster(masterOf(pb, &got)))
	acc := pmic.NewAccessor(noopChip{})
	ctx := context.Background()
	require.NoError(t, acc.Begin(ctx, b, 0x34, -1, -1))
	assert.Equal(t, -1, acc.ReadRegister(ctx, 0x10))
	assert.Equal(t, -1, acc.WriteRegister(ctx, 0x10, 0x01))
}

func TestBus_CanceledContext(t *testing.T) {
	var got started
	b := NewBusWithLines(&fakeLine{}, &fakeLine{}, WithMaster(masterOf(&i2ctest.Playback{}, &got)))
	require.NoError(t, b.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Tx(ctx, 0x34, []byte{0x00}, nil), context.Canceled)
}

func TestBus_RequestsLinesOnConfigure(t *testing.T) {
	op := &fakeOpener{sda: &fakeLine{}, scl: &fakeLine{}}
	var got started
	b := NewBus("gpiochip0", WithMaster(masterOf(&i2ctest.Playback{}, &got)))
	b.opener = op
	require.NoError(t, b.Configure(context.Background(), pmic.BusConfig{SDA: 2, SCL: 3}))
	assert.Equal(t, []int{2, 3}, op.pins)
	assert.Equal(t, "GPIO2", got.sda.Name())
	assert.Equal(t, "GPIO3", got.scl.Name())

	require.NoError(t, b.Close())
	assert.True(t, op.closed)
	assert.True(t, op.sda.closed)
	assert.ErrorIs(t, b.Tx(context.Background(), 0x34, []byte{0x00}, nil), pmic.ErrNotBound)
}

func TestBus_ConfigureNeedsPins(t *testing.T) {
	b := NewBus("gpiochip0")
	tests := []pmic.BusConfig{
		{SDA: -1, SCL: 3},
		{SDA: 2, SCL: -1},
		{SDA: 2, SCL: 2},
	}
	for _, cfg := range tests {
		err := b.Configure(context.Background(), cfg)
		assert.ErrorIs(t, err, pmic.ErrInvalidPin)
	}
}

func TestBus_MasterFailure(t *testing.T) {
	failed := errors.New("pins busy")
	b := NewBusWithLines(&fakeLine{}, &fakeLine{}, WithMaster(func(gpio.PinIO, gpio.PinIO, physic.Frequency) (i2c.Bus, error) {
		return nil, failed
	}))
	err := b.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1})
	assert.ErrorIs(t, err, failed)
	assert.ErrorIs(t, b.Tx(context.Background(), 0x34, []byte{0x00}, nil), pmic.ErrNotBound)
}

func TestBus_NotConfigured(t *testing.T) {
	b := NewBus("gpiochip0")
	err := b.Tx(context.Background(), 0x34, []byte{0x00}, nil)
	assert.ErrorIs(t, err, pmic.ErrNotBound)
}

func TestLinePin(t *testing.T) {
	l := &fakeLine{value: 1}
	p := newLinePin("SDA", l)
	require.NoError(t, p.Out(gpio.Low))
	require.NoError(t, p.Out(gpio.High))
	require.NoError(t, p.In(gpio.PullUp, gpio.NoEdge))
	require.NoError(t, p.Halt())
	assert.Equal(t, []string{"low", "release", "release", "release"}, l.calls)
	assert.Equal(t, gpio.High, p.Read())

	l.value = 0
	assert.Equal(t, gpio.Low, p.Read())
	l.value, l.err = 1, errors.New("line gone")
	assert.Equal(t, gpio.Low, p.Read())

	assert.ErrorIs(t, p.In(gpio.PullUp, gpio.FallingEdge), errUnsupported)
	assert.ErrorIs(t, p.PWM(gpio.DutyHalf, physic.KiloHertz), errUnsupported)
	assert.Equal(t, gpio.PullUp, p.Pull())
	assert.False(t, p.WaitForEdge(0))
}

type noopChip struct{}

func (noopChip) InitChip(context.Context) error { return nil }
