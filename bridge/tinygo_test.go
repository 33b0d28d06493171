package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/pmictest"
)

// fileI2C exposes a register file as a tinygo bus.
type fileI2C struct {
	dev *pmictest.RegisterFile
}

func (f fileI2C) Tx(addr uint16, w, r []byte) error {
	return f.dev.Tx(context.Background(), uint8(addr), w, r)
}

func TestTinyGoBus(t *testing.T) {
	dev := pmictest.NewRegisterFile(0x34)
	dev.Set(0x03, 0x4A)
	acc := pmic.NewAccessor(noopChip{})
	require.NoError(t, acc.Begin(context.Background(), TinyGoBus{I2C: fileI2C{dev}}, 0x34, -1, -1))
	assert.Equal(t, 0x4A, acc.ReadRegister(context.Background(), 0x03))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TinyGoBus{I2C: fileI2C{dev}}.Tx(ctx, 0x34, []byte{0x03}, make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbacks(t *testing.T) {
	dev := pmictest.NewRegisterFile(0x34)
	read, write := Callbacks(fileI2C{dev})
	acc := pmic.NewAccessor(noopChip{})
	require.NoError(t, acc.BeginWithCallbacks(context.Background(), 0x34, read, write))
	ctx := context.Background()

	require.Equal(t, StatusOK, acc.WriteRegisters(ctx, 0x90, []byte{0x01, 0x02}))
	assert.Equal(t, byte(0x02), dev.Get(0x91))
	buf := make([]byte, 2)
	require.Equal(t, StatusOK, acc.ReadRegisters(ctx, 0x90, buf))
	assert.Equal(t, []byte{0x01, 0x02}, buf)

	dev.Detach()
	assert.Equal(t, StatusNoAck, acc.ReadRegisters(ctx, 0x90, buf))
	assert.Equal(t, StatusNoAck, acc.WriteRegister(ctx, 0x90, 0x00))
	assert.Equal(t, -1, acc.ReadRegister(ctx, 0x90))
}

// failingI2C fails every transaction with err, as a machine.I2C port would.
type failingI2C struct {
	err error
}

func (f failingI2C) Tx(uint16, []byte, []byte) error {
	return f.err
}

func TestCallbacks_PortErrors(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{errors.New("I2C error: expected ACK not NACK"), StatusNoAck},
		{errors.New("i2c: device did not acknowledge address"), StatusNoAck},
		{errors.New("I2C timeout during read"), StatusOther},
		{errors.New("I2C bus busy"), StatusOther},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			read, write := Callbacks(failingI2C{tt.err})
			assert.Equal(t, tt.expected, read(0x34, 0x00, make([]byte, 1)))
			assert.Equal(t, tt.expected, write(0x34, 0x00, []byte{0x01}))
		})
	}
}

func TestCallbacks_WithNoAck(t *testing.T) {
	abort := errors.New("I2C abort: 7B addr")
	read, _ := Callbacks(failingI2C{abort}, WithNoAck(func(err error) bool {
		return errors.Is(err, abort)
	}))
	assert.Equal(t, StatusNoAck, read(0x34, 0x00, make([]byte, 1)))

	read, _ = Callbacks(failingI2C{errors.New("other")}, WithNoAck(func(err error) bool {
		return errors.Is(err, abort)
	}))
	assert.Equal(t, StatusOther, read(0x34, 0x00, make([]byte, 1)))
}

func TestDriversI2C(t *testing.T) {
	dev := pmictest.NewRegisterFile(0x34)
	dev.Set(0x10, 0xAB)
	d := DriversI2C{Bus: dev}
	r := make([]byte, 1)
	require.NoError(t, d.Tx(0x34, []byte{0x10}, r))
	assert.Equal(t, byte(0xAB), r[0])
	assert.ErrorIs(t, d.Tx(0x80, []byte{0x10}, r), pmic.ErrInvalidAddress)
	assert.ErrorIs(t, d.Tx(0x35, []byte{0x10}, r), pmic.ErrNoAck)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Bus = TinyGoBus{I2C: fileI2C{dev}}
	d.Context = func() context.Context { return ctx }
	assert.ErrorIs(t, d.Tx(0x34, []byte{0x10}, r), context.Canceled)
}
