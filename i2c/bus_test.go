package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/pmic"
)

type chipIDCheck struct {
	acc *pmic.Accessor[*chipIDCheck]
	id  int
}

func (c *chipIDCheck) InitChip(ctx context.Context) error {
	c.id = c.acc.ReadRegister(ctx, 0x03)
	return nil
}

func TestGenericBus_Accessor(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x34, W: []byte{0x03}, R: []byte{0x4A}},
			{Addr: 0x34, W: []byte{0x90, 0x01, 0x02}},
			{Addr: 0x34, W: []byte{0x34}, R: []byte{0x0C}},
			{Addr: 0x34, W: []byte{0x35}, R: []byte{0xE4}},
		},
	}
	bus := NewBus(pb)
	chip := &chipIDCheck{}
	chip.acc = pmic.NewAccessor(chip)
	ctx := context.Background()

	require.NoError(t, chip.acc.Begin(ctx, bus, 0x34, -1, -1))
	assert.Equal(t, 0x4A, chip.id)
	assert.Equal(t, 0, chip.acc.WriteRegisters(ctx, 0x90, []byte{0x01, 0x02}))
	assert.Equal(t, uint16(0x0CE4), chip.acc.ReadRegisterH5L8(ctx, 0x34, 0x35))
	assert.NoError(t, bus.Close())
}

func TestGenericBus_TxFailure(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	bus := NewBus(pb)
	err := bus.Tx(context.Background(), 0x34, []byte{0x00}, make([]byte, 1))
	assert.Error(t, err)
}

func TestGenericBus_CanceledContext(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Tx(ctx, 0x34, []byte{0x00}, nil), context.Canceled)
}

func TestGenericBus_ConfigureSpeed(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{})
	assert.NoError(t, bus.Configure(context.Background(), pmic.BusConfig{SDA: -1, SCL: -1, Frequency: 100_000}))
	assert.NoError(t, bus.SetSpeed(400*physic.KiloHertz))
}

func TestCheckPin(t *testing.T) {
	assert.NoError(t, checkPin("SDA", -1, 2))
	assert.NoError(t, checkPin("SDA", 2, -1))
	assert.NoError(t, checkPin("SDA", 2, 2))
	assert.ErrorIs(t, checkPin("SDA", 3, 2), pmic.ErrInvalidPin)
}
