package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/pmictest"
)

// regConn serves plain reads and writes from a register file, the way an
// i2c-dev connection does: a write sets the pointer, a read continues from it.
type regConn struct {
	i2c.Connection
	dev    *pmictest.RegisterFile
	addr   uint8
	ptr    uint8
	short  bool
	closed bool
}

func (c *regConn) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	c.ptr = b[0]
	if len(b) > 1 {
		c.dev.Set(b[0], b[1:]...)
	}
	return len(b), nil
}

func (c *regConn) Read(b []byte) (int, error) {
	n := len(b)
	if c.short {
		n--
	}
	for i := 0; i < n; i++ {
		b[i] = c.dev.Get(c.ptr + uint8(i))
	}
	return n, nil
}

func (c *regConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	dev    *pmictest.RegisterFile
	conns  []*regConn
	busNrs []int
	fail   error
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (i2c.Connection, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.busNrs = append(f.busNrs, busNr)
	c := &regConn{dev: f.dev, addr: uint8(address)}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 1
}

func TestGobotBus_Accessor(t *testing.T) {
	dev := pmictest.NewRegisterFile(0x34)
	dev.Set(0x78, 0x12, 0x0F)
	conn := &fakeConnector{dev: dev}
	acc := pmic.NewAccessor(noopChip{})
	require.NoError(t, acc.Begin(context.Background(), pmic.FromI2CBus(NewGobotBus(conn, -1)), 0x34, -1, -1, pmic.WithOwnedBus()))

	ctx := context.Background()
	assert.Equal(t, uint16(0x12F), acc.ReadRegisterH8L4(ctx, 0x78, 0x79))
	require.Equal(t, 0, acc.WriteRegister(ctx, 0x12, 0x5F))
	assert.Equal(t, byte(0x5F), dev.Get(0x12))
	require.Len(t, conn.conns, 1, "connection is reused")
	assert.Equal(t, []int{1}, conn.busNrs)

	require.NoError(t, acc.End())
	assert.True(t, conn.conns[0].closed)
}

func TestGobotBus_ShortRead(t *testing.T) {
	conn := &fakeConnector{dev: pmictest.NewRegisterFile(0x34)}
	b := NewGobotBus(conn, 2)
	require.NoError(t, b.WriteToAddr(context.Background(), 0x34, []byte{0x00}))
	conn.conns[0].short = true
	err := b.ReadFromAddr(context.Background(), 0x34, make([]byte, 2))
	assert.ErrorIs(t, err, pmic.ErrShortRead)
	assert.Equal(t, []int{2}, conn.busNrs)
}

func TestGobotBus_ConnectionFailure(t *testing.T) {
	boom := errors.New("no such bus")
	b := NewGobotBus(&fakeConnector{fail: boom}, 3)
	err := b.WriteToAddr(context.Background(), 0x34, []byte{0x00})
	assert.ErrorIs(t, err, boom)
}

type noopChip struct{}

func (noopChip) InitChip(context.Context) error { return nil }
