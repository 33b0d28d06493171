package pmic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/pmictest"
)

func TestFieldLayout_Pack(t *testing.T) {
	tests := []struct {
		layout    pmic.FieldLayout
		high, low byte
		expected  uint16
	}{
		{pmic.H8L4, 0x12, 0x0F, 0x12F},
		{pmic.H8L4, 0x12, 0xFF, 0x12F},
		{pmic.H8L4, 0xFF, 0xFF, 0xFFF},
		{pmic.H8L5, 0x12, 0xFF, 0x12<<5 | 0x1F},
		{pmic.H8L5, 0x01, 0x20, 0x20},
		{pmic.H6L8, 0x3F, 0xAB, 0x3FAB},
		{pmic.H6L8, 0xFF, 0xAB, 0x3FAB},
		{pmic.H5L8, 0x1F, 0x01, 0x1F01},
		{pmic.H5L8, 0xE0, 0x01, 0x0001},
	}
	for _, tt := range tests {
		t.Run(tt.layout.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.layout.Pack(tt.high, tt.low))
		})
	}
}

func TestParseFieldLayout(t *testing.T) {
	l, err := pmic.ParseFieldLayout("h6l8")
	require.NoError(t, err)
	assert.Equal(t, pmic.H6L8, l)
	_, err = pmic.ParseFieldLayout("h4l4")
	assert.Error(t, err)
}

func TestAccessor_FieldReaders(t *testing.T) {
	acc, dev, _ := newBound(t)
	ctx := context.Background()

	dev.Set(0x01, 0x3F, 0xAB)
	assert.Equal(t, uint16(0x3FAB), acc.ReadRegisterH6L8(ctx, 0x01, 0x02))

	dev.Set(0x78, 0x12, 0x0F)
	assert.Equal(t, uint16(0x12F), acc.ReadRegisterH8L4(ctx, 0x78, 0x79))

	dev.Set(0x7A, 0x12, 0xFF)
	assert.Equal(t, uint16(0x25F), acc.ReadRegisterH8L5(ctx, 0x7A, 0x7B))

	dev.Set(0x34, 0xEC, 0x80)
	assert.Equal(t, uint16(0x0C80), acc.ReadRegisterH5L8(ctx, 0x34, 0x35))
}

func TestAccessor_FieldReadFailureIsZero(t *testing.T) {
	ctx := context.Background()
	readers := map[string]func(*pmic.Accessor[*pmictest.CountingChip]) uint16{
		"H8L4": func(a *pmic.Accessor[*pmictest.CountingChip]) uint16 { return a.ReadRegisterH8L4(ctx, 0x10, 0x11) },
		"H8L5": func(a *pmic.Accessor[*pmictest.CountingChip]) uint16 { return a.ReadRegisterH8L5(ctx, 0x10, 0x11) },
		"H6L8": func(a *pmic.Accessor[*pmictest.CountingChip]) uint16 { return a.ReadRegisterH6L8(ctx, 0x10, 0x11) },
		"H5L8": func(a *pmic.Accessor[*pmictest.CountingChip]) uint16 { return a.ReadRegisterH5L8(ctx, 0x10, 0x11) },
	}
	for name, read := range readers {
		for _, failing := range []uint8{0x10, 0x11} {
			t.Run(name, func(t *testing.T) {
				acc, dev, _ := newBound(t)
				dev.Set(0x10, 0xFF, 0xFF)
				dev.FailRead(failing)
				failedReads := dev.Reads

				assert.Equal(t, uint16(0), read(acc))
				assert.Equal(t, failedReads+2, dev.Reads, "both registers are read")

				// all-zero registers give the same answer; only the transport knows
				zero, zeroDev, _ := newBound(t)
				assert.Equal(t, uint16(0), read(zero))
				assert.Equal(t, 2, zeroDev.Reads)

				_, err := acc.ReadField(ctx, pmic.H8L4, 0x10, 0x11)
				assert.ErrorIs(t, err, pmic.ErrNoAck)
				v, err := zero.ReadField(ctx, pmic.H8L4, 0x10, 0x11)
				assert.NoError(t, err)
				assert.Equal(t, uint16(0), v)
			})
		}
	}
}
