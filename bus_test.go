package pmic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/pmic"
)

type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(ctx, address, buffer).Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestFromI2CBus_Read(t *testing.T) {
	m := &MockI2CBus{}
	m.On("WriteToAddr", mock.Anything, byte(0x34), []byte{0x78}).Return(nil).Once()
	m.On("ReadFromAddr", mock.Anything, byte(0x34), mock.Anything).Return([]byte{0x12, 0x0F}, nil).Once()
	r := make([]byte, 2)
	err := pmic.FromI2CBus(m).Tx(context.Background(), 0x34, []byte{0x78}, r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x0F}, r)
	m.AssertExpectations(t)
}

func TestFromI2CBus_Write(t *testing.T) {
	m := &MockI2CBus{}
	m.On("WriteToAddr", mock.Anything, byte(0x34), []byte{0x90, 0x01}).Return(nil).Once()
	err := pmic.FromI2CBus(m).Tx(context.Background(), 0x34, []byte{0x90, 0x01}, nil)
	require.NoError(t, err)
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestFromI2CBus_BusyReleases(t *testing.T) {
	m := &MockI2CBus{}
	m.On("WriteToAddr", mock.Anything, byte(0x34), mock.Anything).Return(pmic.ErrBusBusy).Once()
	m.On("Release", mock.Anything).Return(nil).Once()
	err := pmic.FromI2CBus(m).Tx(context.Background(), 0x34, []byte{0x00}, make([]byte, 1))
	assert.ErrorIs(t, err, pmic.ErrBusBusy)
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestFromI2CBus_ReadFailure(t *testing.T) {
	m := &MockI2CBus{}
	m.On("WriteToAddr", mock.Anything, byte(0x34), mock.Anything).Return(nil)
	m.On("ReadFromAddr", mock.Anything, byte(0x34), mock.Anything).Return(nil, errors.New("nak"))
	acc := pmic.NewAccessor(noopChip{})
	require.NoError(t, acc.Begin(context.Background(), pmic.FromI2CBus(m), 0x34, -1, -1))
	assert.Equal(t, -1, acc.ReadRegister(context.Background(), 0x00))
}

type closingI2CBus struct {
	MockI2CBus
	closed bool
}

func (c *closingI2CBus) Close() error {
	c.closed = true
	return nil
}

func TestFromI2CBus_Close(t *testing.T) {
	b := &closingI2CBus{}
	acc := pmic.NewAccessor(noopChip{})
	require.NoError(t, acc.Begin(context.Background(), pmic.FromI2CBus(b), 0x34, -1, -1, pmic.WithOwnedBus()))
	require.NoError(t, acc.End())
	assert.True(t, b.closed)
}

type noopChip struct{}

func (noopChip) InitChip(context.Context) error { return nil }
