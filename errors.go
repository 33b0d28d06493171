package pmic

import (
	"errors"
	"fmt"
)

var (
	ErrNoAck          = errors.New("device did not acknowledge")
	ErrShortRead      = errors.New("short read")
	ErrNotBound       = errors.New("accessor is not bound to a transport")
	ErrNoTransport    = errors.New("no transport supplied")
	ErrInvalidAddress = errors.New("invalid 7-bit device address")
	ErrInvalidPin     = errors.New("invalid pin id")
	ErrInvalidBit     = errors.New("bit index out of range")
	ErrChipInit       = errors.New("chip initialization failed")
)

// StatusError carries a non-zero status returned by a transport callback.
type StatusError int

func (e StatusError) Error() string {
	return fmt.Sprintf("transport callback returned status %d", int(e))
}

// statusOf maps an operation error onto the -1/0 status convention.
func statusOf(err error) int {
	if err == nil {
		return 0
	}
	var se StatusError
	if errors.As(err, &se) {
		return int(se)
	}
	return -1
}
