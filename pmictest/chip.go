package pmictest

import "context"

// CountingChip counts InitChip calls and returns Err from each of them.
type CountingChip struct {
	Calls int
	Err   error
}

func (c *CountingChip) InitChip(_ context.Context) error {
	c.Calls++
	return c.Err
}
