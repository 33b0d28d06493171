package bitbang

import (
	"fmt"

	"github.com/warthog618/gpiod"
)

type gpiodOpener struct {
	chip     string
	consumer string
	c        *gpiod.Chip
}

func (o *gpiodOpener) open(sda, scl int) (Line, Line, error) {
	c, err := gpiod.NewChip(o.chip, gpiod.WithConsumer(o.consumer))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open GPIO chip %s: %w", o.chip, err)
	}
	sdaLine, err := c.RequestLine(sda, gpiod.AsInput, gpiod.WithPullUp)
	if err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("failed to request SDA line %d: %w", sda, err)
	}
	sclLine, err := c.RequestLine(scl, gpiod.AsInput, gpiod.WithPullUp)
	if err != nil {
		_ = sdaLine.Close()
		_ = c.Close()
		return nil, nil, fmt.Errorf("failed to request SCL line %d: %w", scl, err)
	}
	o.c = c
	return &gpiodLine{l: sdaLine}, &gpiodLine{l: sclLine}, nil
}

func (o *gpiodOpener) close() error {
	if o.c == nil {
		return nil
	}
	err := o.c.Close()
	o.c = nil
	return err
}

// gpiodLine emulates an open-drain output by switching the line direction.
type gpiodLine struct {
	l   *gpiod.Line
	low bool
}

func (g *gpiodLine) Release() error {
	if !g.low {
		return nil
	}
	err := g.l.Reconfigure(gpiod.AsInput)
	if err != nil {
		return fmt.Errorf("could not release line: %w", err)
	}
	g.low = false
	return nil
}

func (g *gpiodLine) Low() error {
	if g.low {
		return nil
	}
	err := g.l.Reconfigure(gpiod.AsOutput(0))
	if err != nil {
		return fmt.Errorf("could not drive line low: %w", err)
	}
	g.low = true
	return nil
}

func (g *gpiodLine) Value() (int, error) {
	if g.low {
		return 0, nil
	}
	return g.l.Value()
}

func (g *gpiodLine) Close() error {
	return g.l.Close()
}
