package bitbang

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var errUnsupported = errors.New("not supported on an open-drain bus line")

var _ gpio.PinIO = &linePin{}

// linePin presents an open-drain Line as a periph pin. High releases the
// line and Low drives it, so the external pull-ups set the idle level.
type linePin struct {
	name string
	line Line
}

func newLinePin(name string, l Line) *linePin {
	return &linePin{name: name, line: l}
}

func (p *linePin) String() string {
	return p.name
}

func (p *linePin) Name() string {
	return p.name
}

func (p *linePin) Number() int {
	return -1
}

func (p *linePin) Function() string {
	return "I2C"
}

func (p *linePin) Halt() error {
	return p.line.Release()
}

// In releases the line. Edge detection is not available.
func (p *linePin) In(_ gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return fmt.Errorf("%s: edge %s: %w", p.name, edge, errUnsupported)
	}
	return p.line.Release()
}

// Read reports Low when the line cannot be read, as a line held by a device would.
func (p *linePin) Read() gpio.Level {
	v, err := p.line.Value()
	if err != nil {
		slog.Debug("could not read bus line", "line", p.name, "error", err)
		return gpio.Low
	}
	return v != 0
}

func (p *linePin) WaitForEdge(time.Duration) bool {
	return false
}

func (p *linePin) Pull() gpio.Pull {
	return gpio.PullUp
}

func (p *linePin) DefaultPull() gpio.Pull {
	return gpio.PullUp
}

func (p *linePin) Out(l gpio.Level) error {
	if l == gpio.High {
		return p.line.Release()
	}
	return p.line.Low()
}

func (p *linePin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("%s: pwm: %w", p.name, errUnsupported)
}

func (p *linePin) Close() error {
	return p.line.Close()
}
