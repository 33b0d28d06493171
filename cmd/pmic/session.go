package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/pmic"
	"github.com/mklimuk/pmic/adapter"
	"github.com/mklimuk/pmic/bitbang"
	"github.com/mklimuk/pmic/bridge"
	"github.com/mklimuk/pmic/chip"
	"github.com/mklimuk/pmic/chip/axp192"
	"github.com/mklimuk/pmic/chip/axp2101"
	"github.com/mklimuk/pmic/cmd/pmic/console"
	"github.com/mklimuk/pmic/config"
	"github.com/mklimuk/pmic/i2c"
	"github.com/mklimuk/pmic/pmicctx"
)

// device is what every chip variant offers through its embedded accessor.
type device interface {
	chip.Registers
	Begin(ctx context.Context, bus pmic.Bus, addr uint8, sda, scl int, opts ...pmic.BindOption) error
	End() error
	WriteBytes(ctx context.Context, reg uint8, buf []byte) error
	ReadRegister(ctx context.Context, reg uint8) int
	ReadField(ctx context.Context, layout pmic.FieldLayout, highReg, lowReg uint8) (uint16, error)
}

type session struct {
	cfg    config.Config
	dev    device
	rails  map[string]chip.Rail
	status func(ctx context.Context) (any, error)
}

func loadConfig(c *cli.Context) (config.Config, error) {
	var opts []config.Option
	if c.IsSet("adapter") {
		opts = append(opts, config.WithAdapter(c.String("adapter")))
	}
	if c.IsSet("device") {
		opts = append(opts, config.WithDevice(c.String("device")))
	}
	if c.IsSet("address") {
		addr, err := parseUint8(c.String("address"))
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid address: %w", err)
		}
		opts = append(opts, config.WithAddress(addr))
	}
	if c.IsSet("sda") || c.IsSet("scl") {
		opts = append(opts, func(cfg *config.Config) {
			if c.IsSet("sda") {
				cfg.SDA = c.Int("sda")
			}
			if c.IsSet("scl") {
				cfg.SCL = c.Int("scl")
			}
		})
	}
	if c.IsSet("variant") {
		opts = append(opts, config.WithVariant(c.String("variant")))
	}
	return config.Load(c.String("config"), opts...)
}

func newDevice(cfg config.Config) (device, map[string]chip.Rail, func(context.Context) (any, error)) {
	opts := append(cfg.Options(), pmic.WithLogger(slog.Default()))
	if cfg.Variant == config.VariantAXP192 {
		d := axp192.New(opts...)
		return d, axp192.Rails, func(ctx context.Context) (any, error) { return d.Status(ctx) }
	}
	d := axp2101.New(opts...)
	return d, axp2101.Rails, func(ctx context.Context) (any, error) { return d.Status(ctx) }
}

// openSession binds the configured variant to the configured transport. The
// returned session must be closed.
func openSession(c *cli.Context) (context.Context, *session, error) {
	ctx := pmicctx.SetVerbose(c.Context, c.Bool("verbose"))
	cfg, err := loadConfig(c)
	if err != nil {
		return ctx, nil, console.Exit(2, "configuration error: %s", console.Red(err))
	}
	bus, err := openBus(cfg)
	if err != nil {
		return ctx, nil, console.Exit(1, "could not open %s bus: %s", cfg.Adapter, console.Red(err))
	}
	dev, rails, status := newDevice(cfg)
	err = dev.Begin(ctx, bus, cfg.Address, cfg.SDA, cfg.SCL, pmic.WithOwnedBus())
	if err != nil {
		if errors.Is(err, pmic.ErrChipInit) {
			slog.Warn("chip did not identify as expected", "variant", cfg.Variant, "error", err)
		} else {
			_ = closeBus(bus)
			return ctx, nil, console.Exit(1, "could not bind to %#04x: %s", cfg.Address, console.Red(err))
		}
	}
	return ctx, &session{cfg: cfg, dev: dev, rails: rails, status: status}, nil
}

func (s *session) Close() {
	err := s.dev.End()
	if err != nil {
		slog.Warn("could not close bus", "error", err)
	}
}

func openBus(cfg config.Config) (pmic.Bus, error) {
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		return adapter.NewMCP2221(), nil
	case config.AdapterBitbang:
		return bitbang.NewBus(cfg.GPIOChip, bitbang.WithFrequency(cfg.Frequency)), nil
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		err := npi.I2cBusAdaptor.Connect()
		if err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		return adaptorBus{
			Bus:      pmic.FromI2CBus(bridge.NewGobotBus(npi, cfg.Bus)),
			finalize: npi.I2cBusAdaptor.Finalize,
		}, nil
	case config.AdapterSim:
		return newSimulator(cfg.Address, cfg.Variant), nil
	default:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, err
		}
		return bus, nil
	}
}

// adaptorBus also shuts the gobot adaptor down when closed.
type adaptorBus struct {
	pmic.Bus
	finalize func() error
}

func (a adaptorBus) Close() error {
	return errors.Join(closeBus(a.Bus), a.finalize())
}

func closeBus(b pmic.Bus) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
