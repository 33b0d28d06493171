// Package config describes how the command line tool reaches a PMIC: which
// transport to open, which pins and address to bind and which variant to
// expect. Board files are YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/pmic"
)

// Version is injected at build time.
var Version = "dev"

const (
	AdapterPeriph  = "periph"
	AdapterMCP2221 = "mcp2221"
	AdapterBitbang = "bitbang"
	AdapterNanoPi  = "nanopi"
	AdapterSim     = "sim"

	VariantAXP192  = "axp192"
	VariantAXP2101 = "axp2101"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Adapter   string        `yaml:"adapter"`
	Device    string        `yaml:"device"`
	GPIOChip  string        `yaml:"gpiochip"`
	Bus       int           `yaml:"bus"`
	Address   uint8         `yaml:"address"`
	SDA       int           `yaml:"sda"`
	SCL       int           `yaml:"scl"`
	Frequency uint32        `yaml:"frequency"`
	Timeout   time.Duration `yaml:"timeout"`
	Variant   string        `yaml:"variant"`
}

// Default targets an AXP2101 at its factory address on the first i2c-dev bus.
func Default() Config {
	return Config{
		Adapter:   AdapterPeriph,
		GPIOChip:  "gpiochip0",
		Bus:       -1,
		Address:   0x34,
		SDA:       -1,
		SCL:       -1,
		Frequency: pmic.DefaultFrequency,
		Timeout:   pmic.DefaultTimeout,
		Variant:   VariantAXP2101,
	}
}

type Option func(*Config)

func WithAdapter(name string) Option {
	return func(c *Config) {
		c.Adapter = strings.ToLower(name)
	}
}

func WithDevice(dev string) Option {
	return func(c *Config) {
		c.Device = dev
	}
}

func WithAddress(addr uint8) Option {
	return func(c *Config) {
		c.Address = addr
	}
}

func WithPins(sda, scl int) Option {
	return func(c *Config) {
		c.SDA = sda
		c.SCL = scl
	}
}

func WithVariant(v string) Option {
	return func(c *Config) {
		c.Variant = strings.ToLower(v)
	}
}

// Load reads a board file over the defaults and applies opts on top. An
// empty path skips the file.
func Load(path string, opts ...Option) (Config, error) {
	c := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return c, fmt.Errorf("could not open config file: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(&c)
		if err != nil {
			return c, fmt.Errorf("could not decode config file %s: %w", path, err)
		}
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterPeriph, AdapterMCP2221, AdapterNanoPi, AdapterSim:
	case AdapterBitbang:
		if c.SDA < 0 || c.SCL < 0 || c.SDA == c.SCL {
			return fmt.Errorf("%w: bitbang adapter needs distinct sda and scl lines", ErrInvalidConfig)
		}
		if c.GPIOChip == "" {
			return fmt.Errorf("%w: bitbang adapter needs a gpiochip", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown adapter %q", ErrInvalidConfig, c.Adapter)
	}
	switch c.Variant {
	case VariantAXP192, VariantAXP2101:
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, c.Variant)
	}
	if c.Address > 0x7F {
		return fmt.Errorf("%w: address %#x is not a 7-bit address", ErrInvalidConfig, c.Address)
	}
	if c.SDA < -1 || c.SCL < -1 {
		return fmt.Errorf("%w: pin ids must be -1 or positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// Options converts the transport settings into accessor options.
func (c Config) Options() []pmic.Option {
	return []pmic.Option{
		pmic.WithTimeout(c.Timeout),
		pmic.WithFrequency(c.Frequency),
	}
}
