package pmic

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds every built-in bus transaction.
const DefaultTimeout = time.Second

type Options struct {
	Logger     *slog.Logger
	Timeout    time.Duration
	Frequency  uint32
	DefaultBus Bus
}

type Option func(*Options)

// WithLogger sets the logger used for transport diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithTimeout changes the per-transaction bound of the built-in transport.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithFrequency changes the clock rate requested when binding to a Configurer.
func WithFrequency(hz uint32) Option {
	return func(o *Options) {
		o.Frequency = hz
	}
}

// WithDefaultBus registers the platform bus used by Begin when it is given a nil bus.
// It is never used once callbacks are bound.
func WithDefaultBus(b Bus) Option {
	return func(o *Options) {
		o.DefaultBus = b
	}
}

// BindOption adjusts a single built-in bind.
type BindOption func(*bindConfig)

type bindConfig struct {
	owned bool
}

// WithOwnedBus hands the bus over to the accessor; End closes it.
func WithOwnedBus() BindOption {
	return func(c *bindConfig) {
		c.owned = true
	}
}
