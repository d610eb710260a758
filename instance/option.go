package instance

import (
	"log/slog"

	"github.com/syssam/featgen/solver"
)

// Default generation limits of the basic flow.
const (
	DefaultMaxInstances = 100
	DefaultMaxRedundant = 1000
)

// Default integer bounds used when neither the model nor the options set
// any.
const (
	DefaultIntLow  = -8
	DefaultIntHigh = 7
)

// Config holds the generator configuration.
type Config struct {
	Logger *slog.Logger
	Engine solver.Engine
	// MaxInstances caps the distinct instances kept by the basic flow.
	MaxInstances int
	// MaxRedundant stops the basic flow after that many consecutive
	// repeated instances.
	MaxRedundant int
	// IntLow and IntHigh override the model's integer bounds when
	// IntRange is set.
	IntLow, IntHigh int
	IntRange        bool
}

// Option configures a Generator.
type Option func(*Config) error

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithEngine sets the solving engine. The default is the enumerating
// engine of package solver/enum.
func WithEngine(e solver.Engine) Option {
	return func(c *Config) error {
		if e == nil {
			return NewConfigError("Engine", nil, "engine cannot be nil")
		}
		c.Engine = e
		return nil
	}
}

// WithIntRange sets the integer bounds passed to the engine.
func WithIntRange(low, high int) Option {
	return func(c *Config) error {
		if low > high {
			return NewConfigError("IntRange", [2]int{low, high}, "low bound exceeds high bound")
		}
		c.IntLow, c.IntHigh, c.IntRange = low, high, true
		return nil
	}
}

// WithMaxInstances sets the number of distinct instances after which the
// basic flow stops.
func WithMaxInstances(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("MaxInstances", n, "must be positive")
		}
		c.MaxInstances = n
		return nil
	}
}

// WithMaxRedundant sets the number of consecutive repeated instances after
// which the basic flow stops.
func WithMaxRedundant(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("MaxRedundant", n, "must be positive")
		}
		c.MaxRedundant = n
		return nil
	}
}
