package gen

import (
	"go/token"
	"runtime"
)

// Config holds the code generation configuration.
type Config struct {
	// Package is the name of the generated package.
	Package string
	// Target is the directory files are written to.
	Target string
	// Header is an optional comment placed above the generated marker.
	Header string
	// Workers bounds the number of files written in parallel.
	Workers int
}

// Option configures code generation.
type Option func(*Config) error

// WithPackage sets the generated package name.
func WithPackage(name string) Option {
	return func(c *Config) error {
		if !token.IsIdentifier(name) {
			return NewConfigError("Package", name, "package must be a Go identifier")
		}
		c.Package = name
		return nil
	}
}

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithWorkers sets the number of parallel writers.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

func defaultConfig() *Config {
	return &Config{
		Package: "configs",
		Target:  ".",
		Workers: runtime.GOMAXPROCS(0),
	}
}
