package inference

import (
	"fmt"
	"strings"
)

// Config holds the driver parameters. Zero BatchSize means one sample per
// batch and zero Length means half the context window.
type Config struct {
	ModelName   string
	ModelsDir   string
	Prompt      string
	Seed        *int64
	NSamples    int
	BatchSize   int
	Length      int
	Temperature float64
	TopK        int
	TopP        float64
}

// DefaultConfig mirrors the command line defaults.
func DefaultConfig() Config {
	return Config{
		ModelName:   "100M",
		ModelsDir:   "models",
		NSamples:    3,
		BatchSize:   1,
		Temperature: 1.3,
		TopK:        50,
	}
}

// Normalize fills unset fields that have a fixed default.
func (c *Config) Normalize() {
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	if c.ModelsDir == "" {
		c.ModelsDir = "models"
	}
}

// Validate checks everything that can be checked without touching the
// filesystem.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalidConfig)
	}
	if c.NSamples <= 0 {
		return fmt.Errorf("%w: nsamples must be positive, got %d", ErrInvalidConfig, c.NSamples)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.NSamples%c.BatchSize != 0 {
		return fmt.Errorf("%w: nsamples=%d, batch_size=%d", ErrBatchMismatch, c.NSamples, c.BatchSize)
	}
	if c.Length < 0 {
		return fmt.Errorf("%w: length must not be negative, got %d", ErrInvalidConfig, c.Length)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be positive, got %g", ErrInvalidConfig, c.Temperature)
	}
	if c.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p must be within [0, 1], got %g", ErrInvalidConfig, c.TopP)
	}
	return nil
}

// Batches is the number of sampling calls a run makes.
func (c Config) Batches() int { return c.NSamples / c.BatchSize }

// ResolveLength applies the half-window default and rejects lengths the
// model cannot address.
func ResolveLength(length, nctx int) (int, error) {
	if length == 0 {
		return nctx / 2, nil
	}
	if length > nctx {
		return 0, fmt.Errorf("%w: %d", ErrLengthExceedsContext, nctx)
	}
	return length, nil
}
