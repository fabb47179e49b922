package inference

import (
	"errors"
	"fmt"

	"github.com/samcharles93/sampler/internal/checkpoint"
	"github.com/samcharles93/sampler/internal/hparams"
)

var (
	ErrBatchMismatch        = errors.New("nsamples must be divisible by batch_size")
	ErrLengthExceedsContext = errors.New("can't get samples longer than window size")
	ErrPromptTooLong        = errors.New("prompt plus length exceeds window size")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrModelNotFound        = errors.New("model not found")
	ErrUnknownBackend       = errors.New("unknown backend")

	// Aliases so callers only need this package for errors.Is checks.
	ErrHParamsNotFound    = hparams.ErrNotFound
	ErrCheckpointNotFound = checkpoint.ErrNotFound
)

// LoadError reports a model resource that could not be loaded.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }
