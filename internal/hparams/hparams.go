package hparams

import (
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// FileName is the per-model hyperparameter descriptor.
const FileName = "hparams.json"

var (
	ErrNotFound = errors.New("hparams not found")
	ErrInvalid  = errors.New("invalid hparams")
)

// HParams describes the architecture needed to rebuild a GPT-2 model.
type HParams struct {
	NVocab int `json:"n_vocab"`
	NCtx   int `json:"n_ctx"`
	NEmbd  int `json:"n_embd"`
	NHead  int `json:"n_head"`
	NLayer int `json:"n_layer"`
}

// Default returns the 124M GPT-2 hyperparameters.
func Default() HParams {
	return HParams{
		NVocab: 50257,
		NCtx:   1024,
		NEmbd:  768,
		NHead:  12,
		NLayer: 12,
	}
}

// Override replaces the fields present in data. Keys absent from data keep
// their current value and unknown keys are ignored.
func (h *HParams) Override(data []byte) error {
	if err := json.Unmarshal(data, h); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Load reads path and applies it on top of Default.
func Load(path string) (HParams, error) {
	hp := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return HParams{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return HParams{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := hp.Override(data); err != nil {
		return HParams{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := hp.Validate(); err != nil {
		return HParams{}, fmt.Errorf("%s: %w", path, err)
	}
	return hp, nil
}

func (h HParams) Validate() error {
	switch {
	case h.NVocab <= 0:
		return fmt.Errorf("%w: n_vocab must be positive, got %d", ErrInvalid, h.NVocab)
	case h.NCtx <= 0:
		return fmt.Errorf("%w: n_ctx must be positive, got %d", ErrInvalid, h.NCtx)
	case h.NEmbd <= 0:
		return fmt.Errorf("%w: n_embd must be positive, got %d", ErrInvalid, h.NEmbd)
	case h.NHead <= 0:
		return fmt.Errorf("%w: n_head must be positive, got %d", ErrInvalid, h.NHead)
	case h.NLayer <= 0:
		return fmt.Errorf("%w: n_layer must be positive, got %d", ErrInvalid, h.NLayer)
	case h.NEmbd%h.NHead != 0:
		return fmt.Errorf("%w: n_embd %d not divisible by n_head %d", ErrInvalid, h.NEmbd, h.NHead)
	}
	return nil
}

// HeadDim is the per-head attention width.
func (h HParams) HeadDim() int { return h.NEmbd / h.NHead }

// EndOfText is the id of <|endoftext|>, the last entry of the GPT-2 vocabulary.
func (h HParams) EndOfText() int { return h.NVocab - 1 }
