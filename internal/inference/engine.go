package inference

import (
	"context"
	"fmt"

	"github.com/samcharles93/sampler/internal/logits"
	"github.com/samcharles93/sampler/internal/model"
)

// Engine samples continuations for a batch of contexts. Returned rows hold
// the context followed by length sampled tokens.
type Engine interface {
	SampleSequence(ctx context.Context, contexts [][]int, length int) ([][]int, error)
	Close() error
}

// SamplingOptions fixes everything an engine needs besides the contexts.
type SamplingOptions struct {
	Length      int
	BatchSize   int
	Temperature float64
	TopK        int
	TopP        float64
	Seed        int64
	// StartToken conditions rows whose context is empty. It is not part of
	// the returned row.
	StartToken int
}

// sequenceEngine drives any model.Model one row at a time. A single sampler
// is shared by every row and call, so a fixed seed reproduces the whole run.
type sequenceEngine struct {
	model      model.Model
	sampler    *logits.Sampler
	startToken int
	nctx       int
}

// NewSequenceEngine wraps m. nctx bounds the positions a row may use.
func NewSequenceEngine(m model.Model, nctx int, opts SamplingOptions) Engine {
	return &sequenceEngine{
		model: m,
		sampler: logits.NewSampler(logits.SamplerConfig{
			Seed:        opts.Seed,
			Temperature: float32(opts.Temperature),
			TopK:        opts.TopK,
			TopP:        float32(opts.TopP),
		}),
		startToken: opts.StartToken,
		nctx:       nctx,
	}
}

func (e *sequenceEngine) SampleSequence(ctx context.Context, contexts [][]int, length int) ([][]int, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative length %d", length)
	}
	out := make([][]int, len(contexts))
	for i, row := range contexts {
		cond := row
		if len(cond) == 0 {
			cond = []int{e.startToken}
		}
		if !fitsWindow(len(cond), length, e.nctx) {
			return nil, fmt.Errorf("%w: %d context tokens, length %d, window %d", ErrPromptTooLong, len(row), length, e.nctx)
		}
		e.model.Reset()
		toks, _, err := Generate(ctx, e.model, e.sampler, cond, length)
		if err != nil {
			return nil, fmt.Errorf("sample row %d: %w", i, err)
		}
		full := make([]int, 0, len(row)+len(toks))
		full = append(full, row...)
		out[i] = append(full, toks...)
	}
	return out, nil
}

// fitsWindow reports whether a context of n tokens followed by length
// sampled tokens can be generated in a window of nctx positions. The last
// sampled token is never fed back, so it needs no position.
func fitsWindow(n, length, nctx int) bool {
	return n+length-1 <= nctx
}

func (e *sequenceEngine) Close() error {
	if c, ok := e.model.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
