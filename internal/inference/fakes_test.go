package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/sampler/internal/encoder"
	"github.com/samcharles93/sampler/internal/hparams"
)

// wordEncoder maps each space separated word to its index in words.
type wordEncoder struct {
	words []string
}

func (e *wordEncoder) Encode(text string) ([]int, error) {
	var ids []int
	for _, f := range strings.Fields(text) {
		id := -1
		for i, w := range e.words {
			if w == f {
				id = i
				break
			}
		}
		if id < 0 {
			return nil, fmt.Errorf("unknown word %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (e *wordEncoder) Decode(ids []int) (string, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(e.words) {
			return "", fmt.Errorf("id %d out of range", id)
		}
		parts[i] = e.words[id]
	}
	return strings.Join(parts, " "), nil
}

// countingEngine returns the context followed by length copies of fill and
// records every call.
type countingEngine struct {
	fill     int
	calls    int
	contexts [][][]int
	lengths  []int
	err      error
	closed   bool
}

func (e *countingEngine) SampleSequence(_ context.Context, contexts [][]int, length int) ([][]int, error) {
	e.calls++
	e.contexts = append(e.contexts, contexts)
	e.lengths = append(e.lengths, length)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]int, len(contexts))
	for i, c := range contexts {
		row := append([]int(nil), c...)
		for range length {
			row = append(row, e.fill)
		}
		out[i] = row
	}
	return out, nil
}

func (e *countingEngine) Close() error {
	e.closed = true
	return nil
}

// fakeSource records which collaborators were requested.
type fakeSource struct {
	enc        encoder.Encoder
	hp         hparams.HParams
	engine     *countingEngine
	encErr     error
	hpErr      error
	engineErr  error
	opts       SamplingOptions
	engineHits int
	loads      int
}

func newFakeSource(nctx int) *fakeSource {
	return &fakeSource{
		enc:    &wordEncoder{words: []string{"the", "quick", "fox", "jumps", "<|endoftext|>"}},
		hp:     hparams.HParams{NVocab: 5, NCtx: nctx, NEmbd: 4, NHead: 1, NLayer: 1},
		engine: &countingEngine{fill: 2},
	}
}

func (s *fakeSource) Encoder(string) (encoder.Encoder, error) {
	s.loads++
	if s.encErr != nil {
		return nil, s.encErr
	}
	return s.enc, nil
}

func (s *fakeSource) HParams(string) (hparams.HParams, error) {
	s.loads++
	if s.hpErr != nil {
		return hparams.HParams{}, s.hpErr
	}
	return s.hp, nil
}

func (s *fakeSource) Engine(_ context.Context, _ string, _ hparams.HParams, opts SamplingOptions) (Engine, error) {
	s.engineHits++
	s.opts = opts
	if s.engineErr != nil {
		return nil, s.engineErr
	}
	return s.engine, nil
}

var errBoom = errors.New("boom")
