package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/sampler/internal/tensor"
)

const layerNormEps = 1e-5

// ErrContextFull is returned when a session has consumed n_ctx positions.
var ErrContextFull = errors.New("context window exhausted")

// GPT2 is an immutable set of restored weights. Sessions created from it
// can run concurrently.
type GPT2 struct {
	w *Weights
}

// New validates w and wraps it for inference.
func New(w *Weights) (*GPT2, error) {
	if w == nil {
		return nil, fmt.Errorf("nil weights")
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &GPT2{w: w}, nil
}

// Weights returns the underlying tensors.
func (g *GPT2) Weights() *Weights { return g.w }

// Session is a single decoding stream with its own KV cache.
type Session struct {
	g   *GPT2
	pos int

	// keys[l] and vals[l] hold n_ctx rows of n_embd values.
	keys [][]float32
	vals [][]float32

	x, h, qkv, att, proj, ff, scores, logits []float32
}

var _ Model = (*Session)(nil)

// NewSession allocates scratch buffers and an empty KV cache.
func (g *GPT2) NewSession() *Session {
	hp := g.w.HParams
	e := hp.NEmbd
	s := &Session{
		g:      g,
		keys:   make([][]float32, hp.NLayer),
		vals:   make([][]float32, hp.NLayer),
		x:      make([]float32, e),
		h:      make([]float32, e),
		qkv:    make([]float32, 3*e),
		att:    make([]float32, e),
		proj:   make([]float32, e),
		ff:     make([]float32, 4*e),
		scores: make([]float32, hp.NCtx),
		logits: make([]float32, hp.NVocab),
	}
	for l := range s.keys {
		s.keys[l] = make([]float32, hp.NCtx*e)
		s.vals[l] = make([]float32, hp.NCtx*e)
	}
	return s
}

// Pos reports how many tokens have been consumed.
func (s *Session) Pos() int { return s.pos }

// Reset rewinds the session to position zero.
func (s *Session) Reset() { s.pos = 0 }

// ForwardToken feeds one token and returns the next-token logits. The
// returned slice is reused by the next call.
func (s *Session) ForwardToken(id int) ([]float32, error) {
	w := s.g.w
	hp := w.HParams
	if id < 0 || id >= hp.NVocab {
		return nil, fmt.Errorf("token id %d out of range [0,%d)", id, hp.NVocab)
	}
	if s.pos >= hp.NCtx {
		return nil, fmt.Errorf("%w: position %d, n_ctx %d", ErrContextFull, s.pos, hp.NCtx)
	}

	e := hp.NEmbd
	copy(s.x, w.WTE.Row(id))
	tensor.Add(s.x, w.WPE.Row(s.pos))

	for l := range w.Blocks {
		b := &w.Blocks[l]

		tensor.LayerNorm(s.h, s.x, b.LN1G, b.LN1B, layerNormEps)
		tensor.Linear(s.qkv, &b.AttnW, s.h, b.AttnB)
		copy(s.keys[l][s.pos*e:(s.pos+1)*e], s.qkv[e:2*e])
		copy(s.vals[l][s.pos*e:(s.pos+1)*e], s.qkv[2*e:])
		s.attend(l, s.qkv[:e])
		tensor.Linear(s.proj, &b.ProjW, s.att, b.ProjB)
		tensor.Add(s.x, s.proj)

		tensor.LayerNorm(s.h, s.x, b.LN2G, b.LN2B, layerNormEps)
		tensor.Linear(s.ff, &b.FCW, s.h, b.FCB)
		tensor.GELU(s.ff)
		tensor.Linear(s.proj, &b.FCProjW, s.ff, b.FCProjB)
		tensor.Add(s.x, s.proj)
	}

	tensor.LayerNorm(s.h, s.x, w.LNFG, w.LNFB, layerNormEps)
	tensor.MatVec(s.logits, &w.WTE, s.h)
	s.pos++
	return s.logits, nil
}

// attend runs causal multi-head attention for the current position over
// the cached keys and values of layer l.
func (s *Session) attend(l int, q []float32) {
	hp := s.g.w.HParams
	e := hp.NEmbd
	hd := hp.HeadDim()
	scale := float32(1 / math.Sqrt(float64(hd)))
	n := s.pos + 1
	keys, vals := s.keys[l], s.vals[l]

	clear(s.att)
	for h := 0; h < hp.NHead; h++ {
		off := h * hd
		qh := q[off : off+hd]
		scores := s.scores[:n]
		for t := 0; t < n; t++ {
			scores[t] = tensor.Dot(qh, keys[t*e+off:t*e+off+hd]) * scale
		}
		tensor.Softmax(scores)
		out := s.att[off : off+hd]
		for t := 0; t < n; t++ {
			p := scores[t]
			v := vals[t*e+off : t*e+off+hd]
			for i := range out {
				out[i] += p * v[i]
			}
		}
	}
}
