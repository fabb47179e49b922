package model

import (
	"fmt"

	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/tensor"
)

// Block holds one transformer layer. Projection matrices are stored
// [in x out] as in the original checkpoints.
type Block struct {
	LN1G, LN1B []float32
	AttnW      tensor.Mat // [n_embd x 3*n_embd]
	AttnB      []float32
	ProjW      tensor.Mat // [n_embd x n_embd]
	ProjB      []float32
	LN2G, LN2B []float32
	FCW        tensor.Mat // [n_embd x 4*n_embd]
	FCB        []float32
	FCProjW    tensor.Mat // [4*n_embd x n_embd]
	FCProjB    []float32
}

// Weights is a fully restored GPT-2 checkpoint.
type Weights struct {
	HParams    hparams.HParams
	WTE        tensor.Mat // [n_vocab x n_embd], also the output projection
	WPE        tensor.Mat // [n_ctx x n_embd]
	Blocks     []Block
	LNFG, LNFB []float32
}

// NewWeights allocates zeroed weights shaped for hp, with layer norm gains
// set to one.
func NewWeights(hp hparams.HParams) *Weights {
	e := hp.NEmbd
	w := &Weights{
		HParams: hp,
		WTE:     tensor.NewMat(hp.NVocab, e),
		WPE:     tensor.NewMat(hp.NCtx, e),
		Blocks:  make([]Block, hp.NLayer),
		LNFG:    ones(e),
		LNFB:    make([]float32, e),
	}
	for i := range w.Blocks {
		w.Blocks[i] = Block{
			LN1G:    ones(e),
			LN1B:    make([]float32, e),
			AttnW:   tensor.NewMat(e, 3*e),
			AttnB:   make([]float32, 3*e),
			ProjW:   tensor.NewMat(e, e),
			ProjB:   make([]float32, e),
			LN2G:    ones(e),
			LN2B:    make([]float32, e),
			FCW:     tensor.NewMat(e, 4*e),
			FCB:     make([]float32, 4*e),
			FCProjW: tensor.NewMat(4*e, e),
			FCProjB: make([]float32, e),
		}
	}
	return w
}

// NewRandom returns weights filled with small reproducible values.
func NewRandom(hp hparams.HParams, seed int64) *Weights {
	w := NewWeights(hp)
	tensor.FillRand(&w.WTE, seed)
	tensor.FillRand(&w.WPE, seed+1)
	for i := range w.Blocks {
		b := &w.Blocks[i]
		s := seed + int64(16*(i+1))
		tensor.FillRand(&b.AttnW, s)
		tensor.FillRand(&b.ProjW, s+1)
		tensor.FillRand(&b.FCW, s+2)
		tensor.FillRand(&b.FCProjW, s+3)
	}
	return w
}

// Validate checks every tensor against the hyperparameters.
func (w *Weights) Validate() error {
	hp := w.HParams
	if err := hp.Validate(); err != nil {
		return err
	}
	e := hp.NEmbd
	checkMat := func(name string, m tensor.Mat, r, c int) error {
		if m.R != r || m.C != c || len(m.Data) < r*c {
			return fmt.Errorf("%s: expected [%d %d], got [%d %d]", name, r, c, m.R, m.C)
		}
		return nil
	}
	checkVec := func(name string, v []float32, n int) error {
		if len(v) != n {
			return fmt.Errorf("%s: expected %d values, got %d", name, n, len(v))
		}
		return nil
	}
	if err := checkMat("wte", w.WTE, hp.NVocab, e); err != nil {
		return err
	}
	if err := checkMat("wpe", w.WPE, hp.NCtx, e); err != nil {
		return err
	}
	if len(w.Blocks) != hp.NLayer {
		return fmt.Errorf("expected %d blocks, got %d", hp.NLayer, len(w.Blocks))
	}
	for i, b := range w.Blocks {
		p := fmt.Sprintf("h.%d.", i)
		for _, err := range []error{
			checkVec(p+"ln_1.weight", b.LN1G, e),
			checkVec(p+"ln_1.bias", b.LN1B, e),
			checkMat(p+"attn.c_attn.weight", b.AttnW, e, 3*e),
			checkVec(p+"attn.c_attn.bias", b.AttnB, 3*e),
			checkMat(p+"attn.c_proj.weight", b.ProjW, e, e),
			checkVec(p+"attn.c_proj.bias", b.ProjB, e),
			checkVec(p+"ln_2.weight", b.LN2G, e),
			checkVec(p+"ln_2.bias", b.LN2B, e),
			checkMat(p+"mlp.c_fc.weight", b.FCW, e, 4*e),
			checkVec(p+"mlp.c_fc.bias", b.FCB, 4*e),
			checkMat(p+"mlp.c_proj.weight", b.FCProjW, 4*e, e),
			checkVec(p+"mlp.c_proj.bias", b.FCProjB, e),
		} {
			if err != nil {
				return err
			}
		}
	}
	if err := checkVec("ln_f.weight", w.LNFG, e); err != nil {
		return err
	}
	return checkVec("ln_f.bias", w.LNFB, e)
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
