package checkpoint

import (
	"fmt"
	"slices"

	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/model"
	"github.com/samcharles93/sampler/internal/safetensors"
	"github.com/samcharles93/sampler/internal/tensor"
)

// Some exports nest every tensor under this prefix.
const prefix = "transformer."

// Restore reads the checkpoint at path into weights shaped by hp.
func Restore(path string, hp hparams.HParams) (*model.Weights, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := reader{f: f}
	if _, ok := f.Tensor(prefix + "wte.weight"); ok {
		r.prefix = prefix
	}

	e := hp.NEmbd
	w := &model.Weights{HParams: hp, Blocks: make([]model.Block, hp.NLayer)}
	w.WTE = r.mat("wte.weight", hp.NVocab, e)
	w.WPE = r.mat("wpe.weight", hp.NCtx, e)
	for i := range w.Blocks {
		p := fmt.Sprintf("h.%d.", i)
		w.Blocks[i] = model.Block{
			LN1G:    r.vec(p+"ln_1.weight", e),
			LN1B:    r.vec(p+"ln_1.bias", e),
			AttnW:   r.mat(p+"attn.c_attn.weight", e, 3*e),
			AttnB:   r.vec(p+"attn.c_attn.bias", 3*e),
			ProjW:   r.mat(p+"attn.c_proj.weight", e, e),
			ProjB:   r.vec(p+"attn.c_proj.bias", e),
			LN2G:    r.vec(p+"ln_2.weight", e),
			LN2B:    r.vec(p+"ln_2.bias", e),
			FCW:     r.mat(p+"mlp.c_fc.weight", e, 4*e),
			FCB:     r.vec(p+"mlp.c_fc.bias", 4*e),
			FCProjW: r.mat(p+"mlp.c_proj.weight", 4*e, e),
			FCProjB: r.vec(p+"mlp.c_proj.bias", e),
		}
	}
	w.LNFG = r.vec("ln_f.weight", e)
	w.LNFB = r.vec("ln_f.bias", e)
	if r.err != nil {
		return nil, fmt.Errorf("restore %s: %w", path, r.err)
	}
	return w, nil
}

// reader keeps the first error so Restore can read tensors without
// checking after each one.
type reader struct {
	f      *safetensors.File
	prefix string
	err    error
}

func (r *reader) read(name string, shape ...int) []float32 {
	if r.err != nil {
		return nil
	}
	data, info, err := r.f.ReadTensorF32(r.prefix + name)
	if err != nil {
		r.err = err
		return nil
	}
	if !slices.Equal(info.Shape, shape) {
		r.err = fmt.Errorf("tensor %s: expected shape %v, got %v", name, shape, info.Shape)
		return nil
	}
	return data
}

func (r *reader) mat(name string, rows, cols int) tensor.Mat {
	data := r.read(name, rows, cols)
	if data == nil {
		return tensor.Mat{}
	}
	return tensor.NewMatFromData(rows, cols, data)
}

func (r *reader) vec(name string, n int) []float32 {
	return r.read(name, n)
}

// Save writes w in the layout Restore expects.
func Save(path string, w *model.Weights) error {
	e := w.HParams.NEmbd
	ts := []safetensors.Tensor{
		{Name: "wte.weight", Shape: []int{w.WTE.R, w.WTE.C}, Data: w.WTE.Data},
		{Name: "wpe.weight", Shape: []int{w.WPE.R, w.WPE.C}, Data: w.WPE.Data},
	}
	for i, b := range w.Blocks {
		p := fmt.Sprintf("h.%d.", i)
		ts = append(ts,
			safetensors.Tensor{Name: p + "ln_1.weight", Shape: []int{e}, Data: b.LN1G},
			safetensors.Tensor{Name: p + "ln_1.bias", Shape: []int{e}, Data: b.LN1B},
			safetensors.Tensor{Name: p + "attn.c_attn.weight", Shape: []int{e, 3 * e}, Data: b.AttnW.Data},
			safetensors.Tensor{Name: p + "attn.c_attn.bias", Shape: []int{3 * e}, Data: b.AttnB},
			safetensors.Tensor{Name: p + "attn.c_proj.weight", Shape: []int{e, e}, Data: b.ProjW.Data},
			safetensors.Tensor{Name: p + "attn.c_proj.bias", Shape: []int{e}, Data: b.ProjB},
			safetensors.Tensor{Name: p + "ln_2.weight", Shape: []int{e}, Data: b.LN2G},
			safetensors.Tensor{Name: p + "ln_2.bias", Shape: []int{e}, Data: b.LN2B},
			safetensors.Tensor{Name: p + "mlp.c_fc.weight", Shape: []int{e, 4 * e}, Data: b.FCW.Data},
			safetensors.Tensor{Name: p + "mlp.c_fc.bias", Shape: []int{4 * e}, Data: b.FCB},
			safetensors.Tensor{Name: p + "mlp.c_proj.weight", Shape: []int{4 * e, e}, Data: b.FCProjW.Data},
			safetensors.Tensor{Name: p + "mlp.c_proj.bias", Shape: []int{e}, Data: b.FCProjB},
		)
	}
	ts = append(ts,
		safetensors.Tensor{Name: "ln_f.weight", Shape: []int{e}, Data: w.LNFG},
		safetensors.Tensor{Name: "ln_f.bias", Shape: []int{e}, Data: w.LNFB},
	)
	return safetensors.Write(path, ts, map[string]string{"format": "pt"})
}
