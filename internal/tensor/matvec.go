package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MatVec computes dst = w * x where w is [R x C], x has length C and dst has
// length R.
func MatVec(dst []float32, w *Mat, x []float32) {
	if len(x) < w.C || len(dst) < w.R {
		panic("MatVec dimension mismatch")
	}
	blas32.Gemv(blas.NoTrans, 1, w.general(),
		blas32.Vector{N: w.C, Inc: 1, Data: x},
		0, blas32.Vector{N: w.R, Inc: 1, Data: dst})
}

// MatVecT computes dst = wᵀ * x where w is [R x C], x has length R and dst has
// length C.  GPT-2 stores its projection weights as [in x out], so every
// linear layer goes through this path.
func MatVecT(dst []float32, w *Mat, x []float32) {
	if len(x) < w.R || len(dst) < w.C {
		panic("MatVecT dimension mismatch")
	}
	blas32.Gemv(blas.Trans, 1, w.general(),
		blas32.Vector{N: w.R, Inc: 1, Data: x},
		0, blas32.Vector{N: w.C, Inc: 1, Data: dst})
}

// Linear computes dst = wᵀ * x + bias.  A nil bias is skipped.
func Linear(dst []float32, w *Mat, x, bias []float32) {
	MatVecT(dst, w, x)
	if bias != nil {
		Add(dst[:w.C], bias)
	}
}
