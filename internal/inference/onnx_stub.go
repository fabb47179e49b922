//go:build !onnx

package inference

import (
	"errors"

	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/model"
)

func newONNXModel(string, hparams.HParams) (model.Model, error) {
	return nil, errors.New("onnx backend not compiled in (rebuild with -tags onnx)")
}
