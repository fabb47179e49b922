//go:build onnx

package inference

import (
	"fmt"
	"os"
	"slices"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/model"
)

// onnxModel runs a GPT-2 graph exported with past_key_values inputs and
// present outputs, feeding one token per call.
type onnxModel struct {
	hp          hparams.HParams
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
	cache       []ort.Value
	pos         int64
}

var _ model.Model = (*onnxModel)(nil)

func newONNXModel(path string, hp hparams.HParams) (model.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if !ort.IsInitialized() {
		if p, ok := os.LookupEnv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); ok {
			ort.SetSharedLibraryPath(p)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, err
		}
	}

	inputNames := make([]string, 0, 3+2*hp.NLayer)
	outputNames := make([]string, 0, 1+2*hp.NLayer)
	inputNames = append(inputNames, "input_ids", "position_ids", "attention_mask")
	outputNames = append(outputNames, "logits")
	for i := range hp.NLayer {
		inputNames = append(inputNames, fmt.Sprintf("past_key_values.%d.key", i), fmt.Sprintf("past_key_values.%d.value", i))
		outputNames = append(outputNames, fmt.Sprintf("present.%d.key", i), fmt.Sprintf("present.%d.value", i))
	}

	s, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, nil)
	if err != nil {
		return nil, err
	}
	m := &onnxModel{hp: hp, session: s, inputNames: inputNames, outputNames: outputNames}
	if err := m.resetCache(); err != nil {
		_ = s.Destroy()
		return nil, err
	}
	return m, nil
}

func (m *onnxModel) ForwardToken(id int) ([]float32, error) {
	if m.pos >= int64(m.hp.NCtx) {
		return nil, fmt.Errorf("%w: position %d, n_ctx %d", model.ErrContextFull, m.pos, m.hp.NCtx)
	}
	outputs, err := m.forward(int64(id), m.pos)
	if err != nil {
		return nil, err
	}
	logits := slices.Clone(outputs[0].(*ort.Tensor[float32]).GetData())
	_ = outputs[0].Destroy()
	destroyValues(m.cache)
	m.cache = outputs[1:]
	m.pos++
	return logits, nil
}

func (m *onnxModel) Reset() {
	// An allocation failure here resurfaces on the next forward call.
	_ = m.resetCache()
}

func (m *onnxModel) Close() error {
	destroyValues(m.cache)
	m.cache = nil
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

func (m *onnxModel) resetCache() error {
	destroyValues(m.cache)
	m.cache = nil
	m.pos = 0
	shape := ort.NewShape(1, int64(m.hp.NHead), 0, int64(m.hp.HeadDim()))
	values := make([]ort.Value, 0, 2*m.hp.NLayer)
	for range m.hp.NLayer {
		k, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			destroyValues(values)
			return err
		}
		v, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			_ = k.Destroy()
			destroyValues(values)
			return err
		}
		values = append(values, k, v)
	}
	m.cache = values
	return nil
}

func (m *onnxModel) forward(token, position int64) ([]ort.Value, error) {
	binding, err := m.session.CreateIoBinding()
	if err != nil {
		return nil, err
	}
	defer binding.Destroy()

	inputs, err := m.initInputs(token, position)
	if err != nil {
		return nil, err
	}
	defer destroyValues(inputs)

	outputs, err := m.initOutputs(position)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			destroyValues(outputs)
		}
	}()

	all := append(inputs[:len(inputs):len(inputs)], m.cache...)
	for i, name := range m.inputNames {
		if err := binding.BindInput(name, all[i]); err != nil {
			return nil, err
		}
	}
	for i, name := range m.outputNames {
		if err := binding.BindOutput(name, outputs[i]); err != nil {
			return nil, err
		}
	}
	if err := m.session.RunWithBinding(binding); err != nil {
		return nil, err
	}
	ok = true
	return outputs, nil
}

func (m *onnxModel) initInputs(token, position int64) ([]ort.Value, error) {
	tokens, err := ort.NewTensor(ort.NewShape(1, 1), []int64{token})
	if err != nil {
		return nil, err
	}
	positions, err := ort.NewTensor(ort.NewShape(1, 1), []int64{position})
	if err != nil {
		_ = tokens.Destroy()
		return nil, err
	}
	maskData := make([]int64, position+1)
	for i := range maskData {
		maskData[i] = 1
	}
	mask, err := ort.NewTensor(ort.NewShape(1, position+1), maskData)
	if err != nil {
		_ = tokens.Destroy()
		_ = positions.Destroy()
		return nil, err
	}
	return []ort.Value{tokens, positions, mask}, nil
}

func (m *onnxModel) initOutputs(position int64) ([]ort.Value, error) {
	outputs := make([]ort.Value, 0, 1+2*m.hp.NLayer)
	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(m.hp.NVocab)))
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, logits)

	shape := ort.NewShape(1, int64(m.hp.NHead), position+1, int64(m.hp.HeadDim()))
	for range m.hp.NLayer {
		k, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			destroyValues(outputs)
			return nil, err
		}
		v, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			_ = k.Destroy()
			destroyValues(outputs)
			return nil, err
		}
		outputs = append(outputs, k, v)
	}
	return outputs, nil
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		_ = v.Destroy()
	}
}
