package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samcharles93/sampler/internal/checkpoint"
	"github.com/samcharles93/sampler/internal/encoder"
	"github.com/samcharles93/sampler/internal/hparams"
	"github.com/samcharles93/sampler/internal/logger"
	"github.com/samcharles93/sampler/internal/model"
)

const (
	BackendCPU  = "cpu"
	BackendONNX = "onnx"
)

// ONNXFile is the exported graph the onnx backend runs.
const ONNXFile = "model.onnx"

// ModelSource provides the collaborators a Driver needs for a named model.
type ModelSource interface {
	Encoder(name string) (encoder.Encoder, error)
	HParams(name string) (hparams.HParams, error)
	Engine(ctx context.Context, name string, hp hparams.HParams, opts SamplingOptions) (Engine, error)
}

// Loader resolves models under a directory laid out as <dir>/<name>/.
// Restored weights are cached per model so later engines share them.
type Loader struct {
	ModelsDir string
	Backend   string
	Logger    logger.Logger

	mu     sync.Mutex
	models map[string]*model.GPT2
}

var _ ModelSource = (*Loader)(nil)

func NewLoader(modelsDir, backend string, log logger.Logger) *Loader {
	if backend == "" {
		backend = BackendCPU
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{
		ModelsDir: modelsDir,
		Backend:   backend,
		Logger:    log,
		models:    make(map[string]*model.GPT2),
	}
}

// ModelDir returns the directory of a named model.
func (l *Loader) ModelDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", &LoadError{Path: name, Reason: "invalid model name", Err: ErrInvalidConfig}
	}
	dir := filepath.Join(l.ModelsDir, name)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &LoadError{Path: dir, Reason: "no such model directory", Err: ErrModelNotFound}
		}
		return "", &LoadError{Path: dir, Reason: "stat model directory", Err: err}
	}
	if !info.IsDir() {
		return "", &LoadError{Path: dir, Reason: "not a directory", Err: ErrModelNotFound}
	}
	return dir, nil
}

func (l *Loader) Encoder(name string) (encoder.Encoder, error) {
	dir, err := l.ModelDir(name)
	if err != nil {
		return nil, err
	}
	enc, err := encoder.Load(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Reason: "load encoder", Err: err}
	}
	if tk, ok := enc.(*encoder.Tiktoken); ok {
		l.Logger.Debug("encoder files missing, using builtin encoding", "model", name, "encoding", tk.Name())
	}
	return enc, nil
}

func (l *Loader) HParams(name string) (hparams.HParams, error) {
	dir, err := l.ModelDir(name)
	if err != nil {
		return hparams.HParams{}, err
	}
	return hparams.Load(filepath.Join(dir, hparams.FileName))
}

// Engine builds a sampling engine on the configured backend.
func (l *Loader) Engine(ctx context.Context, name string, hp hparams.HParams, opts SamplingOptions) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch l.Backend {
	case BackendCPU:
		g, err := l.restore(name, hp)
		if err != nil {
			return nil, err
		}
		return NewSequenceEngine(g.NewSession(), hp.NCtx, opts), nil
	case BackendONNX:
		dir, err := l.ModelDir(name)
		if err != nil {
			return nil, err
		}
		m, err := newONNXModel(filepath.Join(dir, ONNXFile), hp)
		if err != nil {
			return nil, &LoadError{Path: filepath.Join(dir, ONNXFile), Reason: "open onnx model", Err: err}
		}
		return NewSequenceEngine(m, hp.NCtx, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, l.Backend)
	}
}

func (l *Loader) restore(name string, hp hparams.HParams) (*model.GPT2, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.models[name]; ok && g.Weights().HParams == hp {
		return g, nil
	}

	dir, err := l.ModelDir(name)
	if err != nil {
		return nil, err
	}
	path, err := checkpoint.Latest(dir)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	w, err := checkpoint.Restore(path, hp)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "restore checkpoint", Err: err}
	}
	g, err := model.New(w)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "build model", Err: err}
	}
	l.Logger.Info("restored checkpoint", "model", name, "path", path, "duration", time.Since(start).Round(time.Millisecond))
	l.models[name] = g
	return g, nil
}

// ModelInfo describes one entry of the models directory.
type ModelInfo struct {
	Name       string
	Dir        string
	HParams    hparams.HParams
	Checkpoint string
	Modified   time.Time
}

// Models lists subdirectories carrying an hparams.json, sorted by name.
// Directories with unreadable hyperparameters are skipped.
func (l *Loader) Models() ([]ModelInfo, error) {
	entries, err := os.ReadDir(l.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}
	var out []ModelInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(l.ModelsDir, e.Name())
		hp, err := hparams.Load(filepath.Join(dir, hparams.FileName))
		if err != nil {
			l.Logger.Debug("skipping model directory", "dir", dir, "error", err)
			continue
		}
		info := ModelInfo{Name: e.Name(), Dir: dir, HParams: hp}
		if path, err := checkpoint.Latest(dir); err == nil {
			info.Checkpoint = path
			if st, err := os.Stat(path); err == nil {
				info.Modified = st.ModTime()
			}
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b ModelInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
