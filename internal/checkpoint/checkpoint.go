// Package checkpoint locates and restores GPT-2 checkpoints stored as
// safetensors files inside a model directory.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IndexFile names the optional file pointing at the current checkpoint.
const IndexFile = "checkpoint"

const ext = ".safetensors"

var ErrNotFound = errors.New("checkpoint not found")

// Latest returns the checkpoint to restore from dir. An index file wins when
// present; otherwise the most recently modified *.safetensors file is used.
func Latest(dir string) (string, error) {
	if name, err := readIndex(filepath.Join(dir, IndexFile)); err != nil {
		return "", err
	} else if name != "" {
		return resolveIndexed(dir, name)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return "", err
	}
	var (
		best    string
		bestMod int64
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", err
		}
		mod := info.ModTime().UnixNano()
		if best == "" || mod > bestMod || (mod == bestMod && e.Name() > best) {
			best, bestMod = e.Name(), mod
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no %s files in %s", ErrNotFound, ext, dir)
	}
	return filepath.Join(dir, best), nil
}

// readIndex extracts model_checkpoint_path from a TensorFlow style index
// file. A missing file yields an empty name.
func readIndex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "model_checkpoint_path" {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"`), nil
	}
	return "", sc.Err()
}

func resolveIndexed(dir, name string) (string, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	for _, candidate := range []string{name + ext, name} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: index points at %s", ErrNotFound, name)
}
