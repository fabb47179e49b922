package safetensors

import (
	"io"
	"os"
)

func readAll(f *os.File, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), out); err != nil {
		return nil, err
	}
	return out, nil
}
