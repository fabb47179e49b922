package encoder

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken wraps a named tiktoken encoding. The BPE ranks are fetched on
// first use and cached under TIKTOKEN_CACHE_DIR when that is set.
type Tiktoken struct {
	name string
	enc  *tiktoken.Tiktoken
}

func NewTiktoken(name string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", name, err)
	}
	return &Tiktoken{name: name, enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) ([]int, error) {
	return t.enc.Encode(text, []string{EndOfText}, nil), nil
}

func (t *Tiktoken) Decode(ids []int) (string, error) {
	return t.enc.Decode(ids), nil
}

func (t *Tiktoken) Name() string { return t.name }
