package main

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

var (
	pipedOnce   sync.Once
	pipedReader *bufio.Reader
)

// readPipedLine reads prompts from a non-terminal stdin, one per line.
// The reader is shared so buffered input survives across calls.
func readPipedLine(r io.Reader) (string, error) {
	pipedOnce.Do(func() { pipedReader = bufio.NewReader(r) })
	return readLineFrom(pipedReader)
}

func readLineFrom(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return trimTrailingNewline(s), nil
		}
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// history of submitted prompts, most recent last.
type history struct {
	entries []string
	pos     int
	draft   string
	active  bool
}

func (h *history) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		h.reset()
		return
	}
	h.entries = append(h.entries, line)
	h.reset()
}

func (h *history) reset() {
	h.pos = len(h.entries)
	h.active = false
	h.draft = ""
}

// prev returns the entry before the current position, saving current as the
// draft when browsing starts.
func (h *history) prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if !h.active {
		h.draft = current
		h.active = true
		h.pos = len(h.entries)
	}
	if h.pos == 0 {
		return "", false
	}
	h.pos--
	return h.entries[h.pos], true
}

func (h *history) next() (string, bool) {
	if !h.active {
		return "", false
	}
	if h.pos < len(h.entries)-1 {
		h.pos++
		return h.entries[h.pos], true
	}
	draft := h.draft
	h.reset()
	return draft, true
}

var promptHistory history

