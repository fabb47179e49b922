//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		fmt.Print(prompt)
		return readPipedLine(os.Stdin)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	ed := &lineEditor{out: os.Stdout, prompt: prompt, hist: &promptHistory}
	fmt.Fprint(ed.out, prompt)
	return ed.run(os.Stdin)
}

// lineEditor is a minimal raw-mode editor: cursor movement, backspace and
// delete, Ctrl-A/E/W and history on the arrow keys.
type lineEditor struct {
	out    io.Writer
	prompt string
	hist   *history

	line   []byte
	cursor int
}

func (e *lineEditor) run(in io.Reader) (string, error) {
	var (
		buf      [16]byte
		escState int
		escBuf   strings.Builder
	)
	for {
		n, err := in.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			switch escState {
			case 1:
				escState = 0
				if b == '[' {
					escState = 2
					escBuf.Reset()
				}
				continue
			case 2:
				escBuf.WriteByte(b)
				if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
					e.csi(escBuf.String())
					escState = 0
				}
				continue
			}

			switch b {
			case 27: // ESC
				escState = 1
			case '\r', '\n':
				fmt.Fprint(e.out, "\r\n")
				out := string(e.line)
				e.hist.add(out)
				return out, nil
			case 3: // Ctrl+C
				fmt.Fprint(e.out, "^C\r\n")
				return "", io.EOF
			case 4: // Ctrl+D
				if len(e.line) == 0 {
					fmt.Fprint(e.out, "\r\n")
					return "", io.EOF
				}
			case 127, 8:
				if e.cursor > 0 {
					e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
					e.cursor--
					e.redraw()
				}
			case 1: // Ctrl+A
				e.cursor = 0
				e.redraw()
			case 5: // Ctrl+E
				e.cursor = len(e.line)
				e.redraw()
			case 23: // Ctrl+W
				e.deleteWordBack()
			default:
				if b >= 32 {
					e.insert(b)
				}
			}
		}
	}
}

func (e *lineEditor) csi(seq string) {
	switch seq {
	case "A":
		if s, ok := e.hist.prev(string(e.line)); ok {
			e.set(s)
		}
	case "B":
		if s, ok := e.hist.next(); ok {
			e.set(s)
		}
	case "D":
		if e.cursor > 0 {
			e.cursor--
			e.redraw()
		}
	case "C":
		if e.cursor < len(e.line) {
			e.cursor++
			e.redraw()
		}
	case "H":
		e.cursor = 0
		e.redraw()
	case "F":
		e.cursor = len(e.line)
		e.redraw()
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
			e.redraw()
		}
	}
}

func (e *lineEditor) insert(b byte) {
	e.line = append(e.line, 0)
	copy(e.line[e.cursor+1:], e.line[e.cursor:])
	e.line[e.cursor] = b
	e.cursor++
	e.redraw()
}

func (e *lineEditor) set(s string) {
	e.line = append(e.line[:0], s...)
	e.cursor = len(e.line)
	e.redraw()
}

func (e *lineEditor) deleteWordBack() {
	start := e.cursor
	for start > 0 && e.line[start-1] == ' ' {
		start--
	}
	for start > 0 && e.line[start-1] != ' ' {
		start--
	}
	if start == e.cursor {
		return
	}
	e.line = append(e.line[:start], e.line[e.cursor:]...)
	e.cursor = start
	e.redraw()
}

func (e *lineEditor) redraw() {
	fmt.Fprintf(e.out, "\r%s%s\x1b[K", e.prompt, e.line)
	if e.cursor < len(e.line) {
		fmt.Fprintf(e.out, "\r%s%s", e.prompt, e.line[:e.cursor])
	}
}
