//go:build !linux

package main

import (
	"fmt"
	"os"
)

func readInteractiveLine(prompt string) (string, error) {
	fmt.Print(prompt)
	return readPipedLine(os.Stdin)
}
