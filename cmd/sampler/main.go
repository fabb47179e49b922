package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sampler/internal/version"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "sampler",
		Usage:     "Sample continuations of a prompt from a GPT-2 checkpoint",
		UsageText: "sampler [global options] [command [command options]]",
		Version:   version.String(),
		Flags:     rootFlags(),
		Action:    sampleAction,
		Commands: []*cli.Command{
			sampleCmd(),
			interactiveCmd(),
			serveCmd(),
			inspectCmd(),
			listModelsCmd(),
			versionCmd(),
		},
		// Errors are printed by main.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}
