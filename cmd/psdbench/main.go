package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "psdbench",
		Short:         "Benchmark layered image decoders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newDecodersCmd(), newHistoryCmd(), newSampleCmd())

	return root
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return slog.New(slog.NewTextHandler(w, nil))
}

func main() {
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		newLogger(os.Stderr, false).Error("psdbench failed", "error", err)
		os.Exit(1)
	}
}
