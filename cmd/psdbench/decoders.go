package main

import (
	"fmt"

	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/decoders"
	"github.com/spf13/cobra"
)

func newDecodersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decoders",
		Short: "List registered decoders and how they are measured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := psdbench.NewRegistry()
			if err := decoders.Register(registry); err != nil {
				return err
			}

			for _, name := range registry.Names() {
				d, err := registry.New(name, psdbench.Options{})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, capability(d))
			}

			return nil
		},
	}
}

func capability(d psdbench.Decoder) string {
	switch d.(type) {
	case psdbench.SeparableDecoder:
		return "separable"
	case psdbench.FlagDecoder:
		return "subtractive"
	default:
		return "unsupported"
	}
}
