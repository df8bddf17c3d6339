package main

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/hamzali/psdbench/psd/synth"
	"github.com/spf13/cobra"
)

func newSampleCmd() *cobra.Command {
	var (
		width  int
		height int
		layers int
		groups int
		rle    bool
	)

	cmd := &cobra.Command{
		Use:   "sample <out.psd>",
		Short: "Write a synthetic layered document to benchmark against",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width < 1 || height < 1 || layers < 0 || groups < 0 {
				return fmt.Errorf("invalid sample size %dx%d with %d layers in %d groups", width, height, layers, groups)
			}

			data := sampleDocument(width, height, layers, groups, rle)

			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("could not write sample: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[0], len(data))

			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 1024, "document width")
	cmd.Flags().IntVar(&height, "height", 768, "document height")
	cmd.Flags().IntVar(&layers, "layers", 16, "layers per group")
	cmd.Flags().IntVar(&groups, "groups", 2, "groups, 0 puts every layer at the top level")
	cmd.Flags().BoolVar(&rle, "rle", true, "packbits compress channel data")

	return cmd
}

// sampleDocument lays out stripes of half transparent layers so every layer
// covers a different part of the canvas.
func sampleDocument(width, height, layers, groups int, rle bool) []byte {
	b := synth.New(width, height).RLE(rle).Merged(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	n := 0
	addLayers := func() {
		for i := 0; i < layers; i++ {
			x := (n * 37) % width
			y := (i * height) / max(layers, 1)

			b.Layer(synth.Layer{
				Name:    fmt.Sprintf("layer %d", n),
				Rect:    image.Rect(x, y, min(x+width/2+1, width), min(y+height/4+1, height)),
				Fill:    color.NRGBA{R: uint8(n * 40), G: uint8(255 - n*20), B: uint8(n * 90), A: 0xff},
				Opacity: 0x80,
			})
			n++
		}
	}

	if groups == 0 {
		addLayers()

		return b.Bytes()
	}

	for g := 0; g < groups; g++ {
		b.BeginGroup()
		addLayers()
		b.EndGroup(synth.Group{Name: fmt.Sprintf("group %d", g)})
	}

	return b.Bytes()
}
