package decoders

import (
	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/psd"
)

// Flags drives psd.Decode, which can only skip whole stages.
type Flags struct{}

func NewFlags(psdbench.Options) psdbench.Decoder {
	return Flags{}
}

func (Flags) Name() string { return FlagsName }

func (Flags) Decode(buf []byte, flags psdbench.DecodeFlags) error {
	_, err := psd.Decode(buf, psd.DecodeOptions{
		SkipMergedImage: flags.SkipMergedImage,
		SkipLayerImage:  flags.SkipLayerImage,
		SkipThumbnail:   flags.SkipThumbnail,
	})

	return err
}
