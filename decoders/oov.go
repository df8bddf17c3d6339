package decoders

import (
	"bytes"

	"github.com/hamzali/psdbench"
	oovpsd "github.com/oov/psd"
)

// OOV drives github.com/oov/psd. It keeps image resources undecoded, so
// SkipThumbnail has nothing to switch off.
type OOV struct{}

func NewOOV(psdbench.Options) psdbench.Decoder {
	return OOV{}
}

func (OOV) Name() string { return OOVName }

func (OOV) Decode(buf []byte, flags psdbench.DecodeFlags) error {
	_, _, err := oovpsd.Decode(bytes.NewReader(buf), &oovpsd.DecodeOptions{
		SkipMergedImage: flags.SkipMergedImage,
		SkipLayerImage:  flags.SkipLayerImage,
	})

	return err
}
