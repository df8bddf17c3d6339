package psdbench

import "image"

// Decoder is a named decoder under test. Every decoder also implements
// SeparableDecoder or FlagDecoder, which decides how it is measured.
type Decoder interface {
	Name() string
}

// SeparableDecoder exposes parsing and each rendering phase as separate
// operations.
type SeparableDecoder interface {
	Decoder
	Parse(buf []byte) (Document, error)
}

type Document interface {
	RenderMergedImage() (image.Image, error)
	// RenderEachLayer renders every pixel layer. Groups are skipped.
	RenderEachLayer() ([]image.Image, error)
}

// Traverser is implemented by documents that compute descriptive properties
// on first access. ForceFullTraversal walks the whole tree and touches every
// property so that cost lands in the parse phase.
type Traverser interface {
	ForceFullTraversal() error
}

// DecodeFlags toggle the all-or-nothing stages of a FlagDecoder.
type DecodeFlags struct {
	SkipMergedImage bool
	SkipLayerImage  bool
	SkipThumbnail   bool
}

// FlagDecoder only offers a single decode call whose stages are switched on
// and off with flags.
type FlagDecoder interface {
	Decoder
	Decode(buf []byte, flags DecodeFlags) error
}
