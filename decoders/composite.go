package decoders

import (
	"image"

	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/psd"
)

// Composite evaluates node properties during parsing and renders by
// compositing, optionally honoring layer opacity.
type Composite struct {
	applyOpacity bool
}

func NewComposite(opts psdbench.Options) psdbench.Decoder {
	return Composite{applyOpacity: opts.ApplyOpacity}
}

func (Composite) Name() string { return CompositeName }

func (c Composite) Parse(buf []byte) (psdbench.Document, error) {
	doc, err := psd.ParseEager(buf)
	if err != nil {
		return nil, err
	}

	return &compositeDocument{doc: doc, applyOpacity: c.applyOpacity}, nil
}

type compositeDocument struct {
	doc          *psd.Document
	applyOpacity bool
}

func (d *compositeDocument) RenderMergedImage() (image.Image, error) {
	return d.doc.Composite(d.applyOpacity)
}

func (d *compositeDocument) RenderEachLayer() ([]image.Image, error) {
	layers := d.doc.Layers()
	out := make([]image.Image, 0, len(layers))

	for _, l := range layers {
		img, err := l.Composite(d.applyOpacity)
		if err != nil {
			return nil, err
		}

		out = append(out, img)
	}

	return out, nil
}
