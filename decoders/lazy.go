package decoders

import (
	"image"

	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/psd"
)

// Lazy parses structure only and leaves names, blend modes, visibility and
// pixels to be computed on first access.
type Lazy struct{}

func NewLazy(psdbench.Options) psdbench.Decoder {
	return Lazy{}
}

func (Lazy) Name() string { return LazyName }

func (Lazy) Parse(buf []byte) (psdbench.Document, error) {
	doc, err := psd.Parse(buf)
	if err != nil {
		return nil, err
	}

	return &lazyDocument{doc: doc}, nil
}

type lazyDocument struct {
	doc *psd.Document
}

// ForceFullTraversal exports every node so that no deferred metadata is left
// for the render phases.
func (d *lazyDocument) ForceFullTraversal() error {
	for _, n := range d.doc.Descendants() {
		n.Export()
	}

	return nil
}

func (d *lazyDocument) RenderMergedImage() (image.Image, error) {
	return d.doc.Image()
}

func (d *lazyDocument) RenderEachLayer() ([]image.Image, error) {
	var out []image.Image

	for _, n := range d.doc.Descendants() {
		l, ok := n.(*psd.Layer)
		if !ok {
			continue
		}

		img, err := l.Image()
		if err != nil {
			return nil, err
		}

		out = append(out, img)
	}

	return out, nil
}
