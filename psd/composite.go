package psd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
)

const (
	resourceThumbnail    = 1036
	resourceThumbnailOld = 1033
	thumbnailHeaderSize  = 28
	thumbnailJPEG        = 1
)

// Composite blends every visible layer onto a transparent canvas in paint
// order. Blend modes other than normal are drawn as normal. When
// applyOpacity is set each layer is weighted by its own opacity and that of
// its enclosing groups. Layer pixels are decoded for this call only and the
// layer caches stay empty. A document without layers returns its merged
// image.
func (d *Document) Composite(applyOpacity bool) (*image.NRGBA, error) {
	if len(d.layers) == 0 {
		return d.Image()
	}

	dst := image.NewNRGBA(image.Rect(0, 0, d.Header.Width, d.Header.Height))

	for _, l := range d.layers {
		if !l.Visible() {
			continue
		}

		src, err := l.decodeImage()
		if err != nil {
			return nil, err
		}

		if src.Rect.Empty() {
			continue
		}

		var mask image.Image
		if a := l.effectiveAlpha(); applyOpacity && a != 255 {
			mask = image.NewUniform(color.Alpha{A: a})
		}

		draw.DrawMask(dst, src.Rect, src, src.Rect.Min, mask, image.Point{}, draw.Over)
	}

	return dst, nil
}

func (d *Document) decodeThumbnail() (image.Image, error) {
	data, ok := d.resources[resourceThumbnail]
	if !ok {
		if data, ok = d.resources[resourceThumbnailOld]; !ok {
			return nil, nil
		}
	}

	if len(data) < thumbnailHeaderSize {
		return nil, fmt.Errorf("%w: thumbnail resource", ErrTruncated)
	}

	if format := binary.BigEndian.Uint32(data); format != thumbnailJPEG {
		return nil, fmt.Errorf("%w: thumbnail format %d", ErrUnsupportedCompression, format)
	}

	img, err := jpeg.Decode(bytes.NewReader(data[thumbnailHeaderSize:]))
	if err != nil {
		return nil, fmt.Errorf("%w: thumbnail: %v", ErrCorrupt, err)
	}

	return img, nil
}

type DecodeOptions struct {
	SkipMergedImage bool
	SkipLayerImage  bool
	SkipThumbnail   bool
}

// Decoded is the result of an eager Decode. Images that were skipped are nil.
type Decoded struct {
	Document    *Document
	Image       *image.NRGBA
	LayerImages []*image.NRGBA
	Thumbnail   image.Image
}

// Decode parses buf and evaluates everything the options do not skip. Node
// properties are always evaluated.
func Decode(buf []byte, o DecodeOptions) (*Decoded, error) {
	doc, err := ParseEager(buf)
	if err != nil {
		return nil, err
	}

	out := &Decoded{Document: doc}

	if !o.SkipMergedImage {
		if out.Image, err = doc.Image(); err != nil {
			return nil, err
		}
	}

	if !o.SkipLayerImage {
		out.LayerImages = make([]*image.NRGBA, 0, len(doc.layers))

		for _, l := range doc.layers {
			img, err := l.Image()
			if err != nil {
				return nil, err
			}

			out.LayerImages = append(out.LayerImages, img)
		}
	}

	if !o.SkipThumbnail {
		if out.Thumbnail, err = doc.Thumbnail(); err != nil {
			return nil, err
		}
	}

	return out, nil
}
