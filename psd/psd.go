// Package psd decodes layered Photoshop documents (PSD and PSB) with 8-bit
// RGB or grayscale channels.
//
// Parse builds the document structure and defers everything else: layer
// names, blend modes, visibility and all pixel data are computed on first
// access and cached. ParseEager and Decode evaluate eagerly for callers that
// want the whole cost up front.
package psd

import (
	"bytes"
	"errors"
	"fmt"
	"image"
)

var (
	ErrInvalidSignature       = errors.New("psd: invalid signature")
	ErrUnsupportedVersion     = errors.New("psd: unsupported version")
	ErrUnsupportedColorMode   = errors.New("psd: unsupported color mode")
	ErrUnsupportedDepth       = errors.New("psd: unsupported bit depth")
	ErrUnsupportedCompression = errors.New("psd: unsupported compression")
	ErrTruncated              = errors.New("psd: unexpected end of data")
	ErrCorrupt                = errors.New("psd: corrupt data")
	ErrMalformedTree          = errors.New("psd: unbalanced layer groups")
)

const (
	signature   = "8BPS"
	headerSize  = 26
	maxChannels = 56
	maxPSD      = 30000
	maxPSB      = 300000
)

type ColorMode uint16

const (
	Bitmap       ColorMode = 0
	Grayscale    ColorMode = 1
	Indexed      ColorMode = 2
	RGB          ColorMode = 3
	CMYK         ColorMode = 4
	Multichannel ColorMode = 7
	Duotone      ColorMode = 8
	Lab          ColorMode = 9
)

// colorChannels is the number of color planes a mode needs.
func (m ColorMode) colorChannels() int {
	if m == Grayscale {
		return 1
	}

	return 3
}

type Compression uint16

const (
	Raw           Compression = 0
	RLE           Compression = 1
	ZIP           Compression = 2
	ZIPPrediction Compression = 3
)

func (c Compression) valid() bool {
	return c <= ZIPPrediction
}

type Header struct {
	Version   int
	Channels  int
	Width     int
	Height    int
	Depth     int
	ColorMode ColorMode
}

// PSB reports whether the document uses the large document format.
func (h Header) PSB() bool {
	return h.Version == 2
}

// Document is a parsed layered document. It keeps references into the buffer
// it was parsed from; the buffer must not change while the document is used.
type Document struct {
	Header Header

	resources   map[uint16][]byte
	root        *Group
	layers      []*Layer
	mergedAlpha bool
	imageData   []byte

	image     func() (*image.NRGBA, error)
	thumbnail func() (image.Image, error)
}

// Parse reads the document structure from buf. Pixel data and derived layer
// properties are left undecoded until first use.
func Parse(buf []byte) (*Document, error) {
	r := newReader(buf)

	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{Header: h}

	// color mode data
	if _, err := r.section(false); err != nil {
		return nil, fmt.Errorf("color mode data: %w", err)
	}

	res, err := r.section(false)
	if err != nil {
		return nil, fmt.Errorf("image resources: %w", err)
	}

	doc.resources, err = readResources(res)
	if err != nil {
		return nil, fmt.Errorf("image resources: %w", err)
	}

	lm, err := r.section(h.PSB())
	if err != nil {
		return nil, fmt.Errorf("layer and mask information: %w", err)
	}

	records, mergedAlpha, err := readLayerInfo(lm, h)
	if err != nil {
		return nil, fmt.Errorf("layer information: %w", err)
	}

	doc.mergedAlpha = mergedAlpha

	if err := doc.buildTree(records); err != nil {
		return nil, err
	}

	compression, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("image data: %w", err)
	}

	if !Compression(compression).valid() {
		return nil, fmt.Errorf("%w: image data uses method %d", ErrUnsupportedCompression, compression)
	}

	doc.imageData = r.buf[r.pos-2:]
	doc.image = onceValues(doc.decodeImage)
	doc.thumbnail = onceValues(doc.decodeThumbnail)

	return doc, nil
}

// ParseEager parses buf and evaluates the properties of every node before
// returning. Pixel data stays deferred.
func ParseEager(buf []byte) (*Document, error) {
	doc, err := Parse(buf)
	if err != nil {
		return nil, err
	}

	for _, n := range doc.Descendants() {
		n.Export()
	}

	return doc, nil
}

func readHeader(r *reader) (Header, error) {
	var h Header

	b, err := r.bytes(headerSize)
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}

	if !bytes.Equal(b[:4], []byte(signature)) {
		return h, ErrInvalidSignature
	}

	hr := newReader(b[4:])
	version, _ := hr.u16()
	_ = hr.skip(6)
	channels, _ := hr.u16()
	height, _ := hr.u32()
	width, _ := hr.u32()
	depth, _ := hr.u16()
	mode, _ := hr.u16()

	h = Header{
		Version:   int(version),
		Channels:  int(channels),
		Width:     int(width),
		Height:    int(height),
		Depth:     int(depth),
		ColorMode: ColorMode(mode),
	}

	limit := maxPSD

	switch h.Version {
	case 1:
	case 2:
		limit = maxPSB
	default:
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	if h.Width < 1 || h.Height < 1 || h.Width > limit || h.Height > limit {
		return h, fmt.Errorf("%w: dimensions %dx%d", ErrCorrupt, h.Width, h.Height)
	}

	if h.Depth != 8 {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedDepth, h.Depth)
	}

	if h.ColorMode != RGB && h.ColorMode != Grayscale {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedColorMode, h.ColorMode)
	}

	if h.Channels < h.ColorMode.colorChannels() || h.Channels > maxChannels {
		return h, fmt.Errorf("%w: %d channels for color mode %d", ErrCorrupt, h.Channels, h.ColorMode)
	}

	return h, nil
}

func readResources(r *reader) (map[uint16][]byte, error) {
	res := map[uint16][]byte{}

	for r.remaining() > 0 {
		sig, err := r.bytes(4)
		if err != nil {
			return nil, err
		}

		if string(sig) != "8BIM" {
			return nil, fmt.Errorf("%w: resource signature %q", ErrCorrupt, sig)
		}

		id, err := r.u16()
		if err != nil {
			return nil, err
		}

		if _, err := r.pascal(2); err != nil {
			return nil, err
		}

		n, err := r.u32()
		if err != nil {
			return nil, err
		}

		data, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}

		if n%2 == 1 && r.remaining() > 0 {
			_ = r.skip(1)
		}

		res[id] = data
	}

	return res, nil
}

// Width returns the canvas width in pixels.
func (d *Document) Width() int { return d.Header.Width }

// Height returns the canvas height in pixels.
func (d *Document) Height() int { return d.Header.Height }

// Children returns the top-level nodes in paint order, bottom first.
func (d *Document) Children() []Node { return d.root.children }

// Layers returns every pixel layer in paint order. Groups are not included.
func (d *Document) Layers() []*Layer { return d.layers }

// Descendants returns every node of the tree, parents before children.
func (d *Document) Descendants() []Node {
	var out []Node

	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			out = append(out, n)
			if g, ok := n.(*Group); ok {
				walk(g.children)
			}
		}
	}
	walk(d.root.children)

	return out
}

// Resource returns the raw image resource block with the given ID.
func (d *Document) Resource(id uint16) ([]byte, bool) {
	b, ok := d.resources[id]

	return b, ok
}

// Image returns the merged image stored in the document. It is decoded on
// the first call and cached; callers must not modify it.
func (d *Document) Image() (*image.NRGBA, error) {
	return d.image()
}

// Thumbnail returns the embedded JPEG thumbnail, or nil if the document has
// none.
func (d *Document) Thumbnail() (image.Image, error) {
	return d.thumbnail()
}

func (d *Document) decodeImage() (*image.NRGBA, error) {
	h := d.Header
	n := h.ColorMode.colorChannels()

	r := newReader(d.imageData)
	compression, _ := r.u16()

	// the row table of RLE data covers every channel, so all are decoded
	planes, err := decodePlanes(Compression(compression), r.buf[r.pos:], h.Channels, h.Width, h.Height, h.PSB())
	if err != nil {
		return nil, fmt.Errorf("image data: %w", err)
	}

	// extra channels are only transparency when the layer count says so
	var a []byte
	if d.mergedAlpha && h.Channels > n {
		a = planes[n]
	}

	return toNRGBA(h.ColorMode, image.Rect(0, 0, h.Width, h.Height), planes[:n], a), nil
}

// onceValues is sync.OnceValues without the locking; documents are not safe
// for concurrent use.
func onceValues[T any](f func() (T, error)) func() (T, error) {
	var (
		done bool
		v    T
		err  error
	)

	return func() (T, error) {
		if !done {
			v, err = f()
			done = true
		}

		return v, err
	}
}

func onceValue[T any](f func() T) func() T {
	g := onceValues(func() (T, error) { return f(), nil })

	return func() T {
		v, _ := g()

		return v
	}
}
