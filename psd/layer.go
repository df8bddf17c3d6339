package psd

import (
	"encoding/binary"
	"fmt"
	"image"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Section divider types stored in the lsct and lsdk blocks.
const (
	dividerNone = iota
	dividerOpenFolder
	dividerClosedFolder
	dividerBounding
)

const flagHidden = 0x02

// Keys whose additional layer info uses a 64-bit length in PSB files.
var wideInfoKeys = map[string]bool{
	"LMsk": true, "Lr16": true, "Lr32": true, "Layr": true, "Mt16": true,
	"Mt32": true, "Mtrn": true, "Alph": true, "FMsk": true, "lnk2": true,
	"FEid": true, "FXid": true, "PxSD": true,
}

var blendModes = map[string]string{
	"pass": "pass through",
	"norm": "normal",
	"diss": "dissolve",
	"dark": "darken",
	"mul ": "multiply",
	"idiv": "color burn",
	"lbrn": "linear burn",
	"dkCl": "darker color",
	"lite": "lighten",
	"scrn": "screen",
	"div ": "color dodge",
	"lddg": "linear dodge",
	"lgCl": "lighter color",
	"over": "overlay",
	"sLit": "soft light",
	"hLit": "hard light",
	"vLit": "vivid light",
	"lLit": "linear light",
	"pLit": "pin light",
	"hMix": "hard mix",
	"diff": "difference",
	"smud": "exclusion",
	"fsub": "subtract",
	"fdiv": "divide",
	"hue ": "hue",
	"sat ": "saturation",
	"colr": "color",
	"lum ": "luminosity",
}

type channel struct {
	id          int16
	length      int
	compression Compression
	data        []byte
}

type record struct {
	rect     image.Rectangle
	channels []channel
	blendKey string
	opacity  uint8
	clipping bool
	flags    uint8
	rawName  []byte
	info     map[string][]byte
}

func (rec *record) divider() int {
	b, ok := rec.info["lsct"]
	if !ok {
		b, ok = rec.info["lsdk"]
	}

	if !ok || len(b) < 4 {
		return dividerNone
	}

	return int(binary.BigEndian.Uint32(b))
}

func readLayerInfo(r *reader, h Header) ([]*record, bool, error) {
	wide := h.PSB()

	if r.remaining() == 0 {
		return nil, false, nil
	}

	li, err := r.section(wide)
	if err != nil {
		return nil, false, err
	}

	if li.remaining() == 0 {
		return nil, false, nil
	}

	count, err := li.i16()
	if err != nil {
		return nil, false, err
	}

	mergedAlpha := count < 0
	if count < 0 {
		count = -count
	}

	records := make([]*record, 0, count)

	for i := 0; i < int(count); i++ {
		rec, err := readRecord(li, h)
		if err != nil {
			return nil, false, fmt.Errorf("layer record %d: %w", i, err)
		}

		records = append(records, rec)
	}

	for i, rec := range records {
		for j := range rec.channels {
			c := &rec.channels[j]
			if c.length < 2 {
				return nil, false, fmt.Errorf("%w: layer %d channel %d has length %d", ErrCorrupt, i, c.id, c.length)
			}

			compression, err := li.u16()
			if err != nil {
				return nil, false, fmt.Errorf("layer %d channel %d: %w", i, c.id, err)
			}

			c.compression = Compression(compression)
			if !c.compression.valid() {
				return nil, false, fmt.Errorf("%w: layer %d channel %d uses method %d", ErrUnsupportedCompression, i, c.id, compression)
			}

			if c.data, err = li.bytes(c.length - 2); err != nil {
				return nil, false, fmt.Errorf("layer %d channel %d: %w", i, c.id, err)
			}
		}
	}

	return records, mergedAlpha, nil
}

func readRecord(r *reader, h Header) (*record, error) {
	wide := h.PSB()

	var rect [4]int32

	for i := range rect {
		v, err := r.i32()
		if err != nil {
			return nil, err
		}

		rect[i] = v
	}

	limit := int64(maxPSD)
	if wide {
		limit = maxPSB
	}

	// top, left, bottom, right
	height := int64(rect[2]) - int64(rect[0])
	width := int64(rect[3]) - int64(rect[1])

	if width < 0 || height < 0 || width > limit || height > limit {
		return nil, fmt.Errorf("%w: layer rectangle %dx%d", ErrCorrupt, width, height)
	}

	rec := &record{
		rect: image.Rect(int(rect[1]), int(rect[0]), int(rect[3]), int(rect[2])),
		info: map[string][]byte{},
	}

	n, err := r.u16()
	if err != nil {
		return nil, err
	}

	if n > maxChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrCorrupt, n)
	}

	rec.channels = make([]channel, n)
	for i := range rec.channels {
		id, err := r.i16()
		if err != nil {
			return nil, err
		}

		length, err := r.length(wide)
		if err != nil {
			return nil, err
		}

		rec.channels[i] = channel{id: id, length: length}
	}

	sig, err := r.bytes(4)
	if err != nil {
		return nil, err
	}

	if string(sig) != "8BIM" {
		return nil, fmt.Errorf("%w: blend mode signature %q", ErrCorrupt, sig)
	}

	key, err := r.bytes(4)
	if err != nil {
		return nil, err
	}

	rec.blendKey = string(key)

	if rec.opacity, err = r.u8(); err != nil {
		return nil, err
	}

	clipping, err := r.u8()
	if err != nil {
		return nil, err
	}

	rec.clipping = clipping != 0

	if rec.flags, err = r.u8(); err != nil {
		return nil, err
	}

	if err := r.skip(1); err != nil {
		return nil, err
	}

	extra, err := r.section(false)
	if err != nil {
		return nil, err
	}

	// layer mask data and blending ranges
	for i := 0; i < 2; i++ {
		if _, err := extra.section(false); err != nil {
			return nil, err
		}
	}

	if rec.rawName, err = extra.pascal(4); err != nil {
		return nil, err
	}

	for extra.remaining() >= 12 {
		sig, _ := extra.bytes(4)
		if s := string(sig); s != "8BIM" && s != "8B64" {
			return nil, fmt.Errorf("%w: additional info signature %q", ErrCorrupt, sig)
		}

		key, _ := extra.bytes(4)

		data, err := extra.section(wide && wideInfoKeys[string(key)])
		if err != nil {
			return nil, err
		}

		rec.info[string(key)] = data.buf
	}

	return rec, nil
}

func (d *Document) buildTree(records []*record) error {
	d.root = &Group{}
	stack := []*Group{d.root}

	for _, rec := range records {
		top := stack[len(stack)-1]

		switch rec.divider() {
		case dividerBounding:
			stack = append(stack, &Group{})
		case dividerOpenFolder, dividerClosedFolder:
			if len(stack) == 1 {
				return fmt.Errorf("%w: group without a bounding divider", ErrMalformedTree)
			}

			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			top.init(rec, parent, d.root)
			parent.children = append(parent.children, top)
		default:
			l := &Layer{doc: d}
			l.init(rec, top, d.root)
			top.children = append(top.children, l)
			d.layers = append(d.layers, l)
		}
	}

	if len(stack) != 1 {
		return fmt.Errorf("%w: %d groups left open", ErrMalformedTree, len(stack)-1)
	}

	return nil
}

// Node is a layer or a group in the document tree.
type Node interface {
	// Name returns the layer name, preferring the Unicode name block.
	Name() string
	// Parent returns the enclosing group, or nil at the top level.
	Parent() *Group
	// Visible reports whether the node and all its ancestors are shown.
	Visible() bool
	// Export evaluates and returns every descriptive property.
	Export() Properties
}

type Properties struct {
	Kind      string
	Name      string
	Visible   bool
	Hidden    bool
	Opacity   float64
	BlendMode string
	Clipping  bool
	Bounds    image.Rectangle
	Children  int
}

// node holds the lazily evaluated properties shared by layers and groups.
type node struct {
	rec    *record
	parent *Group

	name      func() string
	blendMode func() string
	visible   func() bool
}

func (n *node) init(rec *record, parent, root *Group) {
	n.rec = rec
	if parent != root {
		n.parent = parent
	}

	n.name = onceValue(rec.decodeName)
	n.blendMode = onceValue(rec.decodeBlendMode)
	n.visible = onceValue(func() bool {
		if rec.flags&flagHidden != 0 {
			return false
		}

		return n.parent == nil || n.parent.Visible()
	})
}

func (n *node) Name() string      { return n.name() }
func (n *node) Parent() *Group    { return n.parent }
func (n *node) Visible() bool     { return n.visible() }
func (n *node) BlendMode() string { return n.blendMode() }

// Opacity returns the node's own opacity in [0, 1].
func (n *node) Opacity() float64 { return float64(n.rec.opacity) / 255 }

func (n *node) properties(kind string) Properties {
	return Properties{
		Kind:      kind,
		Name:      n.Name(),
		Visible:   n.Visible(),
		Hidden:    n.rec.flags&flagHidden != 0,
		Opacity:   n.Opacity(),
		BlendMode: n.BlendMode(),
		Clipping:  n.rec.clipping,
		Bounds:    n.rec.rect,
	}
}

// effectiveAlpha multiplies the node's opacity with every ancestor's.
func (n *node) effectiveAlpha() uint8 {
	a := uint32(n.rec.opacity)
	for g := n.parent; g != nil; g = g.parent {
		a = a * uint32(g.rec.opacity) / 255
	}

	return uint8(a)
}

func (rec *record) decodeName() string {
	if b, ok := rec.info["luni"]; ok && len(b) >= 4 {
		n := int(binary.BigEndian.Uint32(b))
		if 4+2*n <= len(b) {
			dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
			if s, err := dec.Bytes(b[4 : 4+2*n]); err == nil {
				return strings.TrimRight(string(s), "\x00")
			}
		}
	}

	s, err := charmap.Macintosh.NewDecoder().Bytes(rec.rawName)
	if err != nil {
		return string(rec.rawName)
	}

	return string(s)
}

func (rec *record) decodeBlendMode() string {
	if name, ok := blendModes[rec.blendKey]; ok {
		return name
	}

	return strings.TrimSpace(rec.blendKey)
}

// Group is a layer folder.
type Group struct {
	node
	children []Node
}

// Children returns the nodes inside the group in paint order, bottom first.
func (g *Group) Children() []Node { return g.children }

// Open reports whether the folder is expanded in the layers panel.
func (g *Group) Open() bool { return g.rec.divider() == dividerOpenFolder }

func (g *Group) Export() Properties {
	p := g.properties("group")
	p.Children = len(g.children)

	return p
}

// Layer is a pixel layer.
type Layer struct {
	node
	doc   *Document
	image func() (*image.NRGBA, error)
}

func (l *Layer) init(rec *record, parent, root *Group) {
	l.node.init(rec, parent, root)
	l.image = onceValues(l.decodeImage)
}

// Bounds returns the layer rectangle in canvas coordinates.
func (l *Layer) Bounds() image.Rectangle { return l.rec.rect }

func (l *Layer) Export() Properties {
	return l.properties("layer")
}

// Image returns the layer's own pixels positioned at Bounds. It is decoded on
// the first call and cached; callers must not modify it.
func (l *Layer) Image() (*image.NRGBA, error) {
	return l.image()
}

// Composite decodes a fresh copy of the layer pixels, with the layer opacity
// multiplied into the alpha channel when applyOpacity is set. It neither
// reads nor fills the cache behind Image.
func (l *Layer) Composite(applyOpacity bool) (*image.NRGBA, error) {
	img, err := l.decodeImage()
	if err != nil {
		return nil, err
	}

	a := l.effectiveAlpha()
	if !applyOpacity || a == 255 {
		return img, nil
	}

	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(uint16(img.Pix[i]) * uint16(a) / 255)
	}

	return img, nil
}

func (l *Layer) decodeImage() (*image.NRGBA, error) {
	rect := l.rec.rect
	if rect.Empty() {
		return image.NewNRGBA(rect), nil
	}

	mode := l.doc.Header.ColorMode
	planes := make([][]byte, mode.colorChannels())

	var alpha []byte

	for _, c := range l.rec.channels {
		if c.id >= int16(len(planes)) || c.id < -1 {
			continue
		}

		p, err := decodePlanes(c.compression, c.data, 1, rect.Dx(), rect.Dy(), l.doc.Header.PSB())
		if err != nil {
			return nil, fmt.Errorf("layer %q channel %d: %w", l.Name(), c.id, err)
		}

		if c.id == -1 {
			alpha = p[0]
		} else {
			planes[c.id] = p[0]
		}
	}

	for i, p := range planes {
		if p == nil {
			return nil, fmt.Errorf("%w: layer %q has no channel %d", ErrCorrupt, l.Name(), i)
		}
	}

	return toNRGBA(mode, rect, planes, alpha), nil
}
