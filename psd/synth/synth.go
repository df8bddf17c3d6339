// Package synth writes small but complete layered documents. Every layer is
// a solid color, which keeps files tiny while still exercising each section
// of the format.
package synth

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Section divider types written to lsct blocks.
const (
	openFolder = 1
	bounding   = 3
)

// Compression methods for channel data.
type Compression uint16

const (
	Raw Compression = iota
	RLE
	ZIP
	ZIPPrediction
)

type Layer struct {
	Name    string
	Rect    image.Rectangle
	Fill    color.NRGBA
	Opacity uint8
	Hidden  bool
}

type Group struct {
	Name    string
	Opacity uint8
	Hidden  bool
}

type record struct {
	Layer
	divider int
}

// Builder accumulates layers in paint order, bottom first.
type Builder struct {
	width, height int
	compression   Compression
	psb           bool
	gray          bool
	mergedAlpha   bool
	merged        color.NRGBA
	thumbnail     []byte
	records       []record
}

func New(width, height int) *Builder {
	return &Builder{
		width:  width,
		height: height,
		merged: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	}
}

// RLE switches channel data from raw to PackBits compression.
func (b *Builder) RLE(on bool) *Builder {
	if on {
		return b.Compress(RLE)
	}

	return b.Compress(Raw)
}

// Compress sets the compression of every channel, merged image included.
func (b *Builder) Compress(c Compression) *Builder {
	b.compression = c

	return b
}

// PSB writes the large document format with 64-bit section lengths.
func (b *Builder) PSB(on bool) *Builder {
	b.psb = on

	return b
}

// Grayscale writes a single color channel holding the luma of each fill.
func (b *Builder) Grayscale(on bool) *Builder {
	b.gray = on

	return b
}

// MergedAlpha stores the alpha of the merged color as an extra channel and
// flags it as transparency with a negative layer count. The flag needs at
// least one layer.
func (b *Builder) MergedAlpha(on bool) *Builder {
	b.mergedAlpha = on

	return b
}

// Merged sets the color of the stored merged image.
func (b *Builder) Merged(c color.NRGBA) *Builder {
	b.merged = c

	return b
}

// Thumbnail embeds img as a JPEG thumbnail resource.
func (b *Builder) Thumbnail(img image.Image) *Builder {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}

	bounds := img.Bounds()
	rowBytes := (bounds.Dx()*24 + 31) / 32 * 4

	var data bytes.Buffer
	be(&data, uint32(1), uint32(bounds.Dx()), uint32(bounds.Dy()), uint32(rowBytes),
		uint32(rowBytes*bounds.Dy()), uint32(buf.Len()), uint16(24), uint16(1))
	data.Write(buf.Bytes())
	b.thumbnail = data.Bytes()

	return b
}

// Layer adds a solid layer. A zero Opacity is written as fully opaque.
func (b *Builder) Layer(l Layer) *Builder {
	if l.Opacity == 0 {
		l.Opacity = 0xff
	}

	b.records = append(b.records, record{Layer: l})

	return b
}

// BeginGroup opens a group; layers added until the matching EndGroup go
// inside it.
func (b *Builder) BeginGroup() *Builder {
	b.records = append(b.records, record{
		Layer:   Layer{Name: "</Layer group>", Opacity: 0xff, Hidden: true},
		divider: bounding,
	})

	return b
}

// EndGroup closes the innermost group. A zero Opacity is written as fully
// opaque.
func (b *Builder) EndGroup(g Group) *Builder {
	if g.Opacity == 0 {
		g.Opacity = 0xff
	}

	b.records = append(b.records, record{
		Layer:   Layer{Name: g.Name, Opacity: g.Opacity, Hidden: g.Hidden},
		divider: openFolder,
	})

	return b
}

// Bytes encodes the document.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer

	version, mode := uint16(1), uint16(3)
	if b.psb {
		version = 2
	}

	if b.gray {
		mode = 1
	}

	merged := b.colorPlanes(b.merged)
	if b.mergedAlpha {
		merged = append(merged, b.merged.A)
	}

	out.WriteString("8BPS")
	be(&out, version, [6]byte{}, uint16(len(merged)), uint32(b.height), uint32(b.width), uint16(8), mode)

	// color mode data
	be(&out, uint32(0))

	var res bytes.Buffer
	if b.thumbnail != nil {
		res.WriteString("8BIM")
		be(&res, uint16(1036), uint16(0), uint32(len(b.thumbnail)))
		res.Write(b.thumbnail)

		if len(b.thumbnail)%2 == 1 {
			res.WriteByte(0)
		}
	}

	be(&out, uint32(res.Len()))
	out.Write(res.Bytes())

	if len(b.records) == 0 {
		b.length(&out, 0)
	} else {
		li := b.layerInfo()
		lenSize := 4
		if b.psb {
			lenSize = 8
		}

		b.length(&out, lenSize+len(li)+4)
		b.length(&out, len(li))
		out.Write(li)
		// global layer mask info
		be(&out, uint32(0))
	}

	planes := make([][]byte, len(merged))
	for i, v := range merged {
		planes[i] = bytes.Repeat([]byte{v}, b.width*b.height)
	}

	out.Write(b.encode(planes, b.width, b.height))

	return out.Bytes()
}

// colorPlanes returns the color channel values of c in channel order.
func (b *Builder) colorPlanes(c color.NRGBA) []uint8 {
	if b.gray {
		return []uint8{Luma(c)}
	}

	return []uint8{c.R, c.G, c.B}
}

// Luma is the gray value written for c in grayscale documents.
func Luma(c color.NRGBA) uint8 {
	return color.GrayModel.Convert(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}).(color.Gray).Y
}

// length writes a section length, 64 bits wide in PSB.
func (b *Builder) length(w *bytes.Buffer, n int) {
	if b.psb {
		be(w, uint64(n))

		return
	}

	be(w, uint32(n))
}

func (b *Builder) layerInfo() []byte {
	var recs, data bytes.Buffer

	for _, r := range b.records {
		w, h := r.Rect.Dx(), r.Rect.Dy()

		fill := append([]uint8{r.Fill.A}, b.colorPlanes(r.Fill)...)
		ids := []int16{-1, 0, 1, 2}[:len(fill)]

		be(&recs, int32(r.Rect.Min.Y), int32(r.Rect.Min.X), int32(r.Rect.Max.Y), int32(r.Rect.Max.X), uint16(len(ids)))

		for i, id := range ids {
			var ch []byte
			if w > 0 && h > 0 {
				ch = b.encode([][]byte{bytes.Repeat([]byte{fill[i]}, w*h)}, w, h)
			} else {
				ch = []byte{0, 0}
			}

			be(&recs, id)
			b.length(&recs, len(ch))
			data.Write(ch)
		}

		var flags uint8
		if r.Hidden {
			flags |= 0x02
		}

		recs.WriteString("8BIM")
		recs.WriteString("norm")
		be(&recs, r.Opacity, uint8(0), flags, uint8(0))

		var extra bytes.Buffer
		be(&extra, uint32(0), uint32(0))

		name := pascalName(r.Name)
		extra.WriteByte(uint8(len(name)))
		extra.Write(name)

		for (len(name)+1)%4 != 0 {
			extra.WriteByte(0)
			name = append(name, 0)
		}

		utf16, _ := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(r.Name))
		luni := new(bytes.Buffer)
		be(luni, uint32(len(utf16)/2))
		luni.Write(utf16)

		for luni.Len()%4 != 0 {
			luni.WriteByte(0)
		}

		additionalInfo(&extra, "luni", luni.Bytes())

		if r.divider != 0 {
			var lsct bytes.Buffer
			be(&lsct, uint32(r.divider))
			additionalInfo(&extra, "lsct", lsct.Bytes())
		}

		be(&recs, uint32(extra.Len()))
		recs.Write(extra.Bytes())
	}

	count := int16(len(b.records))
	if b.mergedAlpha {
		count = -count
	}

	var li bytes.Buffer
	be(&li, count)
	li.Write(recs.Bytes())
	li.Write(data.Bytes())

	if li.Len()%2 == 1 {
		li.WriteByte(0)
	}

	return li.Bytes()
}

// encode writes the compression method followed by the planes.
func (b *Builder) encode(planes [][]byte, w, h int) []byte {
	var out bytes.Buffer

	be(&out, uint16(b.compression))

	switch b.compression {
	case RLE:
		var rows bytes.Buffer

		for _, p := range planes {
			for y := 0; y < h; y++ {
				packed := PackBits(p[y*w : (y+1)*w])
				if b.psb {
					be(&out, uint32(len(packed)))
				} else {
					be(&out, uint16(len(packed)))
				}

				rows.Write(packed)
			}
		}

		out.Write(rows.Bytes())
	case ZIP, ZIPPrediction:
		zw := zlib.NewWriter(&out)

		for _, p := range planes {
			if b.compression == ZIPPrediction {
				p = delta(p, w)
			}

			_, _ = zw.Write(p)
		}

		_ = zw.Close()
	default:
		for _, p := range planes {
			out.Write(p)
		}
	}

	return out.Bytes()
}

// delta replaces every byte of each row with its difference to the byte on
// its left.
func delta(p []byte, w int) []byte {
	out := make([]byte, len(p))

	for row := 0; row+w <= len(p); row += w {
		out[row] = p[row]
		for x := 1; x < w; x++ {
			out[row+x] = p[row+x] - p[row+x-1]
		}
	}

	return out
}

// PackBits compresses src with the run-length scheme used by RLE channels.
func PackBits(src []byte) []byte {
	var out []byte

	for i := 0; i < len(src); {
		j := i + 1
		for j < len(src) && src[j] == src[i] && j-i < 128 {
			j++
		}

		if j-i >= 2 {
			out = append(out, byte(int8(1-(j-i))), src[i])
			i = j

			continue
		}

		j = i + 1
		for j < len(src) && j-i < 128 && (j+1 >= len(src) || src[j] != src[j+1]) {
			j++
		}

		out = append(out, byte(j-i-1))
		out = append(out, src[i:j]...)
		i = j
	}

	return out
}

func additionalInfo(w *bytes.Buffer, key string, data []byte) {
	w.WriteString("8BIM")
	w.WriteString(key)
	be(w, uint32(len(data)))
	w.Write(data)
}

func pascalName(s string) []byte {
	b, err := charmap.Macintosh.NewEncoder().Bytes([]byte(s))
	if err != nil {
		b = []byte("?")
	}

	if len(b) > 255 {
		b = b[:255]
	}

	return b
}

func be(w *bytes.Buffer, values ...any) {
	for _, v := range values {
		_ = binary.Write(w, binary.BigEndian, v)
	}
}
