package psd_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/hamzali/psdbench/psd"
	"github.com/hamzali/psdbench/psd/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

func sample(rle bool) []byte {
	return synth.New(8, 6).
		RLE(rle).
		Merged(color.NRGBA{R: 10, G: 20, B: 30, A: 0xff}).
		Layer(synth.Layer{Name: "Background", Rect: image.Rect(0, 0, 8, 6), Fill: red}).
		BeginGroup().
		Layer(synth.Layer{Name: "Ébauche", Rect: image.Rect(2, 1, 5, 4), Fill: blue, Opacity: 128}).
		Layer(synth.Layer{Name: "empty"}).
		EndGroup(synth.Group{Name: "folder"}).
		Bytes()
}

func TestParse(t *testing.T) {
	tt := []struct {
		name string
		rle  bool
	}{
		{"raw channels", false},
		{"rle channels", true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := psd.Parse(sample(tc.rle))
			require.NoError(t, err)

			assert.Equal(t, 8, doc.Width())
			assert.Equal(t, 6, doc.Height())
			assert.Equal(t, psd.RGB, doc.Header.ColorMode)
			require.Len(t, doc.Layers(), 3)
			require.Len(t, doc.Children(), 2)
			assert.Len(t, doc.Descendants(), 4)

			bg := doc.Layers()[0]
			assert.Equal(t, "Background", bg.Name())
			assert.Nil(t, bg.Parent())

			img, err := bg.Image()
			require.NoError(t, err)
			assert.Equal(t, red, img.NRGBAAt(7, 5))

			inner := doc.Layers()[1]
			assert.Equal(t, "Ébauche", inner.Name())
			require.NotNil(t, inner.Parent())
			assert.Equal(t, "folder", inner.Parent().Name())
			assert.Equal(t, image.Rect(2, 1, 5, 4), inner.Bounds())

			img, err = inner.Image()
			require.NoError(t, err)
			assert.Equal(t, blue, img.NRGBAAt(2, 1))

			empty, err := doc.Layers()[2].Image()
			require.NoError(t, err)
			assert.True(t, empty.Rect.Empty())

			merged, err := doc.Image()
			require.NoError(t, err)
			assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 0xff}, merged.NRGBAAt(0, 0))
		})
	}
}

func TestExport(t *testing.T) {
	doc, err := psd.Parse(sample(false))
	require.NoError(t, err)

	group, ok := doc.Children()[1].(*psd.Group)
	require.True(t, ok)

	p := group.Export()
	assert.Equal(t, "group", p.Kind)
	assert.Equal(t, "folder", p.Name)
	assert.Equal(t, 2, p.Children)
	assert.True(t, group.Open())

	p = doc.Layers()[1].Export()
	assert.Equal(t, "layer", p.Kind)
	assert.Equal(t, "normal", p.BlendMode)
	assert.InDelta(t, 128.0/255, p.Opacity, 1e-9)
	assert.True(t, p.Visible)
}

func TestVisibilityFollowsGroups(t *testing.T) {
	buf := synth.New(4, 4).
		BeginGroup().
		Layer(synth.Layer{Name: "inside", Rect: image.Rect(0, 0, 4, 4), Fill: red}).
		EndGroup(synth.Group{Name: "hidden folder", Hidden: true}).
		Layer(synth.Layer{Name: "off", Rect: image.Rect(0, 0, 4, 4), Fill: blue, Hidden: true}).
		Bytes()

	doc, err := psd.Parse(buf)
	require.NoError(t, err)
	require.Len(t, doc.Layers(), 2)

	assert.False(t, doc.Layers()[0].Visible())
	assert.False(t, doc.Layers()[1].Visible())

	img, err := doc.Composite(true)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, img.NRGBAAt(1, 1))
}

func TestComposite(t *testing.T) {
	buf := synth.New(2, 2).
		Layer(synth.Layer{Name: "half", Rect: image.Rect(0, 0, 2, 2), Fill: red, Opacity: 128}).
		Bytes()

	doc, err := psd.Parse(buf)
	require.NoError(t, err)

	img, err := doc.Composite(true)
	require.NoError(t, err)
	assert.Equal(t, uint8(128), img.NRGBAAt(0, 0).A)

	img, err = doc.Composite(false)
	require.NoError(t, err)
	assert.Equal(t, red, img.NRGBAAt(1, 1))

	layer := doc.Layers()[0]

	img, err = layer.Composite(true)
	require.NoError(t, err)
	assert.Equal(t, uint8(128), img.NRGBAAt(0, 0).A)

	own, err := layer.Image()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xff), own.NRGBAAt(0, 0).A, "applying opacity must not touch the cached image")
}

func TestCompositeWithoutLayers(t *testing.T) {
	doc, err := psd.Parse(synth.New(3, 3).Merged(blue).Bytes())
	require.NoError(t, err)
	assert.Empty(t, doc.Layers())

	img, err := doc.Composite(true)
	require.NoError(t, err)
	assert.Equal(t, blue, img.NRGBAAt(2, 2))
}

func TestThumbnail(t *testing.T) {
	doc, err := psd.Parse(synth.New(4, 4).Bytes())
	require.NoError(t, err)

	thumb, err := doc.Thumbnail()
	require.NoError(t, err)
	assert.Nil(t, thumb)

	doc, err = psd.Parse(synth.New(4, 4).Thumbnail(image.NewRGBA(image.Rect(0, 0, 3, 2))).Bytes())
	require.NoError(t, err)

	thumb, err = doc.Thumbnail()
	require.NoError(t, err)
	require.NotNil(t, thumb)
	assert.Equal(t, image.Rect(0, 0, 3, 2), thumb.Bounds())
}

func TestDecode(t *testing.T) {
	buf := synth.New(4, 4).
		Thumbnail(image.NewRGBA(image.Rect(0, 0, 2, 2))).
		Layer(synth.Layer{Name: "a", Rect: image.Rect(0, 0, 4, 4), Fill: red}).
		Bytes()

	d, err := psd.Decode(buf, psd.DecodeOptions{SkipMergedImage: true, SkipLayerImage: true, SkipThumbnail: true})
	require.NoError(t, err)
	assert.Nil(t, d.Image)
	assert.Nil(t, d.LayerImages)
	assert.Nil(t, d.Thumbnail)

	d, err = psd.Decode(buf, psd.DecodeOptions{})
	require.NoError(t, err)
	assert.NotNil(t, d.Image)
	assert.Len(t, d.LayerImages, 1)
	assert.NotNil(t, d.Thumbnail)
}

func TestParseErrors(t *testing.T) {
	valid := sample(true)

	badVersion := bytes.Clone(valid)
	badVersion[5] = 9

	badDepth := bytes.Clone(valid)
	badDepth[23] = 16

	tt := []struct {
		name string
		buf  []byte
		err  error
	}{
		{"empty", nil, psd.ErrTruncated},
		{"truncated header", valid[:10], psd.ErrTruncated},
		{"bad signature", append([]byte("8BPX"), valid[4:]...), psd.ErrInvalidSignature},
		{"bad version", badVersion, psd.ErrUnsupportedVersion},
		{"bad depth", badDepth, psd.ErrUnsupportedDepth},
		{"truncated layers", valid[:60], psd.ErrTruncated},
		{"group without divider", synth.New(2, 2).EndGroup(synth.Group{Name: "x"}).Bytes(), psd.ErrMalformedTree},
		{"group left open", synth.New(2, 2).BeginGroup().Bytes(), psd.ErrMalformedTree},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := psd.Parse(tc.buf)
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, doc)
		})
	}
}

func TestParseDoesNotMutateInput(t *testing.T) {
	buf := sample(true)
	orig := bytes.Clone(buf)

	d, err := psd.Decode(buf, psd.DecodeOptions{})
	require.NoError(t, err)

	_, err = d.Document.Composite(true)
	require.NoError(t, err)

	assert.Equal(t, orig, buf)
}

func TestLayerCompositeDecodesFreshPixels(t *testing.T) {
	doc, err := psd.Parse(sample(true))
	require.NoError(t, err)

	_, err = doc.Composite(false)
	require.NoError(t, err)

	layer := doc.Layers()[0]

	first, err := layer.Composite(false)
	require.NoError(t, err)

	second, err := layer.Composite(false)
	require.NoError(t, err)

	cached, err := layer.Image()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotSame(t, cached, first)
	assert.Equal(t, cached.Pix, first.Pix)
}

func TestChannelFormats(t *testing.T) {
	fill := color.NRGBA{R: 200, G: 100, B: 50, A: 0xff}
	merged := color.NRGBA{R: 10, G: 120, B: 240, A: 0xff}

	tt := []struct {
		name        string
		compression synth.Compression
		psb         bool
		gray        bool
	}{
		{"raw", synth.Raw, false, false},
		{"rle", synth.RLE, false, false},
		{"zip", synth.ZIP, false, false},
		{"zip prediction", synth.ZIPPrediction, false, false},
		{"psb raw", synth.Raw, true, false},
		{"psb rle", synth.RLE, true, false},
		{"psb zip prediction", synth.ZIPPrediction, true, false},
		{"gray rle", synth.RLE, false, true},
		{"gray zip", synth.ZIP, false, true},
		{"gray psb rle", synth.RLE, true, true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			buf := synth.New(300, 5).
				Compress(tc.compression).
				PSB(tc.psb).
				Grayscale(tc.gray).
				Merged(merged).
				Layer(synth.Layer{Name: "wide", Rect: image.Rect(0, 0, 300, 5), Fill: fill}).
				BeginGroup().
				Layer(synth.Layer{Name: "small", Rect: image.Rect(3, 1, 7, 4), Fill: blue}).
				EndGroup(synth.Group{Name: "g"}).
				Bytes()

			doc, err := psd.Parse(buf)
			require.NoError(t, err)
			assert.Equal(t, tc.psb, doc.Header.PSB())
			require.Len(t, doc.Layers(), 2)
			assert.Equal(t, "small", doc.Layers()[1].Name())

			want := func(c color.NRGBA) color.NRGBA {
				if !tc.gray {
					return c
				}

				l := synth.Luma(c)

				return color.NRGBA{R: l, G: l, B: l, A: c.A}
			}

			img, err := doc.Layers()[0].Image()
			require.NoError(t, err)
			assert.Equal(t, want(fill), img.NRGBAAt(299, 4))

			img, err = doc.Layers()[1].Image()
			require.NoError(t, err)
			assert.Equal(t, want(blue), img.NRGBAAt(6, 3))

			img, err = doc.Image()
			require.NoError(t, err)
			assert.Equal(t, want(merged), img.NRGBAAt(150, 2))
		})
	}
}

func TestMergedAlpha(t *testing.T) {
	translucent := color.NRGBA{R: 1, G: 2, B: 3, A: 100}

	doc, err := psd.Parse(synth.New(4, 4).
		MergedAlpha(true).
		Merged(translucent).
		Layer(synth.Layer{Name: "a", Rect: image.Rect(0, 0, 4, 4), Fill: red}).
		Bytes())
	require.NoError(t, err)

	img, err := doc.Image()
	require.NoError(t, err)
	assert.Equal(t, translucent, img.NRGBAAt(3, 3))

	// without layers nothing flags the extra channel as transparency
	doc, err = psd.Parse(synth.New(4, 4).MergedAlpha(true).Merged(translucent).Bytes())
	require.NoError(t, err)

	img, err = doc.Image()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 0xff}, img.NRGBAAt(0, 0))
}

func TestParseRejectsOversizedLayer(t *testing.T) {
	buf := synth.New(4, 4).
		Compress(synth.ZIP).
		Layer(synth.Layer{Name: "a", Rect: image.Rect(0, 0, 4, 4), Fill: red}).
		Bytes()

	// the first layer rectangle follows the header, three section lengths,
	// the layer info length and the layer count
	const rectOffset = 26 + 4 + 4 + 4 + 4 + 2

	binary.BigEndian.PutUint32(buf[rectOffset+8:], 0x40000000)
	binary.BigEndian.PutUint32(buf[rectOffset+12:], 0x40000000)

	doc, err := psd.Parse(buf)
	assert.ErrorIs(t, err, psd.ErrCorrupt)
	assert.Nil(t, doc)
}
