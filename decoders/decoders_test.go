package decoders_test

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/decoders"
	"github.com/hamzali/psdbench/psd/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(t *testing.T) *psdbench.Registry {
	t.Helper()

	r := psdbench.NewRegistry()
	require.NoError(t, decoders.Register(r))

	return r
}

func minimal() []byte {
	return synth.New(16, 16).
		RLE(true).
		Thumbnail(image.NewRGBA(image.Rect(0, 0, 4, 4))).
		Layer(synth.Layer{Name: "base", Rect: image.Rect(0, 0, 16, 16), Fill: color.NRGBA{R: 0xff, A: 0xff}}).
		BeginGroup().
		Layer(synth.Layer{Name: "dot", Rect: image.Rect(4, 4, 8, 8), Fill: color.NRGBA{G: 0xff, A: 0xff}, Opacity: 100}).
		EndGroup(synth.Group{Name: "group"}).
		Bytes()
}

func assertFinite(t *testing.T, r psdbench.BenchmarkResult) {
	t.Helper()

	for _, v := range []float64{r.ParseTime, r.ImageRenderTime, r.LayerRenderTime} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%v is not finite", v)
	}
}

func separable(d psdbench.Decoder) bool {
	_, ok := d.(psdbench.SeparableDecoder)

	return ok
}

func TestRegister(t *testing.T) {
	r := registry(t)

	assert.Equal(t, []string{"composite", "flags", "lazy", "oov"}, r.Names())
	assert.ErrorIs(t, decoders.Register(r), psdbench.ErrDuplicateDecoder)
}

func TestMeasureValidDocument(t *testing.T) {
	r := registry(t)
	buf := minimal()

	for _, name := range r.Names() {
		for _, applyOpacity := range []bool{false, true} {
			d, err := r.New(name, psdbench.Options{ApplyOpacity: applyOpacity})
			require.NoError(t, err)

			res, err := psdbench.Measure(d, buf)
			require.NoError(t, err, name)

			assertFinite(t, res)
			assert.GreaterOrEqual(t, res.ParseTime, 0.0, name)

			if separable(d) {
				assert.GreaterOrEqual(t, res.ImageRenderTime, 0.0, name)
				assert.GreaterOrEqual(t, res.LayerRenderTime, 0.0, name)
			}
		}
	}
}

func TestMeasureDoesNotMutateBuffer(t *testing.T) {
	r := registry(t)
	buf := minimal()
	orig := bytes.Clone(buf)

	for _, name := range r.Names() {
		d, err := r.New(name, psdbench.Options{ApplyOpacity: true})
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err := psdbench.Measure(d, buf)
			require.NoError(t, err, name)
		}

		assert.Equal(t, orig, buf, name)
	}
}

func TestMeasureWithoutLayers(t *testing.T) {
	r := registry(t)
	buf := synth.New(8, 8).Bytes()

	for _, name := range r.Names() {
		d, err := r.New(name, psdbench.Options{})
		require.NoError(t, err)

		res, err := psdbench.Measure(d, buf)
		require.NoError(t, err, name)
		assertFinite(t, res)

		if separable(d) {
			assert.GreaterOrEqual(t, res.LayerRenderTime, 0.0, name)
			assert.Less(t, res.LayerRenderTime, 100.0, name)
		}
	}
}

func TestMeasureMalformed(t *testing.T) {
	r := registry(t)
	valid := minimal()

	tt := []struct {
		name string
		buf  []byte
	}{
		{"truncated header", valid[:12]},
		{"corrupted signature", append([]byte("XXXX"), valid[4:]...)},
	}

	for _, tc := range tt {
		for _, name := range r.Names() {
			t.Run(tc.name+"/"+name, func(t *testing.T) {
				d, err := r.New(name, psdbench.Options{})
				require.NoError(t, err)

				res, err := psdbench.Measure(d, tc.buf)
				assert.Error(t, err)
				assert.Equal(t, psdbench.BenchmarkResult{}, res)
			})
		}
	}
}

func TestLazyRendersOnlyLayers(t *testing.T) {
	d := decoders.NewLazy(psdbench.Options{}).(psdbench.SeparableDecoder)

	doc, err := d.Parse(minimal())
	require.NoError(t, err)

	tr, ok := doc.(psdbench.Traverser)
	require.True(t, ok)
	require.NoError(t, tr.ForceFullTraversal())

	imgs, err := doc.RenderEachLayer()
	require.NoError(t, err)
	assert.Len(t, imgs, 2)
}

func TestCompositeHonorsOpacity(t *testing.T) {
	buf := minimal()

	for _, tc := range []struct {
		applyOpacity bool
		alpha        uint8
	}{
		{false, 0xff},
		{true, 100},
	} {
		d := decoders.NewComposite(psdbench.Options{ApplyOpacity: tc.applyOpacity}).(psdbench.SeparableDecoder)

		doc, err := d.Parse(buf)
		require.NoError(t, err)

		_, ok := doc.(psdbench.Traverser)
		assert.False(t, ok, "eager documents need no traversal")

		imgs, err := doc.RenderEachLayer()
		require.NoError(t, err)
		require.Len(t, imgs, 2)

		dot, ok := imgs[1].(*image.NRGBA)
		require.True(t, ok)
		assert.Equal(t, tc.alpha, dot.NRGBAAt(5, 5).A)
	}
}

func TestCompositeLayerPhaseDecodesLayers(t *testing.T) {
	b := synth.New(512, 512).Compress(synth.ZIP)
	for i := 0; i < 8; i++ {
		b.Layer(synth.Layer{
			Name: "full",
			Rect: image.Rect(0, 0, 512, 512),
			Fill: color.NRGBA{R: uint8(i * 30), G: 0x80, A: 0xff},
		})
	}

	buf := b.Bytes()
	r := registry(t)

	lazy, err := r.New(decoders.LazyName, psdbench.Options{})
	require.NoError(t, err)

	composite, err := r.New(decoders.CompositeName, psdbench.Options{})
	require.NoError(t, err)

	lazyResult, err := psdbench.Measure(lazy, buf)
	require.NoError(t, err)

	compositeResult, err := psdbench.Measure(composite, buf)
	require.NoError(t, err)

	// both decode every layer in the layer phase, so the times are of the
	// same order
	assert.Greater(t, compositeResult.LayerRenderTime, lazyResult.LayerRenderTime/10)
}
