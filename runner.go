package psdbench

import (
	"errors"
	"time"
)

var ErrUnsupportedDecoder = errors.New("decoder is neither separable nor flag driven")

// Measure times d against buf using whichever method its capabilities allow.
// Decoder errors are returned as they are.
func Measure(d Decoder, buf []byte) (BenchmarkResult, error) {
	switch dec := d.(type) {
	case SeparableDecoder:
		return MeasureSeparable(dec, buf)
	case FlagDecoder:
		return MeasureSubtractive(dec, buf)
	default:
		return BenchmarkResult{}, ErrUnsupportedDecoder
	}
}

// MeasureSeparable times each phase directly. Lazily computed metadata is
// forced before the parse timer stops.
func MeasureSeparable(d SeparableDecoder, buf []byte) (BenchmarkResult, error) {
	parseBegin := time.Now()

	doc, err := d.Parse(buf)
	if err != nil {
		return BenchmarkResult{}, err
	}

	if t, ok := doc.(Traverser); ok {
		if err := t.ForceFullTraversal(); err != nil {
			return BenchmarkResult{}, err
		}
	}

	parseTime := elapsedMs(parseBegin)

	imageRenderBegin := time.Now()

	if _, err := doc.RenderMergedImage(); err != nil {
		return BenchmarkResult{}, err
	}

	imageRenderTime := elapsedMs(imageRenderBegin)

	layerRenderBegin := time.Now()

	if _, err := doc.RenderEachLayer(); err != nil {
		return BenchmarkResult{}, err
	}

	layerRenderTime := elapsedMs(layerRenderBegin)

	return BenchmarkResult{
		ParseTime:       parseTime,
		ImageRenderTime: imageRenderTime,
		LayerRenderTime: layerRenderTime,
	}, nil
}

// MeasureSubtractive decodes buf three times: once with every stage
// skipped, once with only the merged image and once with only the layers.
// Render times are the difference to the first run. This assumes parsing
// costs the same on every run, which warm caches can break; the results are
// estimates and may come out negative.
func MeasureSubtractive(d FlagDecoder, buf []byte) (BenchmarkResult, error) {
	parseBegin := time.Now()

	err := d.Decode(buf, DecodeFlags{SkipMergedImage: true, SkipLayerImage: true, SkipThumbnail: true})
	if err != nil {
		return BenchmarkResult{}, err
	}

	parseTime := elapsedMs(parseBegin)

	parseAndImageRenderBegin := time.Now()

	err = d.Decode(buf, DecodeFlags{SkipLayerImage: true, SkipThumbnail: true})
	if err != nil {
		return BenchmarkResult{}, err
	}

	parseAndImageRenderTime := elapsedMs(parseAndImageRenderBegin)

	parseAndLayerRenderBegin := time.Now()

	err = d.Decode(buf, DecodeFlags{SkipMergedImage: true, SkipThumbnail: true})
	if err != nil {
		return BenchmarkResult{}, err
	}

	parseAndLayerRenderTime := elapsedMs(parseAndLayerRenderBegin)

	return BenchmarkResult{
		ParseTime:       parseTime,
		ImageRenderTime: parseAndImageRenderTime - parseTime,
		LayerRenderTime: parseAndLayerRenderTime - parseTime,
	}, nil
}

func elapsedMs(begin time.Time) float64 {
	return float64(time.Since(begin)) / float64(time.Millisecond)
}
