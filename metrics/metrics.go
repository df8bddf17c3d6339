// Package metrics exports benchmark measurements in the Prometheus text
// format so a node_exporter textfile collector can pick them up.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/hamzali/psdbench"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "psdbench"

// Phase label values.
const (
	PhaseParse       = "parse"
	PhaseImageRender = "image_render"
	PhaseLayerRender = "layer_render"
)

type Metrics struct {
	registry *prometheus.Registry

	// PhaseDuration holds the last measured duration of a phase.
	// Labels: decoder, file, apply_opacity, phase
	PhaseDuration *prometheus.GaugeVec

	// MeasurementsTotal counts recorded measurements.
	// Labels: decoder
	MeasurementsTotal *prometheus.CounterVec
}

// New builds the collectors on a private registry so repeated runs in one
// process never collide with the default one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PhaseDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "phase_duration_milliseconds",
				Help:      "Duration of a decoding phase in milliseconds.",
			},
			[]string{"decoder", "file", "apply_opacity", "phase"},
		),
		MeasurementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "measurements_total",
				Help:      "Number of measurements taken.",
			},
			[]string{"decoder"},
		),
	}
}

// Record implements psdbench.Sink.
func (m *Metrics) Record(measurement psdbench.Measurement) error {
	m.MeasurementsTotal.WithLabelValues(measurement.Decoder).Inc()

	phases := map[string]float64{
		PhaseParse:       measurement.Result.ParseTime,
		PhaseImageRender: measurement.Result.ImageRenderTime,
		PhaseLayerRender: measurement.Result.LayerRenderTime,
	}

	opacity := strconv.FormatBool(measurement.Options.ApplyOpacity)

	for phase, ms := range phases {
		m.PhaseDuration.WithLabelValues(measurement.Decoder, measurement.File, opacity, phase).Set(ms)
	}

	return nil
}

func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	return nil
}
