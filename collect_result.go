package psdbench

import "fmt"

// Sink receives every successful measurement once all measurements are done.
type Sink interface {
	Record(m Measurement) error
}

// CollectResult drains result into a Report. Nothing is recorded or reported
// until result is closed, so sinks and error handlers never run while a
// measurement is being timed. Failed measurements and sink errors are then
// forwarded to errCh.
func CollectResult(errCh chan error, result chan Measurement, reportCh chan Report, sinks ...Sink) {
	report := Report{Measurements: []Measurement{}}

	var failed []Measurement

	for m := range result {
		if m.Error != nil {
			failed = append(failed, m)

			continue
		}

		report.Measurements = append(report.Measurements, m)
	}

	report.FailedCount = len(failed)

	for _, m := range failed {
		errCh <- fmt.Errorf("%s on %s: %w", m.Decoder, m.File, m.Error)
	}

	for _, m := range report.Measurements {
		for _, s := range sinks {
			if err := s.Record(m); err != nil {
				errCh <- fmt.Errorf("record %s on %s: %w", m.Decoder, m.File, err)
			}
		}
	}

	reportCh <- report
}
