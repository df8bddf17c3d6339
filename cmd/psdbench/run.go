package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/conf"
	"github.com/hamzali/psdbench/database"
	"github.com/hamzali/psdbench/decoders"
	"github.com/hamzali/psdbench/metrics"
	"github.com/spf13/cobra"
)

var errNoJobs = errors.New("nothing to benchmark, pass files or --plan")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Measure parse and render times of every decoder on every file",
	}

	flags := conf.NewFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		config, err := flags.Load()
		if err != nil {
			return err
		}

		config.Files = append(config.Files, args...)
		logger := newLogger(cmd.ErrOrStderr(), config.Debug)

		return run(cmd.Context(), cmd.OutOrStdout(), logger, config)
	}

	return cmd
}

func planJobs(runID string, config *conf.Config, errCh chan error) ([]psdbench.Job, int, error) {
	if config.Plan == "" {
		opts := psdbench.Options{ApplyOpacity: config.ApplyOpacity}

		return psdbench.CrossJobs(runID, config.Files, config.Decoders, opts), 0, nil
	}

	reader, err := psdbench.ReadCsv(config.Plan)
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	return psdbench.ProcessCsv(reader, runID, errCh)
}

func openSinks(config *conf.Config) ([]psdbench.Sink, func() error, *metrics.Metrics, error) {
	var sinks []psdbench.Sink

	closeFn := func() error { return nil }

	if config.Store.Driver != "" {
		db, err := database.New(config.Store.Driver, config.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}

		sinks = append(sinks, db)
		closeFn = db.Close
	}

	var m *metrics.Metrics

	if config.MetricsFile != "" {
		m = metrics.New()
		sinks = append(sinks, m)
	}

	return sinks, closeFn, m, nil
}

func run(ctx context.Context, out io.Writer, logger *slog.Logger, config *conf.Config) error {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	errCh := make(chan error)
	errDone := make(chan struct{})

	go func() {
		defer close(errDone)

		for err := range errCh {
			logger.Error("benchmark error", "error", err)
		}
	}()

	defer func() {
		close(errCh)
		<-errDone
	}()

	jobs, parseFailure, err := planJobs(runID, config, errCh)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		return errNoJobs
	}

	// every file is in memory before the first timer starts
	docs, err := psdbench.LoadDocuments(ctx, psdbench.Files(jobs), config.LoadWorkers)
	if err != nil {
		return err
	}

	registry := psdbench.NewRegistry()
	if err := decoders.Register(registry); err != nil {
		return err
	}

	sinks, closeSinks, m, err := openSinks(config)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSinks(); err != nil {
			logger.Error("closing result store", "error", err)
		}
	}()

	logger.Info("measuring", "jobs", len(jobs), "files", len(docs))

	jobCh, result := psdbench.StartWorker(func(j psdbench.Job) (psdbench.BenchmarkResult, error) {
		d, err := registry.New(j.Decoder, j.Options)
		if err != nil {
			return psdbench.BenchmarkResult{}, err
		}

		logger.Debug("measure", "decoder", j.Decoder, "file", j.File)

		return psdbench.Measure(d, docs[j.File])
	})

	reportCh := make(chan psdbench.Report)
	go psdbench.CollectResult(errCh, result, reportCh, sinks...)

	for _, j := range jobs {
		jobCh <- j
	}

	close(jobCh)

	report := <-reportCh

	if config.Format == "json" {
		err = psdbench.FormatJSON(out, report)
	} else {
		_, err = fmt.Fprint(out, psdbench.FormatTable(parseFailure, report))
	}

	if err != nil {
		return err
	}

	if config.Chart != "" {
		if err := writeChart(config.Chart, runID, report); err != nil {
			return err
		}
	}

	if m != nil {
		if err := m.WriteTextfile(config.MetricsFile); err != nil {
			return err
		}
	}

	return nil
}

func writeChart(path, runID string, report psdbench.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create chart: %w", err)
	}

	err = psdbench.RenderChart(f, "psdbench "+runID, report)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	return err
}
