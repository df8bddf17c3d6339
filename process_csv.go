package psdbench

import "io"

// ProcessCsv turns a plan into jobs. Rows that fail to parse are reported on
// errCh and counted.
func ProcessCsv(reader io.Reader, runID string, errCh chan error) ([]Job, int, error) {
	var jobs []Job

	parseFailure := 0

	err := ParseCsv(reader, func(err error, file, decoder string, opts Options) {
		if err != nil {
			errCh <- err
			parseFailure++

			return
		}

		jobs = append(jobs, Job{
			RunID:   runID,
			File:    file,
			Decoder: decoder,
			Options: opts,
		})
	})

	return jobs, parseFailure, err
}

// CrossJobs pairs every file with every decoder, files outermost.
func CrossJobs(runID string, files, decoders []string, opts Options) []Job {
	jobs := make([]Job, 0, len(files)*len(decoders))

	for _, f := range files {
		for _, d := range decoders {
			jobs = append(jobs, Job{RunID: runID, File: f, Decoder: d, Options: opts})
		}
	}

	return jobs
}

// Files returns the distinct files of jobs in first-seen order.
func Files(jobs []Job) []string {
	seen := map[string]bool{}

	var files []string

	for _, j := range jobs {
		if !seen[j.File] {
			seen[j.File] = true
			files = append(files, j.File)
		}
	}

	return files
}
