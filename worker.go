package psdbench

// StartWorker starts the measurement goroutine and returns its job and
// result channels. There is exactly one worker so that no two measurements
// ever overlap. The result channel is closed once the job channel is closed
// and drained.
func StartWorker(measure func(j Job) (BenchmarkResult, error)) (chan Job, chan Measurement) {
	jobs := make(chan Job)
	result := make(chan Measurement)

	go func() {
		defer close(result)

		for j := range jobs {
			r, err := measure(j)
			if err != nil {
				r = BenchmarkResult{}
			}

			result <- Measurement{
				Job:    j,
				Result: r,
				Error:  err,
			}
		}
	}()

	return jobs, result
}
