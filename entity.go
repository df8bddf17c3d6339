package psdbench

// BenchmarkResult holds the elapsed wall-clock time of each phase in
// milliseconds. Render times produced by subtraction can be slightly
// negative; that is measurement noise, not a real cost.
type BenchmarkResult struct {
	ParseTime       float64 `json:"parseTime"`
	ImageRenderTime float64 `json:"imageRenderTime"`
	LayerRenderTime float64 `json:"layerRenderTime"`
}

// Options is the configuration handed to every decoder factory.
type Options struct {
	ApplyOpacity bool `json:"applyOpacity"`
}

// Job is one decoder run against one loaded document.
type Job struct {
	RunID   string  `json:"runId"`
	File    string  `json:"file"`
	Decoder string  `json:"decoder"`
	Options Options `json:"options"`
}

type Measurement struct {
	Job
	Result BenchmarkResult `json:"result"`
	Error  error           `json:"-"`
}

// Report is everything collected from a run, in completion order.
type Report struct {
	Measurements []Measurement `json:"measurements"`
	FailedCount  int           `json:"failedCount"`
}
