package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess   ResultLabel = "success"
	ResultRecovered ResultLabel = "recovered" // failed but swallowed (scripts)
	ResultFailed    ResultLabel = "failed"
	ResultCanceled  ResultLabel = "canceled"
)

// Recorder defines observability hooks for tasks, watch triggers and live reload.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	IncWatchTrigger(binding string)
	IncReload(kind string)
	AddImagesProcessed(written, skipped int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) IncWatchTrigger(string)                    {}
func (NoopRecorder) IncReload(string)                          {}
func (NoopRecorder) AddImagesProcessed(int, int)               {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
