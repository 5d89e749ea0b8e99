package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration  *prom.HistogramVec
	taskResults   *prom.CounterVec
	watchTriggers *prom.CounterVec
	reloads       *prom.CounterVec
	images        *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "assetpipe",
			Name:      "task_duration_seconds",
			Help:      "Duration of task runs",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetpipe",
			Name:      "task_results_total",
			Help:      "Task results by outcome",
		}, []string{"task", "result"}),
		watchTriggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetpipe",
			Name:      "watch_triggers_total",
			Help:      "File changes that triggered a watch binding",
		}, []string{"binding"}),
		reloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetpipe",
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload notifications by kind",
		}, []string{"kind"}),
		images: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetpipe",
			Name:      "images_processed_total",
			Help:      "Images written or skipped by the optimizer",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.watchTriggers, pr.reloads, pr.images)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchTrigger(binding string) {
	if p == nil {
		return
	}
	p.watchTriggers.WithLabelValues(binding).Inc()
}

func (p *PrometheusRecorder) IncReload(kind string) {
	if p == nil {
		return
	}
	p.reloads.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) AddImagesProcessed(written, skipped int) {
	if p == nil {
		return
	}
	p.images.WithLabelValues("written").Add(float64(written))
	p.images.WithLabelValues("skipped").Add(float64(skipped))
}
