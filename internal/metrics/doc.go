// Package metrics records task and live-reload observations.
//
// Components receive a Recorder through their constructors. NoopRecorder is the default so
// one-shot CLI runs pay nothing; the dev server swaps in a PrometheusRecorder and serves the
// registry on /metrics.
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	site, _ := site.New(cfg, site.WithRecorder(rec))
package metrics
