package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
)

// PrometheusSink exports scraper progress via Prometheus. It owns the
// collectors for scrapers started/completed/running and per-scraper artifact
// outcomes.
type PrometheusSink struct {
	scrapersStarted   prometheus.Counter
	scrapersCompleted *prometheus.CounterVec
	scrapersRunning   prometheus.Gauge
	artifacts         *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		scrapersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jdkdb_scrapers_started_total",
			Help: "Total scrapers that have started.",
		}),
		scrapersCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jdkdb_scrapers_completed_total",
			Help: "Total scrapers finished partitioned by result.",
		}, []string{"result"}),
		scrapersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jdkdb_scrapers_running",
			Help: "Current number of running scrapers.",
		}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jdkdb_artifacts_total",
			Help: "Artifacts handled partitioned by scraper and outcome.",
		}, []string{"scraper", "outcome"}),
	}
	for _, collector := range []prometheus.Collector{
		s.scrapersStarted,
		s.scrapersCompleted,
		s.scrapersRunning,
		s.artifacts,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindStarted:
			s.scrapersStarted.Inc()
			s.scrapersRunning.Inc()
		case progress.KindCompleted:
			s.scrapersCompleted.WithLabelValues("success").Inc()
			s.scrapersRunning.Dec()
		case progress.KindFailed:
			s.scrapersCompleted.WithLabelValues("failure").Inc()
			s.scrapersRunning.Dec()
		case progress.KindProcessed:
			s.artifacts.WithLabelValues(evt.Source, "processed").Inc()
		case progress.KindSkipped:
			s.artifacts.WithLabelValues(evt.Source, "skipped").Inc()
		case progress.KindAssetFailed:
			s.artifacts.WithLabelValues(evt.Source, "failed").Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
