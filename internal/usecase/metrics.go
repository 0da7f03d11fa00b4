package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordingsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarizer_recordings_total",
		Help: "Recording events handled, by outcome",
	}, []string{"status"})
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "summarizer_processing_duration_seconds",
		Help:    "Time taken from admission to completion of a recording",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
	degradedNotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summarizer_degraded_notes_total",
		Help: "Notes published with an error payload instead of a summary",
	})
	completionMarkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summarizer_completion_mark_failures_total",
		Help: "Published recordings whose completion could not be recorded",
	})
	uploadURLsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploader_signed_urls_issued_total",
		Help: "Signed upload URLs issued",
	})
)
