package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the voicenotes backend.
type Metrics struct {
	// Ingestion pipeline
	IngestionsStarted   prometheus.Counter
	IngestionsCompleted prometheus.Counter
	IngestionsFailed    prometheus.Counter
	IngestionsRejected  prometheus.Counter
	TranscodeDuration   prometheus.Histogram
	TranscribeDuration  prometheus.Histogram

	// Transcription client
	TranscriptionRetries prometheus.Counter

	// Extraction engine
	TasksExtracted    prometheus.Counter
	StickiesGenerated prometheus.Counter
	FarFutureDueDates prometheus.Counter
	DomainsMerged     prometheus.Counter
}

// NewMetrics registers all collectors on the given registerer. Passing a
// fresh registry keeps parallel test packages from colliding.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_ingestions_started_total",
			Help: "Total number of ingestion records created",
		}),
		IngestionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_ingestions_completed_total",
			Help: "Total number of ingestions that reached completed",
		}),
		IngestionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_ingestions_failed_total",
			Help: "Total number of ingestions that reached failed",
		}),
		IngestionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_ingestions_rejected_total",
			Help: "Total number of uploads rejected before transcoding (size/duration ceiling)",
		}),
		TranscodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicenotes_transcode_duration_seconds",
			Help:    "Wall time spent transcoding one upload",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		TranscribeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicenotes_transcribe_duration_seconds",
			Help:    "Wall time spent in the hosted transcription call",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),
		TasksExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_tasks_extracted_total",
			Help: "Total number of task items produced by extraction",
		}),
		StickiesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_stickies_generated_total",
			Help: "Total number of learning stickies generated",
		}),
		FarFutureDueDates: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_far_future_due_dates_total",
			Help: "Due dates parsed more than two years out (accepted but flagged)",
		}),
		DomainsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicenotes_domains_merged_total",
			Help: "Sticky domains merged into an existing label at generation time",
		}),
	}
}
