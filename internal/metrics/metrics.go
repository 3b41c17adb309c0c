// Package metrics counts pipeline outcomes in a private Prometheus registry
// that can be dumped in the text exposition format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder struct {
	registry *prometheus.Registry

	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	recordsTotal     *prometheus.CounterVec
	findingsTotal    *prometheus.CounterVec
	catalogFoods     prometheus.Gauge
	mailFetched      *prometheus.CounterVec
	lastRun          prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutridoc_documents_total",
				Help: "Documents processed by detected type and final status",
			},
			[]string{"type", "status"},
		),
		documentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nutridoc_document_duration_seconds",
				Help:    "Time spent processing one document",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 6),
			},
			[]string{"type"},
		),
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutridoc_records_total",
				Help: "Records extracted by kind",
			},
			[]string{"kind"},
		),
		findingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutridoc_validation_findings_total",
				Help: "Validation findings by level",
			},
			[]string{"level"},
		),
		catalogFoods: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nutridoc_catalog_foods",
			Help: "Reference foods available to the matcher",
		}),
		mailFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutridoc_mail_messages_total",
				Help: "Mail messages fetched by provider",
			},
			[]string{"provider"},
		),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nutridoc_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveDocument(docType, status string, took time.Duration) {
	r.documentsTotal.WithLabelValues(docType, status).Inc()
	r.documentDuration.WithLabelValues(docType).Observe(took.Seconds())
}

func (r *Recorder) AddRecords(kind string, n int) {
	if n > 0 {
		r.recordsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func (r *Recorder) AddFindings(level string, n int) {
	if n > 0 {
		r.findingsTotal.WithLabelValues(level).Add(float64(n))
	}
}

func (r *Recorder) SetCatalogFoods(n int) { r.catalogFoods.Set(float64(n)) }

func (r *Recorder) AddMail(provider string, n int) {
	if n > 0 {
		r.mailFetched.WithLabelValues(provider).Add(float64(n))
	}
}

func (r *Recorder) MarkRun(at time.Time) { r.lastRun.Set(float64(at.Unix())) }

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
