package services

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics zählt verarbeitete und übersprungene Dokumente sowie erzeugte Triplets.
type PipelineMetrics struct {
	Processed prometheus.Counter
	Skipped   *prometheus.CounterVec
	Triplets  prometheus.Counter
}

// NewPipelineMetrics registriert die Zähler bei reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "documents_processed_total",
			Help: "Total number of documents turned into section trees.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_skipped_total",
			Help: "Total number of documents skipped, by reason.",
		}, []string{"reason"}),
		Triplets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triplets_emitted_total",
			Help: "Total number of triplets produced by the flattener.",
		}),
	}
	reg.MustRegister(m.Processed, m.Skipped, m.Triplets)
	return m
}

func (m *PipelineMetrics) processed(triplets int) {
	if m == nil {
		return
	}
	m.Processed.Inc()
	m.Triplets.Add(float64(triplets))
}

func (m *PipelineMetrics) skipped(reason string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(reason).Inc()
}
