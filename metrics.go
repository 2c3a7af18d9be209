package stripefile

import "github.com/prometheus/client_golang/prometheus"

// MergeMetrics counts merge outcomes. All methods are nil-safe so the merge
// path never has to branch on whether monitoring is wired up.
type MergeMetrics struct {
	FilesAccepted    prometheus.Counter
	FilesRejected    prometheus.Counter
	StripesCopied    prometheus.Counter
	BytesCopied      prometheus.Counter
	MergesCommitted  prometheus.Counter
	MergesRolledBack prometheus.Counter
}

func NewMergeMetrics(reg prometheus.Registerer) *MergeMetrics {
	m := &MergeMetrics{
		FilesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stripefile",
			Subsystem: "merge",
			Name:      "files_accepted_total",
			Help:      "Input files admitted into a merged output.",
		}),
		FilesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stripefile",
			Subsystem: "merge",
			Name:      "files_rejected_total",
			Help:      "Input files skipped for format or compatibility reasons.",
		}),
		StripesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stripefile",
			Subsystem: "merge",
			Name:      "stripes_copied_total",
			Help:      "Stripes copied verbatim into merged outputs.",
		}),
		BytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stripefile",
			Subsystem: "merge",
			Name:      "bytes_copied_total",
			Help:      "Stripe bytes copied verbatim into merged outputs.",
		}),
		MergesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stripefile",
			Subsystem: "merge",
			Name:      "committed_total",
			Help:      "Merges that committed an output file.",
		}),
		MergesRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stripefile",
			Subsystem: "merge",
			Name:      "rolled_back_total",
			Help:      "Merges that failed and removed their partial output.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FilesAccepted, m.FilesRejected, m.StripesCopied,
			m.BytesCopied, m.MergesCommitted, m.MergesRolledBack)
	}
	return m
}

func (m *MergeMetrics) fileAccepted() {
	if m != nil {
		m.FilesAccepted.Inc()
	}
}

func (m *MergeMetrics) fileRejected() {
	if m != nil {
		m.FilesRejected.Inc()
	}
}

func (m *MergeMetrics) stripeCopied(bytes int64) {
	if m != nil {
		m.StripesCopied.Inc()
		m.BytesCopied.Add(float64(bytes))
	}
}

func (m *MergeMetrics) committed() {
	if m != nil {
		m.MergesCommitted.Inc()
	}
}

func (m *MergeMetrics) rolledBack() {
	if m != nil {
		m.MergesRolledBack.Inc()
	}
}
