// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's collectors. Construct with a dedicated
// registry in tests and prometheus.DefaultRegisterer in production.
type Metrics struct {
	RowsParsed         *prometheus.CounterVec
	RowErrors          *prometheus.CounterVec
	BatchesCommitted   prometheus.Counter
	Rollbacks          prometheus.Counter
	DuplicatesDetected prometheus.Counter
	ExpensesImported   prometheus.Counter
	ImportDuration     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RowsParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "rows_parsed_total",
			Help:      "Transactions successfully parsed from statement files.",
		}, []string{"file_type"}),
		RowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "row_errors_total",
			Help:      "Rows excluded during parsing with a row-level error.",
		}, []string{"file_type"}),
		BatchesCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "batches_committed_total",
			Help:      "Expense batches committed to the document store.",
		}),
		Rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "rollbacks_total",
			Help:      "Import sessions rolled back after a commit failure or cancellation.",
		}),
		DuplicatesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "duplicates_detected_total",
			Help:      "Transactions flagged as likely duplicates of existing expenses.",
		}),
		ExpensesImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "expenses_imported_total",
			Help:      "Expenses durably committed across all sessions.",
		}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "casaledger",
			Subsystem: "import",
			Name:      "commit_duration_seconds",
			Help:      "Wall time of the commit phase per session.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}
