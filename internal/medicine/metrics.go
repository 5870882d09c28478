package medicine

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "medistore"

// StoreMetrics counts storage outcomes that never reach the client. A nil
// *StoreMetrics is valid and records nothing.
type StoreMetrics struct {
	LoadFallbacks prometheus.Counter
	SaveFailures  prometheus.Counter
	Records       prometheus.Gauge
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		LoadFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "medicine_store_load_fallbacks_total",
			Help:      "Loads that fell back to an empty collection because the document was unreadable or invalid",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "medicine_store_save_failures_total",
			Help:      "Saves that failed after the client was told the mutation succeeded",
		}),
		Records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "medicine_records",
			Help:      "Number of records seen by the most recent load or save",
		}),
	}

	reg.MustRegister(m.LoadFallbacks, m.SaveFailures, m.Records)
	return m
}

func (m *StoreMetrics) loadFallback() {
	if m != nil {
		m.LoadFallbacks.Inc()
	}
}

func (m *StoreMetrics) saveFailure() {
	if m != nil {
		m.SaveFailures.Inc()
	}
}

func (m *StoreMetrics) records(n int) {
	if m != nil {
		m.Records.Set(float64(n))
	}
}
