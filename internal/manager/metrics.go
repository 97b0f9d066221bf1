package manager

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	loads        *prometheus.CounterVec
	loadFailures *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	unloads      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	genDuration  *prometheus.HistogramVec
	resident     *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "loads_total",
			Help: "Successful model loads by language and rung.",
		}, []string{"language", "rung"}),
		loadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "load_failures_total",
			Help: "Failed load attempts by language and rung.",
		}, []string{"language", "rung"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "evictions_total",
			Help: "Models unloaded to make room for another language.",
		}, []string{"language"}),
		unloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "unloads_total",
			Help: "Completed unloads by language and reason.",
		}, []string{"language", "reason"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "generation_fallbacks_total",
			Help: "Generations retried on the safe path.",
		}, []string{"language"}),
		genDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "generation_duration_seconds",
			Help:    "Generation latency by language and outcome.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"language", "outcome"}),
		resident: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codebuddy", Subsystem: "manager", Name: "resident",
			Help: "1 when the language model is resident.",
		}, []string{"language"}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.loadFailures, m.evictions, m.unloads, m.fallbacks, m.genDuration, m.resident)
	}
	return m
}
