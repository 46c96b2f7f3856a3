package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry           *prometheus.Registry
	CapturesTotal      prometheus.Counter
	ExtractionsTotal   prometheus.Counter
	FileRequestsTotal  *prometheus.CounterVec
	ProbeTotal         *prometheus.CounterVec
	ExportsTotal       *prometheus.CounterVec
	ShutdownStepErrors *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		CapturesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxdown",
			Name:      "captures_total",
			Help:      "Total credential sessions recorded from intercepted traffic",
		}),
		ExtractionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxdown",
			Name:      "extractions_total",
			Help:      "Total extraction runs over the capture log",
		}),
		FileRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxdown",
			Name:      "fileserver_requests_total",
			Help:      "Asset server requests by response status",
		}, []string{"status"}),
		ProbeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxdown",
			Name:      "probe_total",
			Help:      "Interception liveness probe results",
		}, []string{"result"}),
		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxdown",
			Name:      "exports_total",
			Help:      "Article PDF export attempts by result",
		}, []string{"result"}),
		ShutdownStepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxdown",
			Name:      "shutdown_step_errors_total",
			Help:      "Teardown step failures by step",
		}, []string{"step"}),
	}
	r.MustRegister(m.CapturesTotal, m.ExtractionsTotal, m.FileRequestsTotal, m.ProbeTotal, m.ExportsTotal, m.ShutdownStepErrors)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
