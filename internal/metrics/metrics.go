// Package metrics exposes console and Wi-Fi event counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics are the wifictl counters.
type Metrics struct {
	Commands  *prometheus.CounterVec // labels: command, status
	Events    *prometheus.CounterVec // labels: event
	Connected prometheus.Gauge
	Requests  *prometheus.CounterVec // labels: method, result
}

// New registers and returns the wifictl metrics. A nil registry yields
// metrics that are counted but never exported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wifictl_commands_total",
			Help: "Console commands dispatched, by command and exit status.",
		}, []string{"command", "status"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wifictl_wifi_events_total",
			Help: "Asynchronous Wi-Fi stack events handled.",
		}, []string{"event"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wifictl_sta_connected",
			Help: "1 while the station holds an IP address.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wifictl_device_requests_total",
			Help: "Requests sent to the device agent, by method and result.",
		}, []string{"method", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.Events, m.Connected, m.Requests)
	}
	return m
}

// Serve runs the metrics HTTP endpoint until the server fails.
func Serve(addr, path string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))
	return http.ListenAndServe(addr, mux)
}
