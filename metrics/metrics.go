// Package metrics exposes the switch's runtime counters and gauges to
// Prometheus, following the client_golang usage the retrieval pack's
// rdma_exporter collector demonstrates: one registry, metrics registered
// up front, mutated from the components that own the underlying state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the switch emits. A nil *Registry is safe
// to use: every method becomes a no-op, so components don't need a
// metrics-enabled/disabled branch at every call site.
type Registry struct {
	reg *prometheus.Registry

	ConnectedPorts    prometheus.Gauge
	BoundVppbs        prometheus.Gauge
	CommittedDecoders prometheus.Gauge
	MailboxCommands   *prometheus.CounterVec // label: opcode
	CciCommands       *prometheus.CounterVec // labels: opcode, return_code
}

// NewRegistry builds and registers every metric against a fresh
// prometheus.Registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		ConnectedPorts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cxlswitch",
			Name:      "connected_ports",
			Help:      "Number of physical ports with an active connection.",
		}),
		BoundVppbs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cxlswitch",
			Name:      "bound_vppbs",
			Help:      "Number of virtual PCI-to-PCI bridges currently bound.",
		}),
		CommittedDecoders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cxlswitch",
			Name:      "committed_hdm_decoders",
			Help:      "Number of committed HDM decoder slots across all ports.",
		}),
		MailboxCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cxlswitch",
			Name:      "mailbox_commands_total",
			Help:      "CXL mailbox commands processed, by opcode.",
		}, []string{"opcode"}),
		CciCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cxlswitch",
			Name:      "cci_commands_total",
			Help:      "CCI/FM-API commands processed, by opcode and return code.",
		}, []string{"opcode", "return_code"}),
	}
	reg.MustRegister(r.ConnectedPorts, r.BoundVppbs, r.CommittedDecoders, r.MailboxCommands, r.CciCommands)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP handler
// (promhttp.HandlerFor) to scrape. Returns nil for a nil Registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.reg
}

// IncMailboxCommand records one processed mailbox command.
func (r *Registry) IncMailboxCommand(opcode string) {
	if r == nil {
		return
	}
	r.MailboxCommands.WithLabelValues(opcode).Inc()
}

// IncCciCommand records one processed CCI command and its outcome.
func (r *Registry) IncCciCommand(opcode, returnCode string) {
	if r == nil {
		return
	}
	r.CciCommands.WithLabelValues(opcode, returnCode).Inc()
}

// SetConnectedPorts updates the connected-port gauge.
func (r *Registry) SetConnectedPorts(n int) {
	if r == nil {
		return
	}
	r.ConnectedPorts.Set(float64(n))
}

// SetBoundVppbs updates the bound-vPPB gauge.
func (r *Registry) SetBoundVppbs(n int) {
	if r == nil {
		return
	}
	r.BoundVppbs.Set(float64(n))
}

// SetCommittedDecoders updates the committed-HDM-decoder gauge.
func (r *Registry) SetCommittedDecoders(n int) {
	if r == nil {
		return
	}
	r.CommittedDecoders.Set(float64(n))
}
