// Package metrics wires the cluster's liveness transitions into
// Prometheus, giving partition.Recorder a production-grade implementation
// alongside the no-op default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements partition.Recorder and exposes a few cluster-wide
// gauges/counters a caller can register against a prometheus.Registerer.
type Recorder struct {
	deadTransitions  *prometheus.CounterVec
	aliveTransitions *prometheus.CounterVec
	partitionAlive   *prometheus.GaugeVec
}

// NewRecorder builds a Recorder with unregistered collectors; call
// MustRegister (or Register) to attach them to a registry.
func NewRecorder() *Recorder {
	return &Recorder{
		deadTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshfs",
			Subsystem: "partition",
			Name:      "dead_transitions_total",
			Help:      "Number of times a partition transitioned from alive to dead.",
		}, []string{"partition"}),
		aliveTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshfs",
			Subsystem: "partition",
			Name:      "alive_transitions_total",
			Help:      "Number of times a partition transitioned from dead to alive.",
		}, []string{"partition"}),
		partitionAlive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meshfs",
			Subsystem: "partition",
			Name:      "alive",
			Help:      "1 if the partition is currently believed alive, 0 otherwise.",
		}, []string{"partition"}),
	}
}

// MustRegister registers every collector with reg.
func (r *Recorder) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.deadTransitions, r.aliveTransitions, r.partitionAlive)
}

// PartitionDead implements partition.Recorder.
func (r *Recorder) PartitionDead(id string) {
	r.deadTransitions.WithLabelValues(id).Inc()
	r.partitionAlive.WithLabelValues(id).Set(0)
}

// PartitionAlive implements partition.Recorder.
func (r *Recorder) PartitionAlive(id string) {
	r.aliveTransitions.WithLabelValues(id).Inc()
	r.partitionAlive.WithLabelValues(id).Set(1)
}
