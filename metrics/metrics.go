// Package metrics exposes the supervision counters through Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minerd"

type Metrics struct {
	launches      *prometheus.CounterVec
	startFailures *prometheus.CounterVec
	exits         *prometheus.CounterVec
	running       *prometheus.GaugeVec
	lastExitCode  *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Number of miner launch attempts.",
		}, []string{"miner"}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_failures_total",
			Help:      "Number of miner launches which failed to start.",
		}, []string{"miner"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Number of miner exits by exit code.",
		}, []string{"miner", "code"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the miner process is alive.",
		}, []string{"miner"}),
		lastExitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_exit_code",
			Help:      "Exit code of the last miner exit, -1 when killed by a signal.",
		}, []string{"miner"}),
	}
	reg.MustRegister(m.launches, m.startFailures, m.exits, m.running, m.lastExitCode)
	return m
}

func (m *Metrics) Launched(miner string) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(miner).Inc()
	m.running.WithLabelValues(miner).Set(1)
}

func (m *Metrics) StartFailed(miner string) {
	if m == nil {
		return
	}
	m.startFailures.WithLabelValues(miner).Inc()
	m.running.WithLabelValues(miner).Set(0)
}

func (m *Metrics) Exited(miner string, code int) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(miner, strconv.Itoa(code)).Inc()
	m.lastExitCode.WithLabelValues(miner).Set(float64(code))
	m.running.WithLabelValues(miner).Set(0)
}
