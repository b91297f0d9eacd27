// Package metrics publishes the bridge's operational state as Prometheus
// series: cursor gauges, per-call chain-client latency, and relay job
// outcome counters, so an operator can watch the relay engine without
// tailing logs.
package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Direction names a relay direction, used to label job-outcome counters.
type Direction string

const (
	MainToSide        Direction = "main_to_side"
	SideToMain         Direction = "side_to_main"
	SideToMainRelay    Direction = "side_to_main_signatures"
)

// Outcome names one of the possible terminal results of a relay job's
// state machine.
type Outcome string

const (
	Signed         Outcome = "signed"
	AlreadySigned  Outcome = "already_signed"
	NotResponsible Outcome = "not_responsible"
	Relayed        Outcome = "relayed"
	AlreadyRelayed Outcome = "already_relayed"
)

// Metrics holds every series the bridge publishes. The zero value is not
// usable; construct with New and Register onto a prometheus.Registerer.
type Metrics struct {
	cursor            *prometheus.GaugeVec
	contractAddress   *prometheus.GaugeVec
	callLatency       *prometheus.HistogramVec
	jobOutcomes       *prometheus.CounterVec
}

// New constructs an unregistered Metrics. Call Register before use.
func New() *Metrics {
	return &Metrics{
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bridge",
			Name:      "cursor_block",
			Help:      "Highest block number each relay direction has confirmed through.",
		}, []string{"direction"}),
		contractAddress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bridge",
			Name:      "contract_deployed_at_block",
			Help:      "Block number each bridge contract was deployed at.",
		}, []string{"chain", "address"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bridge",
			Name:      "chain_call_duration_seconds",
			Help:      "Latency of individual chain-client RPC calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "method"}),
		jobOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "relay_job_outcomes_total",
			Help:      "Count of completed relay jobs by direction and outcome.",
		}, []string{"direction", "outcome"}),
	}
}

// Register adds every series in m to reg. Use a dedicated
// prometheus.Registry (not the global DefaultRegisterer) so tests can
// construct independent Metrics instances without collisions.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.cursor, m.contractAddress, m.callLatency, m.jobOutcomes} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetCursor records the high-water mark a direction's relay stream has
// advanced to.
func (m *Metrics) SetCursor(direction Direction, block uint64) {
	m.cursor.WithLabelValues(string(direction)).Set(float64(block))
}

// SetContractDeployedAtBlock records a contract's deployment block, keyed
// by chain name ("main"/"side") and address.
func (m *Metrics) SetContractDeployedAtBlock(chain string, address common.Address, block uint64) {
	m.contractAddress.WithLabelValues(chain, address.Hex()).Set(float64(block))
}

// ObserveCallLatency records how long one chain-client RPC took.
func (m *Metrics) ObserveCallLatency(chain, method string, d time.Duration) {
	m.callLatency.WithLabelValues(chain, method).Observe(d.Seconds())
}

// IncJobOutcome records one completed relay job's terminal outcome.
func (m *Metrics) IncJobOutcome(direction Direction, outcome Outcome) {
	m.jobOutcomes.WithLabelValues(string(direction), string(outcome)).Inc()
}
