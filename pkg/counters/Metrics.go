package counters

import "sync"

import "github.com/prometheus/client_golang/prometheus"


//=========================================== Prometheus Mirrors


var registerOnce sync.Once

var (
	ModuleStateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "module_state",
		Help: "Consensus module state code",
	})

	ClusterRoleGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "role",
		Help: "0 follower, 1 candidate, 2 leader",
	})

	CommitPositionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "commit_position",
		Help: "Highest log position replicated to a quorum",
	})

	SnapshotCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "snapshots_total",
		Help: "Total snapshots taken by this member",
	})

	TimedOutClientGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "timed_out_clients_total",
		Help: "Total client sessions closed for inactivity",
	})

	InvalidRequestGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "invalid_requests_total",
		Help: "Total malformed or unauthorized ingress requests",
	})

	ErrorCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cluster",
		Name: "errors_total",
		Help: "Total recoverable errors observed by the agent",
	})
)

/*
	register mirrors into the default registry, idempotent so tests creating
	multiple agents in one process do not panic on re-registration
*/

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ModuleStateGauge)
		prometheus.MustRegister(ClusterRoleGauge)
		prometheus.MustRegister(CommitPositionGauge)
		prometheus.MustRegister(SnapshotCountGauge)
		prometheus.MustRegister(TimedOutClientGauge)
		prometheus.MustRegister(InvalidRequestGauge)
		prometheus.MustRegister(ErrorCountGauge)
	})
}
