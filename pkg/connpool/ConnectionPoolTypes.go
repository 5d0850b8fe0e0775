package connpool

import "sync"

import "github.com/prometheus/client_golang/prometheus"


type ConnectionPoolOpts struct {
	MinConn int
	MaxConn int
}

type ConnectionPool struct {
	connections sync.Map
	minConn int
	maxConn int
}

var registerOnce sync.Once

var (
	ConnDialCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cluster",
		Subsystem: "grpc_conn",
		Name: "dials_total",
		Help: "Total number of new gRPC connections dialed",
	})

	ConnReuseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cluster",
		Subsystem: "grpc_conn",
		Name: "reuse_total",
		Help: "Total number of gRPC connection reuses from the pool",
	})
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ConnDialCounter)
		prometheus.MustRegister(ConnReuseCounter)
	})
}
