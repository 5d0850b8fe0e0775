package counters

import "github.com/prometheus/client_golang/prometheus"


type Counter struct {
	value int64
	gauge prometheus.Gauge
}

type ConsensusCounters struct {
	ModuleState         *Counter
	ClusterRole         *Counter
	CommitPosition      *Counter
	SnapshotCount       *Counter
	TimedOutClientCount *Counter
	InvalidRequestCount *Counter
	ErrorCount          *Counter
}

type ToggleAction int64

const (
	Inactive ToggleAction = iota - 1
	Neutral
	Suspend
	Resume
	Snapshot
	Shutdown
	Abort
)

type ControlToggle struct {
	value int64
}
