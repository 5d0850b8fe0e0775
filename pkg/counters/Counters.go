package counters

import "sync/atomic"

import "github.com/prometheus/client_golang/prometheus"


//=========================================== Observable Counters


/*
	Counters are single writer (the consensus agent) and multi reader. Writes
	use release semantics and reads use acquire semantics so observers on other
	threads always see a consistent value.
*/

func NewCounter(gauge prometheus.Gauge) *Counter {
	return &Counter{
		gauge: gauge,
	}
}

func (counter *Counter) Set(value int64) {
	atomic.StoreInt64(&counter.value, value)
	if counter.gauge != nil { counter.gauge.Set(float64(value)) }
}

func (counter *Counter) Get() int64 {
	return atomic.LoadInt64(&counter.value)
}

func (counter *Counter) Increment() int64 {
	next := atomic.AddInt64(&counter.value, 1)
	if counter.gauge != nil { counter.gauge.Set(float64(next)) }

	return next
}

func NewConsensusCounters() *ConsensusCounters {
	RegisterMetrics()

	return &ConsensusCounters{
		ModuleState: NewCounter(ModuleStateGauge),
		ClusterRole: NewCounter(ClusterRoleGauge),
		CommitPosition: NewCounter(CommitPositionGauge),
		SnapshotCount: NewCounter(SnapshotCountGauge),
		TimedOutClientCount: NewCounter(TimedOutClientGauge),
		InvalidRequestCount: NewCounter(InvalidRequestGauge),
		ErrorCount: NewCounter(ErrorCountGauge),
	}
}


//=========================================== Control Toggle


/*
	Control Toggle
		an atomic counter written by an operator process and consumed by the
		agent on its slow tick

		an operator flips Neutral --> desired action, the agent accepts the
		action with a compare and swap back to Neutral and then applies it
*/

func NewControlToggle() *ControlToggle {
	return &ControlToggle{}
}

func (toggle *ControlToggle) Set(action ToggleAction) bool {
	return atomic.CompareAndSwapInt64(&toggle.value, int64(Neutral), int64(action))
}

func (toggle *ControlToggle) Get() ToggleAction {
	return ToggleAction(atomic.LoadInt64(&toggle.value))
}

func (toggle *ControlToggle) Accept(action ToggleAction) bool {
	return atomic.CompareAndSwapInt64(&toggle.value, int64(action), int64(Neutral))
}

func (toggle *ControlToggle) Activate() {
	atomic.StoreInt64(&toggle.value, int64(Neutral))
}

func (toggle *ControlToggle) Deactivate() {
	atomic.StoreInt64(&toggle.value, int64(Inactive))
}
