package consensus

import "github.com/sirgallo/cluster/pkg/archive"
import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/counters"
import "github.com/sirgallo/cluster/pkg/dynamicjoin"
import "github.com/sirgallo/cluster/pkg/election"
import "github.com/sirgallo/cluster/pkg/ingressrpc"
import "github.com/sirgallo/cluster/pkg/logstream"
import "github.com/sirgallo/cluster/pkg/markfile"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/pendingqueue"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/servicerpc"
import "github.com/sirgallo/cluster/pkg/statusrpc"
import "github.com/sirgallo/cluster/pkg/timerwheel"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/uncommitted"


type ModuleState int64

const (
	StateInit ModuleState = iota
	StateActive
	StateSuspended
	StateSnapshot
	StateQuitting
	StateTerminating
	StateClosed
)

type Role int64

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

type ConsensusModuleOpts struct {
	MemberID       int32
	ClusterMembers string
	ClusterDir     string

	// peer member status channels, used by dynamic join when the member
	// starts with empty cluster membership
	MemberStatusEndpoints []string

	// this member's own encoded endpoints, announced to the leader when
	// joining dynamically
	MemberEndpoints string

	// retrieves a remote snapshot recording into the local archive and
	// returns the local recording id, deployment glue provides this
	SnapshotRetriever func(agent *ConsensusModuleAgent, entry recordinglog.Entry) (int64, error)

	AppVersion int32
	TimeUnit   string

	ServiceCount int

	Medium       *transport.TransportMedium
	Archive      *archive.Archive
	RecordingLog *recordinglog.RecordingLog

	Authenticator   clustersession.Authenticator
	TerminationHook func()

	ClockNs func() int64

	MaxConcurrentSessions  int
	PendingMessageCapacity int

	SessionTimeoutNs          int64
	LeaderHeartbeatIntervalNs int64
	LeaderHeartbeatTimeoutNs  int64
	ElectionTimeoutNs         int64
	CatchupTimeoutNs          int64
	TerminationTimeoutNs      int64

	WheelTickResolutionNs int64
	TicksPerWheel         int
}

/*
	Consensus Module Agent
		the single threaded control component of a cluster member, all state
		below is owned by the agent and only ever touched from DoWork
*/

type ConsensusModuleAgent struct {
	opts ConsensusModuleOpts

	medium       *transport.TransportMedium
	archive      *archive.Archive
	recordingLog *recordinglog.RecordingLog

	registry     *clustersession.SessionRegistry
	timerWheel   *timerwheel.TimerWheel
	pendingQueue *pendingqueue.PendingMessageQueue
	ledger       *uncommitted.Ledger
	members      *membership.MembershipSet

	counters *counters.ConsensusCounters
	toggle   *counters.ControlToggle

	statusPublisher *statusrpc.StatusPublisher
	statusAdapter   *statusrpc.StatusAdapter
	ingressAdapter  *ingressrpc.IngressAdapter
	egressPublisher *ingressrpc.EgressPublisher
	serviceProxy    *servicerpc.ServiceProxy
	serviceAdapter  *servicerpc.ServiceAdapter

	logPublisher *logstream.LogPublisher
	logAdapter   *logstream.LogAdapter

	election    *election.Election
	dynamicJoin *dynamicjoin.DynamicJoin

	markFile      *markfile.MarkFile
	authenticator clustersession.Authenticator

	state ModuleState
	role  Role

	leadershipTermID    int64
	logRecordingID      int64
	termBaseLogPosition int64

	logPosition            int64 // applied position
	lastAppendPosition     int64
	commitPosition         int64
	notifiedCommitPosition int64
	terminationPosition    int64

	expectedAckPosition int64
	serviceAcks         map[int32]*serviceAck

	challengeSent map[int64]bool

	recoveryPlan *recordinglog.RecoveryPlan

	timeOfLastSlowTickNs     int64
	timeOfLastLeaderUpdateNs int64
	timeOfLastCommitSendNs   int64
	timeOfLastAppendSendNs   int64
	markFileDeadlineMs       int64
	terminationDeadlineNs    int64

	terminationAcks map[int32]bool

	Log LogHandle
}

type serviceAck struct {
	logPosition int64
	relevantId  int64
}

type LogHandle interface {
	Debug(msg ...interface{})
	Error(msg ...interface{})
	Info(msg ...interface{})
	Warn(msg ...interface{})
}

const NAME = "ConsensusModule"

const SlowTickIntervalNs = int64(10_000_000)
const MarkFileUpdateIntervalMs = int64(1000)

const ServiceMessageLimit = 20
const FragmentLimit = 10
const LogFragmentLimit = 25

const LogChannel = "cluster-log"
const LogStreamID = int32(100)
const StatusStreamID = int32(108)
const IngressStreamID = int32(101)
const ServiceControlStreamID = int32(105)
const SnapshotStreamID = int32(106)

const TimeUnitNs = "ns"

const NullPosition = int64(-1)
const NullRecordingID = int64(-1)
