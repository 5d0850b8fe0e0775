package dynamicjoin

import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/statusrpc"
import "github.com/sirgallo/cluster/pkg/transport"


type DynamicJoinState string

const (
	Init             DynamicJoinState = "init"
	SnapshotQuery    DynamicJoinState = "snapshot_query"
	SnapshotRetrieve DynamicJoinState = "snapshot_retrieve"
	Done             DynamicJoinState = "done"
)

/*
	the agent implements this host surface, retrieval of the remote snapshot
	recording into a local recording is delegated so the join state machine
	stays transport agnostic
*/

type DynamicJoinHost interface {
	MemberID() int32
	RecordingLog() *recordinglog.RecordingLog
	Publisher() *statusrpc.StatusPublisher
	RetrieveSnapshot(entry recordinglog.Entry) (int64, error)
	OnDynamicJoinComplete(members []*membership.ClusterMember)
}

type PeerEndpoint struct {
	Host        string
	Publication *transport.Publication
}

type DynamicJoinOpts struct {
	Host          DynamicJoinHost
	Peers         []PeerEndpoint
	NowNs         int64
	QueryIntervalNs int64
}

type DynamicJoin struct {
	host  DynamicJoinHost
	peers []PeerEndpoint

	State DynamicJoinState

	correlationId   int64
	queryIntervalNs int64
	queryDeadlineNs int64

	retrievedEntries []recordinglog.Entry
	clusterMembers   string
}

const NAME = "DynamicJoin"
