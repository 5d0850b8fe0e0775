package dynamicjoin

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/statusrpc"


//=========================================== Dynamic Join


var Log = clog.NewCustomLog(NAME)

/*
	Dynamic Join
		bootstrap state machine for a node starting with empty cluster
		membership but configured member status endpoints

		1.) query peers for their snapshot recordings and cluster state
		2.) retrieve each snapshot recording into a local recording and
			append the matching term + snapshot records to the local
			recording log
		3.) hand the discovered membership back to the agent which then runs
			a normal non initial election as a passive participant
*/

func NewDynamicJoin(opts DynamicJoinOpts) *DynamicJoin {
	correlationId := int64(opts.Host.MemberID()) << 32

	return &DynamicJoin{
		host: opts.Host,
		peers: opts.Peers,
		State: Init,
		correlationId: correlationId,
		queryIntervalNs: opts.QueryIntervalNs,
		queryDeadlineNs: opts.NowNs,
	}
}

func (join *DynamicJoin) DoWork(nowNs int64) int {
	switch join.State {
		case Init, SnapshotQuery:
			return join.querySnapshots(nowNs)
		case SnapshotRetrieve:
			return join.retrieveSnapshots()
	}

	return 0
}

func (join *DynamicJoin) IsDone() bool {
	return join.State == Done
}

func (join *DynamicJoin) querySnapshots(nowNs int64) int {
	if nowNs < join.queryDeadlineNs { return 0 }

	publisher := join.host.Publisher()

	for _, peer := range join.peers {
		publisher.SnapshotRecordingQuery(peer.Publication, join.correlationId, join.host.MemberID())
	}

	join.State = SnapshotQuery
	join.queryDeadlineNs = nowNs + join.queryIntervalNs

	return 1
}

/*
	On Snapshot Recording Response
		routed in from the member status adapter, the first response for our
		correlation wins, anything else is stale
*/

func (join *DynamicJoin) OnSnapshotRecordingResponse(msg *statusrpc.StatusMessage) {
	if join.State != SnapshotQuery { return }
	if msg.CorrelationID != join.correlationId { return }

	join.retrievedEntries = msg.SnapshotEntries
	join.clusterMembers = msg.ClusterMembers
	join.State = SnapshotRetrieve
}

func (join *DynamicJoin) retrieveSnapshots() int {
	rlog := join.host.RecordingLog()

	for _, entry := range join.retrievedEntries {
		localRecordingId, retrieveErr := join.host.RetrieveSnapshot(entry)
		if retrieveErr != nil {
			Log.Error("unable to retrieve snapshot recording:", retrieveErr.Error())

			join.State = Init
			return 0
		}

		if entry.EntryType == recordinglog.EntryTypeTerm {
			_, appendErr := rlog.AppendTerm(localRecordingId, entry.LeadershipTermID, entry.TermBaseLogPosition, entry.Timestamp)
			if appendErr != nil {
				Log.Error("unable to append retrieved term entry:", appendErr.Error())

				join.State = Init
				return 0
			}
		} else {
			_, appendErr := rlog.AppendSnapshot(localRecordingId, entry.LeadershipTermID, entry.TermBaseLogPosition, entry.LogPosition, entry.Timestamp, entry.ServiceID)
			if appendErr != nil {
				Log.Error("unable to append retrieved snapshot entry:", appendErr.Error())

				join.State = Init
				return 0
			}
		}
	}

	members, parseErr := membership.ParseMembers(join.clusterMembers)
	if parseErr != nil {
		Log.Error("unable to parse cluster members from response:", parseErr.Error())

		join.State = Init
		return 0
	}

	join.State = Done
	join.host.OnDynamicJoinComplete(members)

	Log.Info("dynamic join complete, discovered members:", len(members))

	return 1
}
