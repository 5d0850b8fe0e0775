package statusrpc

import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Member Status Adapter


/*
	Status Adapter
		polls the member status subscription and dispatches each envelope
		into the sink, one operation per message kind
*/

type StatusAdapter struct {
	Subscription *transport.Subscription
	Sink         MemberStatusSink
}

func NewStatusAdapter(subscription *transport.Subscription, sink MemberStatusSink) *StatusAdapter {
	return &StatusAdapter{
		Subscription: subscription,
		Sink: sink,
	}
}

func (adapter *StatusAdapter) Poll(fragmentLimit int) int {
	handler := func(bytes []byte, position int64) transport.PollAction {
		msg, decodeErr := utils.DecodeBytesToStruct[StatusMessage](bytes)
		if decodeErr != nil {
			Log.Error("unable to decode status message:", decodeErr.Error())
			return transport.PollContinue
		}

		adapter.dispatch(msg)

		return transport.PollContinue
	}

	return adapter.Subscription.Poll(handler, fragmentLimit)
}

func (adapter *StatusAdapter) dispatch(msg *StatusMessage) {
	switch msg.Kind {
		case KindCanvassPosition:
			adapter.Sink.OnCanvassPosition(msg)
		case KindRequestVote:
			adapter.Sink.OnRequestVote(msg)
		case KindVote:
			adapter.Sink.OnVote(msg)
		case KindNewLeadershipTerm:
			adapter.Sink.OnNewLeadershipTerm(msg)
		case KindAppendPosition:
			adapter.Sink.OnAppendPosition(msg)
		case KindCommitPosition:
			adapter.Sink.OnCommitPosition(msg)
		case KindCatchupPosition:
			adapter.Sink.OnCatchupPosition(msg)
		case KindStopCatchup:
			adapter.Sink.OnStopCatchup(msg)
		case KindAddPassiveMember:
			adapter.Sink.OnAddPassiveMember(msg)
		case KindClusterMemberChange:
			adapter.Sink.OnClusterMemberChange(msg)
		case KindJoinCluster:
			adapter.Sink.OnJoinCluster(msg)
		case KindSnapshotRecordingQuery:
			adapter.Sink.OnSnapshotRecordingQuery(msg)
		case KindSnapshotRecordingResponse:
			adapter.Sink.OnSnapshotRecordingResponse(msg)
		case KindTerminationPosition:
			adapter.Sink.OnTerminationPosition(msg)
		case KindTerminationAck:
			adapter.Sink.OnTerminationAck(msg)
		case KindBackupQuery:
			adapter.Sink.OnBackupQuery(msg)
		case KindBackupResponse:
			adapter.Sink.OnBackupResponse(msg)
		default:
			Log.Warn("unknown status message kind:", string(msg.Kind))
	}
}
