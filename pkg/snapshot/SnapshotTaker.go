package snapshot

import "errors"
import "time"

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/pendingqueue"
import "github.com/sirgallo/cluster/pkg/timerwheel"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Snapshot Taker


var Log = clog.NewCustomLog(NAME)

/*
	Snapshot Taker
		emits the agent's state as a framed record stream onto an exclusive
		snapshot publication, recorded by the archive

		offers spin on backpressure, a closed publication mid snapshot aborts
		the take
*/

func NewSnapshotTaker(publication *transport.Publication) *SnapshotTaker {
	return &SnapshotTaker{
		Publication: publication,
		IdleSleepMs: 1,
	}
}

func (taker *SnapshotTaker) MarkBegin(logPosition int64, leadershipTermId int64, timeUnit string, appVersion int32) error {
	return taker.offer(&SnapshotRecord{
		Kind: RecordBegin,
		TypeID: SnapshotTypeID,
		LogPosition: logPosition,
		LeadershipTermID: leadershipTermId,
		TimeUnit: timeUnit,
		AppVersion: appVersion,
	})
}

func (taker *SnapshotTaker) SnapshotConsensusModuleState(nextSessionId int64, nextServiceSessionId int64, logServiceSessionId int64, pendingMessageCapacity int) error {
	return taker.offer(&SnapshotRecord{
		Kind: RecordModuleState,
		NextSessionID: nextSessionId,
		NextServiceSessionID: nextServiceSessionId,
		LogServiceSessionID: logServiceSessionId,
		PendingMessageCapacity: pendingMessageCapacity,
	})
}

func (taker *SnapshotTaker) SnapshotMembership(set *membership.MembershipSet) error {
	return taker.offer(&SnapshotRecord{
		Kind: RecordMembership,
		MemberID: set.MemberID,
		HighMemberID: set.HighMemberID(),
		Members: membership.EncodeMembers(set.Members),
		PassiveMembers: membership.EncodeMembers(set.PassiveMembers),
	})
}

/*
	sessions are snapshotted while open or pending close commit, handshake
	states never survive a snapshot boundary
*/

func (taker *SnapshotTaker) SnapshotSession(session *clustersession.ClusterSession) error {
	if session.State != clustersession.Open && session.State != clustersession.Closed { return nil }

	return taker.offer(&SnapshotRecord{
		Kind: RecordSession,
		Session: &SessionSnapshot{
			ID: session.ID,
			CorrelationID: session.CorrelationID,
			ResponseStreamID: session.ResponseStreamID,
			ResponseChannel: session.ResponseChannel,
			State: session.State,
			CloseReason: session.CloseReason,
			OpenedLogPosition: session.OpenedLogPosition,
			ClosedLogPosition: session.ClosedLogPosition,
			TimeOfLastActivityNs: session.TimeOfLastActivityNs,
		},
	})
}

func (taker *SnapshotTaker) SnapshotTimers(wheel *timerwheel.TimerWheel) error {
	for _, entry := range wheel.Entries() {
		offerErr := taker.offer(&SnapshotRecord{
			Kind: RecordTimer,
			CorrelationID: entry.CorrelationID,
			Deadline: entry.Deadline,
		})

		if offerErr != nil { return offerErr }
	}

	return nil
}

func (taker *SnapshotTaker) SnapshotPendingMessages(queue *pendingqueue.PendingMessageQueue) error {
	for _, entry := range queue.Entries() {
		offerErr := taker.offer(&SnapshotRecord{
			Kind: RecordPendingMessage,
			ServiceSessionID: entry.ServiceSessionID,
			Payload: entry.Payload,
		})

		if offerErr != nil { return offerErr }
	}

	return nil
}

func (taker *SnapshotTaker) MarkEnd(logPosition int64) error {
	return taker.offer(&SnapshotRecord{
		Kind: RecordEnd,
		LogPosition: logPosition,
	})
}

func (taker *SnapshotTaker) Position() int64 {
	return taker.Publication.Position()
}

func (taker *SnapshotTaker) offer(record *SnapshotRecord) error {
	encoded, encodeErr := utils.EncodeStructToBytes[*SnapshotRecord](record)
	if encodeErr != nil { return encodeErr }

	for {
		result := taker.Publication.Offer(encoded)
		if result > 0 { return nil }
		if result == transport.NotConnected { return errors.New("snapshot publication closed") }

		time.Sleep(time.Duration(taker.IdleSleepMs) * time.Millisecond)
	}
}
