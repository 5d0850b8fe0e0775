package statusrpc

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Member Status Publisher


var Log = clog.NewCustomLog(NAME)

/*
	Status Publisher
		offers member status envelopes onto a per member publication

		status traffic is advisory, a few offer attempts then drop, liveness
		is carried by the next heartbeat rather than retry queues
*/

type StatusPublisher struct{}

func NewStatusPublisher() *StatusPublisher {
	return &StatusPublisher{}
}

func (publisher *StatusPublisher) CanvassPosition(pub *transport.Publication, logLeadershipTermId int64, logPosition int64, followerMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindCanvassPosition,
		LogLeadershipTermID: logLeadershipTermId,
		LogPosition: logPosition,
		FollowerMemberID: followerMemberId,
	})
}

func (publisher *StatusPublisher) RequestVote(pub *transport.Publication, logLeadershipTermId int64, logPosition int64, candidateTermId int64, candidateMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindRequestVote,
		LogLeadershipTermID: logLeadershipTermId,
		LogPosition: logPosition,
		CandidateTermID: candidateTermId,
		CandidateMemberID: candidateMemberId,
	})
}

func (publisher *StatusPublisher) PlaceVote(pub *transport.Publication, candidateTermId int64, candidateMemberId int32, followerMemberId int32, vote bool) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindVote,
		CandidateTermID: candidateTermId,
		CandidateMemberID: candidateMemberId,
		FollowerMemberID: followerMemberId,
		Vote: vote,
	})
}

func (publisher *StatusPublisher) NewLeadershipTerm(pub *transport.Publication, logLeadershipTermId int64, leadershipTermId int64, logPosition int64, termBaseLogPosition int64, leaderMemberId int32, leaderRecordingId int64) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindNewLeadershipTerm,
		LogLeadershipTermID: logLeadershipTermId,
		LeadershipTermID: leadershipTermId,
		LogPosition: logPosition,
		TermBaseLogPosition: termBaseLogPosition,
		LeaderMemberID: leaderMemberId,
		LeaderRecordingID: leaderRecordingId,
	})
}

func (publisher *StatusPublisher) AppendPosition(pub *transport.Publication, leadershipTermId int64, logPosition int64, followerMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindAppendPosition,
		LeadershipTermID: leadershipTermId,
		LogPosition: logPosition,
		FollowerMemberID: followerMemberId,
	})
}

func (publisher *StatusPublisher) CommitPosition(pub *transport.Publication, leadershipTermId int64, logPosition int64, leaderMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindCommitPosition,
		LeadershipTermID: leadershipTermId,
		LogPosition: logPosition,
		LeaderMemberID: leaderMemberId,
	})
}

func (publisher *StatusPublisher) CatchupPosition(pub *transport.Publication, leadershipTermId int64, logPosition int64, followerMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindCatchupPosition,
		LeadershipTermID: leadershipTermId,
		LogPosition: logPosition,
		FollowerMemberID: followerMemberId,
	})
}

func (publisher *StatusPublisher) StopCatchup(pub *transport.Publication, leadershipTermId int64, followerMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindStopCatchup,
		LeadershipTermID: leadershipTermId,
		FollowerMemberID: followerMemberId,
	})
}

func (publisher *StatusPublisher) AddPassiveMember(pub *transport.Publication, correlationId int64, memberEndpoints string) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindAddPassiveMember,
		CorrelationID: correlationId,
		MemberEndpoints: memberEndpoints,
	})
}

func (publisher *StatusPublisher) ClusterMemberChange(pub *transport.Publication, correlationId int64, leaderMemberId int32, clusterMembers string, passiveMembers string) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindClusterMemberChange,
		CorrelationID: correlationId,
		LeaderMemberID: leaderMemberId,
		ClusterMembers: clusterMembers,
		MemberEndpoints: passiveMembers,
	})
}

func (publisher *StatusPublisher) JoinCluster(pub *transport.Publication, leadershipTermId int64, memberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindJoinCluster,
		LeadershipTermID: leadershipTermId,
		MemberID: memberId,
	})
}

func (publisher *StatusPublisher) SnapshotRecordingQuery(pub *transport.Publication, correlationId int64, requestMemberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindSnapshotRecordingQuery,
		CorrelationID: correlationId,
		MemberID: requestMemberId,
	})
}

func (publisher *StatusPublisher) SnapshotRecordingResponse(pub *transport.Publication, correlationId int64, entries []recordinglog.Entry, clusterMembers string) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindSnapshotRecordingResponse,
		CorrelationID: correlationId,
		SnapshotEntries: entries,
		ClusterMembers: clusterMembers,
	})
}

func (publisher *StatusPublisher) TerminationPosition(pub *transport.Publication, leadershipTermId int64, logPosition int64) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindTerminationPosition,
		LeadershipTermID: leadershipTermId,
		LogPosition: logPosition,
	})
}

func (publisher *StatusPublisher) TerminationAck(pub *transport.Publication, leadershipTermId int64, logPosition int64, memberId int32) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindTerminationAck,
		LeadershipTermID: leadershipTermId,
		LogPosition: logPosition,
		MemberID: memberId,
	})
}

func (publisher *StatusPublisher) BackupQuery(pub *transport.Publication, correlationId int64, responseChannel string) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindBackupQuery,
		CorrelationID: correlationId,
		ResponseChannel: responseChannel,
	})
}

func (publisher *StatusPublisher) BackupResponse(pub *transport.Publication, correlationId int64, logPosition int64, entries []recordinglog.Entry, clusterMembers string) bool {
	return publisher.offer(pub, &StatusMessage{
		Kind: KindBackupResponse,
		CorrelationID: correlationId,
		LogPosition: logPosition,
		SnapshotEntries: entries,
		ClusterMembers: clusterMembers,
	})
}

func (publisher *StatusPublisher) offer(pub *transport.Publication, msg *StatusMessage) bool {
	if pub == nil { return false }

	encoded, encodeErr := utils.EncodeStructToBytes[*StatusMessage](msg)
	if encodeErr != nil {
		Log.Error("unable to encode status message:", encodeErr.Error())
		return false
	}

	for attempt := 0; attempt < OfferAttempts; attempt++ {
		result := pub.Offer(encoded)
		if result > 0 { return true }
		if result == transport.NotConnected { return false }
	}

	return false
}
