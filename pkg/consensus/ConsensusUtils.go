package consensus

import "github.com/sirgallo/cluster/pkg/logstream"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/transport"


//=========================================== Agent Helpers


func (agent *ConsensusModuleAgent) findAnyMember(memberId int32) *membership.ClusterMember {
	member := agent.members.FindMember(memberId)
	if member != nil { return member }

	return agent.members.FindPassiveMember(memberId)
}

/*
	publications toward members are lazily attached, a member learned through
	a replayed membership change has none until first send
*/

func (agent *ConsensusModuleAgent) memberPublication(member *membership.ClusterMember) *transport.Publication {
	if member.Publication == nil {
		member.Publication = agent.medium.AddPublication(statusChannel(member.ID), StatusStreamID)
	}

	return member.Publication
}

/*
	the entries a joining or backup node needs to seed its recording log, the
	latest valid snapshot set plus the current term entry
*/

func (agent *ConsensusModuleAgent) snapshotPlanEntries() []recordinglog.Entry {
	var entries []recordinglog.Entry

	plan, planErr := agent.recordingLog.CreateRecoveryPlan(agent.archive, agent.opts.ServiceCount)
	if planErr != nil {
		agent.onCountedError("unable to build recovery plan for response:", planErr)
		return entries
	}

	entries = append(entries, plan.Snapshots...)

	if plan.Log != nil {
		entries = append(entries, recordinglog.Entry{
			EntryType: recordinglog.EntryTypeTerm,
			RecordingID: plan.Log.RecordingID,
			LeadershipTermID: plan.Log.InitialTermID,
			TermBaseLogPosition: plan.Log.StartPosition,
			LogPosition: plan.Log.StopPosition,
			ServiceID: recordinglog.ServiceIDSentinel,
			IsValid: true,
		})
	}

	return entries
}

/*
	Request Member Remove
		operator surface, the removal is log replicated as a quit membership
		change and takes effect once the commit position passes it
*/

func (agent *ConsensusModuleAgent) RequestMemberRemove(memberId int32) bool {
	if agent.role != RoleLeader { return false }

	member := agent.members.FindMember(memberId)
	if member == nil { return false }

	member.HasRequestedRemove = true

	return true
}

func (agent *ConsensusModuleAgent) processMemberRemovals(nowNs int64) int {
	work := 0

	for _, member := range agent.members.Members {
		if ! member.HasRequestedRemove || member.RemovalPosition != NullPosition { continue }

		var remaining []*membership.ClusterMember
		for _, active := range agent.members.Members {
			if active.ID != member.ID { remaining = append(remaining, active) }
		}

		position := agent.logPublisher.AppendMembershipChangeEvent(agent.leadershipTermID, nowNs, member.ID, logstream.ChangeQuit, membership.EncodeMembers(remaining))
		if position <= 0 { return work }

		agent.logPosition = position
		member.RemovalPosition = position

		work++
	}

	return work
}
