package consensus

import "errors"

import "github.com/sirgallo/cluster/pkg/election"
import "github.com/sirgallo/cluster/pkg/ingressrpc"
import "github.com/sirgallo/cluster/pkg/logstream"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/statusrpc"
import "github.com/sirgallo/cluster/pkg/uncommitted"


//=========================================== Leadership Transitions


/*
	Enter Election
		recoverable failures funnel here, a sitting leader first steps down
		through prepareForNewLeadership
*/

func (agent *ConsensusModuleAgent) enterElection(nowNs int64, isStartup bool) {
	if agent.election != nil { return }

	if agent.role == RoleLeader { agent.prepareForNewLeadership() }

	agent.roleTransition(RoleCandidate)

	agent.election = election.NewElection(election.ElectionOpts{
		Host: agent,
		IsStartup: isStartup,
		NowNs: nowNs,
		TimeoutNs: agent.opts.ElectionTimeoutNs,
	})
}

/*
	Prepare For New Leadership
		step down from leader before rejoining as a follower

		1.) disconnect the log publisher and stop the log recording
		2.) truncate the recording back to the commit position when the
			deposed leader recorded further than the quorum committed
		3.) pin every position to the commit position
		4.) roll back uncommitted bookkeeping
		5.) clear sessions whose open never committed, surviving sessions
			carry a pending new leader event
*/

func (agent *ConsensusModuleAgent) prepareForNewLeadership() {
	safePosition := agent.commitPosition

	if agent.logPublisher != nil { agent.logPublisher.Disconnect() }

	if agent.logRecordingID != NullRecordingID {
		stopErr := agent.archive.StopRecording(agent.logRecordingID)
		if stopErr != nil { Log.Warn("unable to stop log recording:", stopErr.Error()) }

		stopPosition, posErr := agent.archive.StopPosition(agent.logRecordingID)
		if posErr != nil {
			agent.onCountedError("unable to read log recording stop position:", posErr)
		} else if stopPosition > safePosition {
			truncateErr := agent.archive.TruncateRecording(agent.logRecordingID, safePosition)
			if truncateErr != nil { agent.onCountedError("unable to truncate log recording:", truncateErr) }
		}
	}

	agent.lastAppendPosition = safePosition
	agent.notifiedCommitPosition = safePosition
	agent.commitPosition = safePosition
	agent.logPosition = safePosition
	agent.counters.CommitPosition.Set(safePosition)

	agent.restoreUncommittedEntries(safePosition)

	cleared := agent.registry.ClearSessionsOpenedAfter(safePosition)
	for _, session := range cleared {
		agent.egressPublisher.SendEvent(session.Responder, session.ID, session.CorrelationID, agent.leadershipTermID, membership.NullMemberID, ingressrpc.EventClosed, "leadership changed")
		if session.Responder != nil { session.Responder.Close() }
	}

	for _, session := range agent.registry.SessionByID {
		session.HasNewLeaderEventPending = true
	}

	agent.toggle.Deactivate()
}

/*
	Restore Uncommitted Entries
		single reverse pass over the ledger, timers reschedule, uncommitted
		closes reinstate into the session table, pending service message
		slots reset their sentinels
*/

func (agent *ConsensusModuleAgent) restoreUncommittedEntries(commitPosition int64) {
	handlers := uncommitted.RestoreHandlers{
		OnTimerRestored: func(entry uncommitted.UncommittedEntry) {
			agent.timerWheel.Schedule(entry.CorrelationID, entry.Deadline)
		},
		OnSessionCloseRestored: func(entry uncommitted.UncommittedEntry) {
			entry.Session.Reinstate()
			agent.registry.SessionByID[entry.Session.ID] = entry.Session
		},
	}

	agent.ledger.Restore(commitPosition, handlers)
	agent.pendingQueue.RestoreUncommitted()
}


//========================================== election host surface


func (agent *ConsensusModuleAgent) MemberID() int32 {
	return agent.members.MemberID
}

func (agent *ConsensusModuleAgent) LeadershipTermID() int64 {
	return agent.leadershipTermID
}

func (agent *ConsensusModuleAgent) AppendedPosition() int64 {
	return agent.lastAppendPosition
}

func (agent *ConsensusModuleAgent) Members() *membership.MembershipSet {
	return agent.members
}

func (agent *ConsensusModuleAgent) Publisher() *statusrpc.StatusPublisher {
	return agent.statusPublisher
}

/*
	On Election Leader
		election completion for the winner

		the new leadership term event must land on the log before the role
		flips, a backpressured append returns false and the election retries
		the completion next do work pass
*/

func (agent *ConsensusModuleAgent) OnElectionLeader(candidateTermId int64, logPosition int64) bool {
	nowNs := agent.opts.ClockNs()

	logStream := agent.medium.StreamFor(LogChannel, LogStreamID)
	logStream.TruncateTo(logPosition)
	logStream.SeekTo(logPosition)

	if agent.logPublisher == nil || ! agent.logPublisher.IsConnected() {
		agent.logPublisher = logstream.NewLogPublisher(agent.medium.AddPublication(LogChannel, LogStreamID))
	}

	if agent.logAdapter != nil {
		agent.logAdapter.Close()
		agent.logAdapter = nil
	}

	if agent.logRecordingID == NullRecordingID {
		recordingId, recordErr := agent.archive.StartRecording(agent.logPublisher.Publication)
		if recordErr != nil {
			agent.onFatalError("unable to start log recording:", recordErr)
			return false
		}

		agent.logRecordingID = recordingId
	} else {
		extendErr := agent.archive.ExtendRecording(agent.logRecordingID, agent.logPublisher.Publication)
		if extendErr != nil {
			agent.onFatalError("unable to extend log recording:", extendErr)
			return false
		}
	}

	position := agent.logPublisher.AppendNewLeadershipTermEvent(candidateTermId, nowNs, logPosition, agent.members.MemberID, agent.opts.AppVersion, agent.opts.TimeUnit)
	if position <= 0 { return false }

	agent.leadershipTermID = candidateTermId
	agent.termBaseLogPosition = logPosition
	agent.logPosition = position
	agent.lastAppendPosition = position
	agent.members.LeaderID = agent.members.MemberID

	_, termErr := agent.recordingLog.AppendTerm(agent.logRecordingID, candidateTermId, logPosition, nowNs)
	if termErr != nil {
		agent.onFatalError("unable to append term entry:", termErr)
		return false
	}

	agent.roleTransition(RoleLeader)

	self := agent.members.FindMember(agent.members.MemberID)
	for _, member := range agent.members.Members {
		member.TimeOfLastAppendPositionNs = nowNs
		if member != self { agent.statusPublisher.NewLeadershipTerm(member.Publication, agent.leadershipTermID, candidateTermId, position, logPosition, agent.members.MemberID, agent.logRecordingID) }
	}

	for _, member := range agent.members.PassiveMembers {
		agent.statusPublisher.NewLeadershipTerm(agent.memberPublication(member), agent.leadershipTermID, candidateTermId, position, logPosition, agent.members.MemberID, agent.logRecordingID)
	}

	agent.serviceProxy.JoinLog(agent.logPosition, NullPosition, agent.members.MemberID, LogChannel, LogStreamID, false, int32(RoleLeader))

	agent.toggle.Activate()
	agent.timeOfLastLeaderUpdateNs = nowNs
	agent.timeOfLastCommitSendNs = nowNs

	plan, planErr := agent.recordingLog.CreateRecoveryPlan(agent.archive, agent.opts.ServiceCount)
	if planErr != nil {
		agent.onCountedError("unable to rebuild recovery plan:", planErr)
	} else { agent.recoveryPlan = plan }

	agent.sendPendingNewLeaderEvents()

	Log.Info("election complete, leading term:", candidateTermId, "from position:", logPosition)

	return true
}

/*
	On Election Follower
		election completion for everyone else, joins the live log at the
		local applied position and reports append position to the leader
*/

func (agent *ConsensusModuleAgent) OnElectionFollower(leadershipTermId int64, leaderMemberId int32, leaderRecordingId int64, logPosition int64) bool {
	nowNs := agent.opts.ClockNs()

	leader := agent.members.FindMember(leaderMemberId)
	if leader == nil && agent.members.FindPassiveMember(leaderMemberId) == nil {
		agent.onCountedError("election completed with unknown leader member", nil)
		return true
	}

	agent.leadershipTermID = leadershipTermId
	agent.members.LeaderID = leaderMemberId
	if leader != nil { leader.IsLeader = true }

	agent.roleTransition(RoleFollower)
	agent.toggle.Deactivate()

	if agent.logAdapter != nil { agent.logAdapter.Close() }

	logSub := agent.medium.AddSubscriptionAt(LogChannel, LogStreamID, agent.logPosition)
	agent.logAdapter = logstream.NewLogAdapter(logSub.Image)

	agent.notifiedCommitPosition = agent.commitPosition
	agent.timeOfLastLeaderUpdateNs = nowNs

	agent.serviceProxy.JoinLog(agent.logPosition, NullPosition, agent.members.MemberID, LogChannel, LogStreamID, false, int32(RoleFollower))

	if leader != nil {
		agent.statusPublisher.AppendPosition(leader.Publication, leadershipTermId, agent.lastAppendPosition, agent.members.MemberID)

		if agent.lastAppendPosition < logPosition {
			agent.statusPublisher.CatchupPosition(leader.Publication, leadershipTermId, agent.lastAppendPosition, agent.members.MemberID)
		}
	}

	if agent.members.FindMember(agent.members.MemberID) == nil { agent.requestClusterJoin(leaderMemberId) }

	agent.sendPendingNewLeaderEvents()

	Log.Info("election complete, following leader:", leaderMemberId, "for term:", leadershipTermId)

	return true
}

/*
	surviving sessions learn the new leader through a NewLeader egress event
*/

func (agent *ConsensusModuleAgent) sendPendingNewLeaderEvents() {
	leader := agent.members.LeaderMember()

	ingressEndpoints := ""
	if leader != nil { ingressEndpoints = leader.ClientFacingEndpoint }

	for _, session := range agent.registry.SessionByID {
		if session.HasNewLeaderEventPending {
			sent := agent.egressPublisher.SendNewLeaderEvent(session.Responder, session.ID, agent.leadershipTermID, agent.members.LeaderID, ingressEndpoints)
			if sent { session.HasNewLeaderEventPending = false }
		}
	}
}

/*
	a dynamically joined member announces itself passive to the new leader
	and requests promotion once it has joined the log
*/

func (agent *ConsensusModuleAgent) requestClusterJoin(leaderMemberId int32) {
	self := agent.members.FindPassiveMember(agent.members.MemberID)
	if self == nil { return }

	leader := agent.members.FindMember(leaderMemberId)
	if leader == nil { return }

	agent.statusPublisher.AddPassiveMember(leader.Publication, int64(agent.members.MemberID) << 32, membership.EncodeMembers([]*membership.ClusterMember{ self }))
	agent.statusPublisher.JoinCluster(leader.Publication, agent.leadershipTermID, agent.members.MemberID)
}

/*
	Process Passive Members
		leader slow tick, a caught up passive member that requested to join
		is promoted through a log replicated membership change

		a join is never appended while a snapshot is in flight
*/

func (agent *ConsensusModuleAgent) processPassiveMembers(nowNs int64) int {
	if agent.state == StateSnapshot { return 0 }

	work := 0

	for _, member := range agent.members.PassiveMembers {
		if ! member.HasRequestedJoin { continue }
		if member.LogPosition < agent.commitPosition { continue }

		promoted := append([]*membership.ClusterMember{}, agent.members.Members...)
		promoted = append(promoted, member)

		position := agent.logPublisher.AppendMembershipChangeEvent(agent.leadershipTermID, nowNs, member.ID, logstream.ChangeJoin, membership.EncodeMembers(promoted))
		if position <= 0 { return work }

		agent.logPosition = position
		agent.members.PromotePassiveMember(member.ID)

		work++
	}

	return work
}


//========================================== dynamic join host surface


func (agent *ConsensusModuleAgent) RecordingLog() *recordinglog.RecordingLog {
	return agent.recordingLog
}

func (agent *ConsensusModuleAgent) RetrieveSnapshot(entry recordinglog.Entry) (int64, error) {
	if agent.opts.SnapshotRetriever == nil { return NullRecordingID, errors.New("no snapshot retriever configured") }

	return agent.opts.SnapshotRetriever(agent, entry)
}

/*
	On Dynamic Join Complete
		the discovered active set becomes the membership, this member starts
		passive and runs a non initial election to find the leader
*/

func (agent *ConsensusModuleAgent) OnDynamicJoinComplete(members []*membership.ClusterMember) {
	agent.members.Members = members

	for _, member := range agent.members.Members {
		member.Publication = agent.medium.AddPublication(statusChannel(member.ID), StatusStreamID)
	}

	selfMembers, parseErr := membership.ParseMembers(agent.opts.MemberEndpoints)
	if parseErr != nil || len(selfMembers) == 0 {
		agent.onCountedError("unable to parse own member endpoints:", parseErr)
		return
	}

	self := selfMembers[0]
	self.HasRequestedJoin = true
	agent.members.AddPassiveMember(self)

	if agent.ingressAdapter == nil {
		ingressSub := agent.medium.AddSubscription(self.ClientFacingEndpoint, IngressStreamID)
		agent.ingressAdapter = ingressrpc.NewIngressAdapter(ingressSub, agent)
	}

	recoverErr := agent.recoverState()
	if recoverErr != nil {
		agent.onFatalError("unable to recover retrieved snapshot state:", recoverErr)
		return
	}

	agent.enterElection(agent.opts.ClockNs(), false)
}
