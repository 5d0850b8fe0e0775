package consensus

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/logstream"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/servicerpc"
import "github.com/sirgallo/cluster/pkg/snapshot"
import "github.com/sirgallo/cluster/pkg/statusrpc"
import "github.com/sirgallo/cluster/pkg/transport"


//=========================================== Log Sink (replay application)


/*
	the follower applies replicated entries at replay time, the leader
	already applied the same mutations at append time so the two paths
	converge on identical state
*/

func (agent *ConsensusModuleAgent) OnReplaySessionOpen(entry *logstream.LogEntry, position int64) transport.PollAction {
	session := clustersession.NewClusterSession(entry.CorrelationID, entry.ResponseStreamID, entry.ResponseChannel)
	session.ID = entry.SessionID
	session.Responder = agent.medium.AddPublication(entry.ResponseChannel, entry.ResponseStreamID)
	session.TimeOfLastActivityNs = entry.Timestamp

	connectErr := session.Connect()
	if connectErr != nil {
		agent.onCountedError("unable to replay session open:", connectErr)
		return transport.PollContinue
	}

	session.Authenticate(entry.EncodedPrincipal)

	openErr := session.Opened(position)
	if openErr != nil {
		agent.onCountedError("unable to replay session open:", openErr)
		return transport.PollContinue
	}

	agent.registry.SessionByID[session.ID] = session
	if entry.SessionID >= agent.registry.NextSessionID { agent.registry.NextSessionID = entry.SessionID + 1 }

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnReplaySessionClose(entry *logstream.LogEntry, position int64) transport.PollAction {
	session := agent.registry.RemoveSession(entry.SessionID)
	if session != nil {
		session.ClosePending(clustersession.CloseReason(entry.CloseReason), position)
		session.Close()
	}

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnReplaySessionMessage(entry *logstream.LogEntry, position int64) transport.PollAction {
	session := agent.registry.GetSession(entry.SessionID)
	if session != nil { session.TimeOfLastActivityNs = entry.Timestamp }

	return transport.PollContinue
}

/*
	a timer event on the log is a fired expiry, the wheel cancel keeps the
	replay idempotence counter when the correlation is already gone
*/

func (agent *ConsensusModuleAgent) OnReplayTimerEvent(entry *logstream.LogEntry, position int64) transport.PollAction {
	agent.timerWheel.CancelForReplay(entry.CorrelationID)

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnReplayClusterAction(entry *logstream.LogEntry, position int64) transport.PollAction {
	switch entry.Action {
		case logstream.ActionSnapshot:
			if agent.role != RoleLeader { agent.beginSnapshot(position) }
		case logstream.ActionSuspend:
			if agent.state == StateActive { agent.moduleStateTransition(StateSuspended) }
		case logstream.ActionResume:
			if agent.state == StateSuspended { agent.moduleStateTransition(StateActive) }
	}

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnReplayNewLeadershipTermEvent(entry *logstream.LogEntry, position int64) transport.PollAction {
	if entry.TimeUnit != agent.opts.TimeUnit {
		agent.onFatalError("incompatible cluster time unit on log:", nil)
		return transport.PollBreak
	}

	if snapshot.MajorVersion(entry.AppVersion) != snapshot.MajorVersion(agent.opts.AppVersion) {
		agent.onFatalError("incompatible app version major on log:", nil)
		return transport.PollBreak
	}

	agent.leadershipTermID = entry.LeadershipTermID
	agent.termBaseLogPosition = entry.TermBaseLogPosition
	agent.members.LeaderID = entry.LeaderMemberID

	return transport.PollContinue
}

/*
	membership changes take effect at replay time so every member applies
	them at the same log position
*/

func (agent *ConsensusModuleAgent) OnReplayMembershipChange(entry *logstream.LogEntry, position int64) transport.PollAction {
	changed, parseErr := membership.ParseMembers(entry.ClusterMembers)
	if parseErr != nil {
		agent.onCountedError("unable to parse membership change:", parseErr)
		return transport.PollContinue
	}

	for _, member := range changed {
		existing := agent.members.FindMember(member.ID)
		if existing != nil {
			member.Publication = existing.Publication
			member.LogPosition = existing.LogPosition
			member.TimeOfLastAppendPositionNs = existing.TimeOfLastAppendPositionNs
			continue
		}

		passive := agent.members.FindPassiveMember(member.ID)
		if passive != nil {
			member.Publication = passive.Publication
			member.LogPosition = passive.LogPosition
			agent.members.PromotePassiveMember(member.ID)
		}
	}

	agent.members.Members = changed

	for _, member := range agent.members.Members {
		if member.ID == agent.members.MemberID || member.Publication != nil { continue }
		member.Publication = agent.medium.AddPublication(statusChannel(member.ID), StatusStreamID)
	}

	if entry.Change == logstream.ChangeQuit && agent.members.FindMember(agent.members.MemberID) == nil && entry.MemberID == agent.members.MemberID {
		agent.moduleStateTransition(StateQuitting)
	}

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnReplayServiceSessionMessage(entry *logstream.LogEntry, position int64) transport.PollAction {
	agent.pendingQueue.FollowerSweep(entry.SessionID)

	return transport.PollContinue
}


//=========================================== Member Status Sink


func (agent *ConsensusModuleAgent) OnCanvassPosition(msg *statusrpc.StatusMessage) {
	if agent.election != nil {
		agent.election.OnCanvassPosition(msg)
		return
	}

	member := agent.findAnyMember(msg.FollowerMemberID)
	if member != nil && msg.LogPosition > member.LogPosition { member.LogPosition = msg.LogPosition }

	// a sitting leader answers a canvass so a restarted or joining member
	// falls straight in behind the current term, unknown members get a
	// direct publication since they are not in the table yet
	if agent.role == RoleLeader {
		responder := agent.medium.AddPublication(statusChannel(msg.FollowerMemberID), StatusStreamID)
		if member != nil { responder = agent.memberPublication(member) }

		agent.statusPublisher.NewLeadershipTerm(responder, agent.leadershipTermID, agent.leadershipTermID, agent.lastAppendPosition, agent.termBaseLogPosition, agent.members.MemberID, agent.logRecordingID)
	}
}

func (agent *ConsensusModuleAgent) OnRequestVote(msg *statusrpc.StatusMessage) {
	if agent.election != nil {
		agent.election.OnRequestVote(msg)
		return
	}

	if msg.CandidateTermID > agent.leadershipTermID {
		agent.onCountedError("vote requested for a newer term, entering election", nil)
		agent.enterElection(agent.opts.ClockNs(), false)

		if agent.election != nil { agent.election.OnRequestVote(msg) }
	}
}

func (agent *ConsensusModuleAgent) OnVote(msg *statusrpc.StatusMessage) {
	if agent.election != nil { agent.election.OnVote(msg) }
}

/*
	a new leadership term with an equal term id is accepted only when it
	comes from the recorded leader for that term, anything else is an
	unexpected role message
*/

func (agent *ConsensusModuleAgent) OnNewLeadershipTerm(msg *statusrpc.StatusMessage) {
	if agent.election != nil {
		agent.election.OnNewLeadershipTerm(msg)
		return
	}

	if msg.LeadershipTermID == agent.leadershipTermID {
		if msg.LeaderMemberID != agent.members.LeaderID {
			agent.onCountedError("new leadership term for current term from a different leader", nil)
			agent.enterElection(agent.opts.ClockNs(), false)
		}

		return
	}

	if msg.LeadershipTermID > agent.leadershipTermID {
		agent.onCountedError("newer leadership term observed, entering election", nil)
		agent.enterElection(agent.opts.ClockNs(), false)

		if agent.election != nil { agent.election.OnNewLeadershipTerm(msg) }
	}
}

func (agent *ConsensusModuleAgent) OnAppendPosition(msg *statusrpc.StatusMessage) {
	member := agent.findAnyMember(msg.FollowerMemberID)
	if member == nil { return }

	if msg.LogPosition > member.LogPosition { member.LogPosition = msg.LogPosition }
	member.TimeOfLastAppendPositionNs = agent.opts.ClockNs()

	if agent.role == RoleLeader && member.CatchupReplaySessionID != 0 && msg.LogPosition >= agent.lastAppendPosition {
		agent.statusPublisher.StopCatchup(member.Publication, agent.leadershipTermID, member.ID)
		member.CatchupReplaySessionID = 0
		member.CatchupReplayCorrelationID = ""
	}
}

func (agent *ConsensusModuleAgent) OnCommitPosition(msg *statusrpc.StatusMessage) {
	if agent.election != nil {
		agent.election.OnCommitPosition(msg)
		return
	}

	if msg.LeadershipTermID > agent.leadershipTermID {
		agent.onCountedError("commit position for a newer term, entering election", nil)
		agent.enterElection(agent.opts.ClockNs(), false)
		return
	}

	if agent.role == RoleLeader {
		agent.onCountedError("commit position received while leading, entering election", nil)
		agent.enterElection(agent.opts.ClockNs(), false)
		return
	}

	if msg.LeaderMemberID != agent.members.LeaderID { return }

	if msg.LogPosition > agent.notifiedCommitPosition { agent.notifiedCommitPosition = msg.LogPosition }
	if msg.LogPosition > agent.commitPosition {
		agent.commitPosition = msg.LogPosition
		agent.counters.CommitPosition.Set(msg.LogPosition)
	}

	agent.timeOfLastLeaderUpdateNs = agent.opts.ClockNs()
}

/*
	live catch up leans on stream retention, the leader tracks the replay
	session against the member and releases it with stop catchup once the
	follower reports the tail
*/

func (agent *ConsensusModuleAgent) OnCatchupPosition(msg *statusrpc.StatusMessage) {
	if agent.role != RoleLeader { return }

	member := agent.findAnyMember(msg.FollowerMemberID)
	if member == nil { return }

	if member.CatchupReplaySessionID == 0 {
		replay, replayErr := agent.archive.StartReplay(agent.logRecordingID, msg.LogPosition, agent.lastAppendPosition)
		if replayErr != nil {
			agent.onCountedError("unable to start catchup replay:", replayErr)

			member.CatchupReplaySessionID = 0
			member.CatchupReplayCorrelationID = ""

			return
		}

		member.CatchupReplaySessionID = replay.SessionID
		member.CatchupReplayCorrelationID = replay.CorrelationID
		agent.archive.StopReplay(replay)
	}
}

func (agent *ConsensusModuleAgent) OnStopCatchup(msg *statusrpc.StatusMessage) {
	// catch up complete, nothing held on the follower side
}

func (agent *ConsensusModuleAgent) OnAddPassiveMember(msg *statusrpc.StatusMessage) {
	if agent.role != RoleLeader { return }

	added, parseErr := membership.ParseMembers(msg.MemberEndpoints)
	if parseErr != nil || len(added) == 0 {
		agent.onCountedError("unable to parse passive member endpoints:", parseErr)
		return
	}

	member := added[0]
	if agent.findAnyMember(member.ID) != nil { return }

	member.Publication = agent.medium.AddPublication(statusChannel(member.ID), StatusStreamID)
	agent.members.AddPassiveMember(member)

	agent.statusPublisher.ClusterMemberChange(member.Publication, msg.CorrelationID, agent.members.MemberID, membership.EncodeMembers(agent.members.Members), membership.EncodeMembers(agent.members.PassiveMembers))
}

func (agent *ConsensusModuleAgent) OnClusterMemberChange(msg *statusrpc.StatusMessage) {
	Log.Debug("cluster member change acknowledged by leader:", msg.LeaderMemberID)
}

func (agent *ConsensusModuleAgent) OnJoinCluster(msg *statusrpc.StatusMessage) {
	if agent.role != RoleLeader { return }

	member := agent.members.FindPassiveMember(msg.MemberID)
	if member != nil { member.HasRequestedJoin = true }
}

func (agent *ConsensusModuleAgent) OnSnapshotRecordingQuery(msg *statusrpc.StatusMessage) {
	entries := agent.snapshotPlanEntries()

	responder := agent.medium.AddPublication(statusChannel(msg.MemberID), StatusStreamID)
	agent.statusPublisher.SnapshotRecordingResponse(responder, msg.CorrelationID, entries, membership.EncodeMembers(agent.members.Members))
}

func (agent *ConsensusModuleAgent) OnSnapshotRecordingResponse(msg *statusrpc.StatusMessage) {
	if agent.dynamicJoin != nil { agent.dynamicJoin.OnSnapshotRecordingResponse(msg) }
}

func (agent *ConsensusModuleAgent) OnTerminationPosition(msg *statusrpc.StatusMessage) {
	if agent.role == RoleLeader { return }

	agent.terminationPosition = msg.LogPosition
}

func (agent *ConsensusModuleAgent) OnTerminationAck(msg *statusrpc.StatusMessage) {
	if agent.role != RoleLeader || agent.state != StateTerminating { return }

	if msg.LogPosition == agent.terminationPosition {
		agent.terminationAcks[msg.MemberID] = true

		member := agent.members.FindMember(msg.MemberID)
		if member != nil { member.HasTerminated = true }
	}
}

func (agent *ConsensusModuleAgent) OnBackupQuery(msg *statusrpc.StatusMessage) {
	entries := agent.snapshotPlanEntries()

	responder := agent.medium.AddPublication(msg.ResponseChannel, StatusStreamID)
	agent.statusPublisher.BackupResponse(responder, msg.CorrelationID, agent.commitPosition, entries, membership.EncodeMembers(agent.members.Members))
}

func (agent *ConsensusModuleAgent) OnBackupResponse(msg *statusrpc.StatusMessage) {
	Log.Debug("backup response received for correlation:", msg.CorrelationID)
}


//=========================================== Service Control Sink


func (agent *ConsensusModuleAgent) OnServiceAck(msg *servicerpc.ServiceControlMessage) {
	if agent.state == StateSnapshot {
		agent.onSnapshotServiceAck(msg.ServiceID, msg.LogPosition, msg.RelevantID)
	}
}

/*
	service originated commands ride the pending ring until the leader
	appends them, a full ring is fatal
*/

func (agent *ConsensusModuleAgent) OnServiceMessage(msg *servicerpc.ServiceControlMessage) {
	enqueueErr := agent.pendingQueue.Enqueue(msg.Payload)
	if enqueueErr != nil { agent.onFatalError("pending service message ring full:", enqueueErr) }
}

func (agent *ConsensusModuleAgent) OnScheduleTimer(msg *servicerpc.ServiceControlMessage) {
	agent.timerWheel.Schedule(msg.CorrelationID, msg.Deadline)
}

func (agent *ConsensusModuleAgent) OnCancelTimer(msg *servicerpc.ServiceControlMessage) {
	agent.timerWheel.Cancel(msg.CorrelationID)
}

func (agent *ConsensusModuleAgent) OnServiceCloseSession(msg *servicerpc.ServiceControlMessage) {
	if agent.role != RoleLeader { return }

	session := agent.registry.GetSession(msg.ClusterSessionID)
	if session == nil { return }

	agent.closeSession(session, clustersession.ServiceAction, agent.opts.ClockNs())
}

func (agent *ConsensusModuleAgent) OnClusterMembersQuery(msg *servicerpc.ServiceControlMessage) {
	agent.serviceProxy.ClusterMembersResponse(msg.CorrelationID, agent.members.LeaderID, membership.EncodeMembers(agent.members.Members), membership.EncodeMembers(agent.members.PassiveMembers))
}
