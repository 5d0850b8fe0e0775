package consensus

import "errors"
import "time"

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/logstream"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/pendingqueue"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/snapshot"


//=========================================== Snapshot Coordination


/*
	Append Snapshot Action
		leader side snapshot trigger, the ClusterAction entry marks the
		position every member and service snapshots at

		a shutdown sets the termination position so the module terminates
		once the snapshot lands
*/

func (agent *ConsensusModuleAgent) appendSnapshotAction(nowNs int64, isShutdown bool) int {
	position := agent.logPublisher.AppendClusterAction(agent.leadershipTermID, nowNs, logstream.ActionSnapshot)
	if position <= 0 { return 0 }

	agent.logPosition = position

	// the termination position must be pinned before the snapshot completes,
	// with no services the take runs synchronously inside beginSnapshot
	if isShutdown { agent.terminationPosition = position }

	agent.beginSnapshot(position)

	return 1
}

func (agent *ConsensusModuleAgent) beginSnapshot(logPosition int64) {
	agent.expectedAckPosition = logPosition
	agent.serviceAcks = make(map[int32]*serviceAck)
	agent.moduleStateTransition(StateSnapshot)

	if agent.opts.ServiceCount == 0 { agent.takeSnapshot(logPosition) }
}

/*
	services acknowledge reaching the snapshot position with the recording id
	of their own snapshot, an ack at any other position is fatal, the state
	machines have diverged
*/

func (agent *ConsensusModuleAgent) onSnapshotServiceAck(serviceId int32, logPosition int64, relevantId int64) {
	if logPosition != agent.expectedAckPosition {
		agent.onFatalError("service ack at unexpected log position:", errors.New("state diverged from services"))
		return
	}

	agent.serviceAcks[serviceId] = &serviceAck{
		logPosition: logPosition,
		relevantId: relevantId,
	}

	if len(agent.serviceAcks) >= agent.opts.ServiceCount { agent.takeSnapshot(agent.expectedAckPosition) }
}

/*
	Take Snapshot
		1.) exclusive publication on a fresh snapshot stream, recorded by the
			archive
		2.) emit begin marker, module state, membership, open and pending
			close sessions, the timer wheel, the pending message ring, end
			marker
		3.) wait for the recording to cover the publication position
		4.) append snapshot entries, services first then the module sentinel,
			and force the recording log
*/

func (agent *ConsensusModuleAgent) takeSnapshot(logPosition int64) {
	nowNs := agent.opts.ClockNs()

	pub := agent.medium.AddPublication(snapshotChannel(agent.members.MemberID, logPosition), SnapshotStreamID)

	recordingId, recordErr := agent.archive.StartRecording(pub)
	if recordErr != nil {
		agent.onFatalError("unable to start snapshot recording:", recordErr)
		return
	}

	taker := snapshot.NewSnapshotTaker(pub)

	takeErr := agent.writeSnapshot(taker, logPosition)
	if takeErr != nil {
		agent.onFatalError("snapshot recording stopped:", takeErr)
		return
	}

	awaitErr := agent.awaitRecordingPosition(recordingId, taker.Position())
	if awaitErr != nil {
		agent.onFatalError("unable to await snapshot recording position:", awaitErr)
		return
	}

	stopErr := agent.archive.StopRecording(recordingId)
	if stopErr != nil { Log.Warn("unable to stop snapshot recording:", stopErr.Error()) }

	pub.CloseStream()

	for serviceId := int32(0); serviceId < int32(agent.opts.ServiceCount); serviceId++ {
		ack := agent.serviceAcks[serviceId]
		if ack == nil { continue }

		_, appendErr := agent.recordingLog.AppendSnapshot(ack.relevantId, agent.leadershipTermID, agent.termBaseLogPosition, logPosition, nowNs, serviceId)
		if appendErr != nil {
			agent.onFatalError("unable to append service snapshot entry:", appendErr)
			return
		}
	}

	_, appendErr := agent.recordingLog.AppendSnapshot(recordingId, agent.leadershipTermID, agent.termBaseLogPosition, logPosition, nowNs, recordinglog.ServiceIDSentinel)
	if appendErr != nil {
		agent.onFatalError("unable to append module snapshot entry:", appendErr)
		return
	}

	agent.counters.SnapshotCount.Increment()

	Log.Info("snapshot taken at log position:", logPosition)

	if agent.terminationPosition != NullPosition && agent.role == RoleLeader {
		agent.beginClusterTermination(nowNs, agent.terminationPosition)
	} else { agent.moduleStateTransition(StateActive) }
}

func (agent *ConsensusModuleAgent) writeSnapshot(taker *snapshot.SnapshotTaker, logPosition int64) error {
	beginErr := taker.MarkBegin(logPosition, agent.leadershipTermID, agent.opts.TimeUnit, agent.opts.AppVersion)
	if beginErr != nil { return beginErr }

	stateErr := taker.SnapshotConsensusModuleState(agent.registry.NextSessionID, agent.pendingQueue.NextServiceSessionID, agent.pendingQueue.LogServiceSessionID, agent.pendingQueue.Capacity())
	if stateErr != nil { return stateErr }

	memberErr := taker.SnapshotMembership(agent.members)
	if memberErr != nil { return memberErr }

	for _, session := range agent.registry.SessionByID {
		sessionErr := taker.SnapshotSession(session)
		if sessionErr != nil { return sessionErr }
	}

	for _, session := range agent.ledger.UncommittedClosedSessions() {
		sessionErr := taker.SnapshotSession(session)
		if sessionErr != nil { return sessionErr }
	}

	timerErr := taker.SnapshotTimers(agent.timerWheel)
	if timerErr != nil { return timerErr }

	pendingErr := taker.SnapshotPendingMessages(agent.pendingQueue)
	if pendingErr != nil { return pendingErr }

	return taker.MarkEnd(logPosition)
}

func (agent *ConsensusModuleAgent) awaitRecordingPosition(recordingId int64, targetPosition int64) error {
	for {
		position, posErr := agent.archive.RecordingPosition(recordingId)
		if posErr != nil { return posErr }

		if position >= targetPosition { return nil }

		time.Sleep(time.Millisecond)
	}
}

/*
	Load Snapshot
		recovery side, symmetric with takeSnapshot, pending message slots
		come back with their sentinels reset since nothing has been
		re-appended in this term
*/

func (agent *ConsensusModuleAgent) loadSnapshot(recordingId int64) error {
	session, replayErr := agent.archive.StartReplay(recordingId, 0, -1)
	if replayErr != nil { return replayErr }

	defer agent.archive.StopReplay(session)

	loader := snapshot.NewSnapshotLoader(session.Subscription.Image)

	snap, loadErr := loader.Load(agent.opts.TimeUnit, agent.opts.AppVersion)
	if loadErr != nil { return loadErr }

	agent.logPosition = snap.LogPosition
	agent.leadershipTermID = snap.LeadershipTermID

	agent.registry.NextSessionID = snap.NextSessionID

	if snap.Members != "" {
		loaded, parseErr := membership.ParseMembers(snap.Members)
		if parseErr != nil { return parseErr }

		agent.members.Members = loaded

		for _, member := range agent.members.Members {
			if member.ID == agent.members.MemberID { continue }
			member.Publication = agent.medium.AddPublication(statusChannel(member.ID), StatusStreamID)
		}
	}

	for _, sessionSnap := range snap.Sessions {
		if sessionSnap.State != clustersession.Open { continue }

		restored := clustersession.NewClusterSession(sessionSnap.CorrelationID, sessionSnap.ResponseStreamID, sessionSnap.ResponseChannel)
		restored.ID = sessionSnap.ID
		restored.Responder = agent.medium.AddPublication(sessionSnap.ResponseChannel, sessionSnap.ResponseStreamID)
		restored.TimeOfLastActivityNs = sessionSnap.TimeOfLastActivityNs

		connectErr := restored.Connect()
		if connectErr != nil { return connectErr }

		restored.Authenticate(nil)

		openErr := restored.Opened(sessionSnap.OpenedLogPosition)
		if openErr != nil { return openErr }

		agent.registry.SessionByID[restored.ID] = restored
	}

	for _, timer := range snap.Timers {
		agent.timerWheel.Schedule(timer.CorrelationID, timer.Deadline)
	}

	agent.pendingQueue = pendingqueue.NewPendingMessageQueue(pendingqueue.PendingQueueOpts{
		Capacity: snap.PendingMessageCapacity,
	})

	for _, pending := range snap.PendingMessages {
		agent.pendingQueue.RestoreEntry(pending.ServiceSessionID, pending.Payload)
	}

	agent.pendingQueue.NextServiceSessionID = snap.NextServiceSessionID
	agent.pendingQueue.LogServiceSessionID = snap.LogServiceSessionID

	Log.Info("snapshot loaded at log position:", snap.LogPosition)

	return nil
}


//========================================== termination


/*
	Begin Cluster Termination
		leader broadcasts the termination position to services and members,
		then waits for acks within the termination budget
*/

func (agent *ConsensusModuleAgent) beginClusterTermination(nowNs int64, logPosition int64) {
	agent.terminationPosition = logPosition
	agent.terminationAcks = make(map[int32]bool)
	agent.terminationDeadlineNs = nowNs + agent.opts.TerminationTimeoutNs

	agent.serviceProxy.TerminationPosition(logPosition)

	for _, member := range agent.members.Members {
		if member.ID == agent.members.MemberID { continue }
		agent.statusPublisher.TerminationPosition(member.Publication, agent.leadershipTermID, logPosition)
	}

	agent.moduleStateTransition(StateTerminating)
}

/*
	Check Cluster Termination
		leader slow tick, once every member acked (or the budget expired) the
		final commit log position is written and the hook runs
*/

func (agent *ConsensusModuleAgent) checkClusterTermination(nowNs int64) int {
	if agent.state != StateTerminating { return 0 }

	acked := 0
	for _, member := range agent.members.Members {
		if member.ID == agent.members.MemberID { continue }
		if agent.terminationAcks[member.ID] { acked++ }
	}

	if acked >= len(agent.members.Members) - 1 || nowNs >= agent.terminationDeadlineNs {
		agent.terminate()
		return 1
	}

	return 0
}

func (agent *ConsensusModuleAgent) checkFollowerTermination(nowNs int64) int {
	if agent.state == StateQuitting {
		agent.terminate()
		return 1
	}

	if agent.terminationPosition == NullPosition { return 0 }
	if agent.logPosition < agent.terminationPosition { return 0 }

	agent.serviceProxy.TerminationPosition(agent.terminationPosition)

	leader := agent.members.LeaderMember()
	if leader != nil {
		agent.statusPublisher.TerminationAck(leader.Publication, agent.leadershipTermID, agent.terminationPosition, agent.members.MemberID)
	}

	agent.moduleStateTransition(StateTerminating)
	agent.terminate()

	return 1
}

func (agent *ConsensusModuleAgent) terminate() {
	commitErr := agent.recordingLog.CommitLogPosition(agent.leadershipTermID, agent.logPosition)
	if commitErr != nil { Log.Warn("unable to commit final log position:", commitErr.Error()) }

	agent.moduleStateTransition(StateClosed)
	agent.closeResources()

	if agent.opts.TerminationHook != nil { agent.opts.TerminationHook() }
}
