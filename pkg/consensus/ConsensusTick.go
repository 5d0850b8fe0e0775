package consensus

import "github.com/sirgallo/cluster/pkg/counters"
import "github.com/sirgallo/cluster/pkg/ingressrpc"
import "github.com/sirgallo/cluster/pkg/pendingqueue"
import "github.com/sirgallo/cluster/pkg/uncommitted"


//=========================================== Agent Run Loop


/*
	Do Work
		one cooperative tick, never blocks

		a slow tick runs at a bounded cadence for timeouts, counters, and the
		control toggle, then work dispatches in priority order:
		dynamic join > election > normal consensus work
*/

func (agent *ConsensusModuleAgent) DoWork() int {
	if agent.state == StateClosed { return 0 }

	work := 0
	nowNs := agent.opts.ClockNs()

	if nowNs >= agent.timeOfLastSlowTickNs + SlowTickIntervalNs {
		agent.timeOfLastSlowTickNs = nowNs
		work += agent.slowTick(nowNs)
	}

	// a fatal error or termination on the slow tick closes the module
	if agent.state == StateClosed { return work }

	if agent.dynamicJoin != nil && ! agent.dynamicJoin.IsDone() {
		work += agent.dynamicJoin.DoWork(nowNs)
		work += agent.statusAdapter.Poll(FragmentLimit)

		return work
	}

	if agent.election != nil {
		work += agent.election.DoWork(nowNs)
		work += agent.statusAdapter.Poll(FragmentLimit)

		if agent.election.IsClosed() { agent.election = nil }

		return work
	}

	work += agent.consensusWork(nowNs)

	return work
}

/*
	Slow Tick
		bounded frequency housekeeping for both roles
*/

func (agent *ConsensusModuleAgent) slowTick(nowNs int64) int {
	work := 0
	nowMs := nowNs / 1_000_000

	if nowMs >= agent.markFileDeadlineMs {
		agent.markFileDeadlineMs = nowMs + MarkFileUpdateIntervalMs

		markErr := agent.markFile.Update(nowMs)
		if markErr != nil { Log.Warn("unable to update mark file:", markErr.Error()) }
	}

	healthErr := agent.archive.CheckHealth()
	if healthErr != nil {
		agent.onFatalError("local archive disconnected:", healthErr)
		return work
	}

	if agent.election != nil || (agent.dynamicJoin != nil && ! agent.dynamicJoin.IsDone()) { return work }

	work += agent.processRedirectSessions()
	work += agent.processRejectedSessions()

	if agent.role == RoleLeader {
		work += agent.processControlToggle(nowNs)

		if agent.state == StateActive {
			work += agent.processPendingSessions(nowNs)
			work += agent.checkSessionTimeouts(nowNs)
			work += agent.processPassiveMembers(nowNs)
			work += agent.processMemberRemovals(nowNs)
		}

		work += agent.checkClusterTermination(nowNs)

		if agent.state == StateActive && ! agent.members.HaveQuorumAppendedWithin(nowNs - agent.opts.LeaderHeartbeatTimeoutNs) {
			agent.onCountedError("quorum of followers lost, entering election", nil)
			agent.enterElection(nowNs, false)
		}
	} else {
		work += agent.checkFollowerTermination(nowNs)

		if agent.state == StateActive && nowNs - agent.timeOfLastLeaderUpdateNs > agent.opts.LeaderHeartbeatTimeoutNs {
			agent.onCountedError("no heartbeat from leader, entering election", nil)
			agent.enterElection(nowNs, false)
		}
	}

	return work
}

/*
	Consensus Work
		the fast path, polled every tick
*/

func (agent *ConsensusModuleAgent) consensusWork(nowNs int64) int {
	work := 0

	if agent.role == RoleLeader {
		if agent.state == StateActive {
			work += agent.pollTimers(nowNs)
			work += agent.drainPendingServiceMessages(nowNs)
			if agent.ingressAdapter != nil { work += agent.ingressAdapter.Poll(FragmentLimit) }
		}
	} else {
		if agent.state == StateActive || agent.state == StateSuspended {
			if agent.ingressAdapter != nil { work += agent.ingressAdapter.Poll(FragmentLimit) }
			work += agent.pollLogAdapter(nowNs)
		}
	}

	work += agent.statusAdapter.Poll(FragmentLimit)
	work += agent.serviceAdapter.Poll(FragmentLimit)
	work += agent.updateMemberPosition(nowNs)

	return work
}

/*
	leader timer poll, each expiry appends a timer event, the append position
	lands in the uncommitted ledger, backpressure stops the poll with the
	timer still scheduled
*/

func (agent *ConsensusModuleAgent) pollTimers(nowNs int64) int {
	handler := func(correlationId int64) bool {
		position := agent.logPublisher.AppendTimerEvent(agent.leadershipTermID, nowNs, correlationId)
		if position <= 0 { return false }

		agent.ledger.AddTimer(position, correlationId, nowNs)
		agent.logPosition = position

		return true
	}

	return agent.timerWheel.Poll(nowNs, handler)
}

func (agent *ConsensusModuleAgent) drainPendingServiceMessages(nowNs int64) int {
	appendToLog := func(entry *pendingqueue.PendingServiceMessage) int64 {
		position := agent.logPublisher.AppendServiceSessionMessage(agent.leadershipTermID, nowNs, entry.ServiceSessionID, entry.Payload)
		if position > 0 {
			agent.ledger.AddServiceMessage(position)
			agent.logPosition = position
		}

		return position
	}

	return agent.pendingQueue.Poll(ServiceMessageLimit, appendToLog)
}

/*
	follower bounded log consumption, never past
	min(notified commit position, local append position)

	a closed image with no progress is a recoverable error that re-enters
	election
*/

func (agent *ConsensusModuleAgent) pollLogAdapter(nowNs int64) int {
	if agent.logAdapter == nil { return 0 }

	appendPosition := agent.logAdapter.Image.Stream.Position
	maxPosition := agent.notifiedCommitPosition
	if appendPosition < maxPosition { maxPosition = appendPosition }

	polled := agent.logAdapter.Poll(agent, maxPosition, LogFragmentLimit)

	if polled > 0 {
		agent.logPosition = agent.logAdapter.Position()
	} else if agent.logAdapter.IsImageClosed() && ! agent.logAdapter.IsEndOfStream() {
		agent.onCountedError("log image closed without progress, entering election", nil)
		agent.enterElection(nowNs, false)
	}

	if appendPosition > agent.lastAppendPosition { agent.lastAppendPosition = appendPosition }

	return polled
}

/*
	Update Member Position
		leader: advance the commit position to
		min(quorum position, local append position), release uncommitted
		bookkeeping, broadcast on advance or heartbeat cadence, and effect
		pending member removals

		follower: report the local append position to the leader
*/

func (agent *ConsensusModuleAgent) updateMemberPosition(nowNs int64) int {
	work := 0

	if agent.role == RoleLeader {
		appendPosition := agent.logPublisher.Position()
		agent.lastAppendPosition = appendPosition

		self := agent.members.FindMember(agent.members.MemberID)
		if self != nil {
			self.LogPosition = appendPosition
			self.TimeOfLastAppendPositionNs = nowNs
		}

		newCommit := agent.members.QuorumPosition()
		if appendPosition < newCommit { newCommit = appendPosition }

		if newCommit > agent.commitPosition {
			agent.advanceCommit(newCommit, nowNs)
			work++
		} else if nowNs - agent.timeOfLastCommitSendNs >= agent.opts.LeaderHeartbeatIntervalNs {
			agent.broadcastCommitPosition(nowNs)
		}

		work += agent.effectMemberRemovals()
	} else {
		leader := agent.members.LeaderMember()

		if leader != nil && agent.logAdapter != nil {
			appendPosition := agent.logAdapter.Image.Stream.Position

			if appendPosition != agent.lastAppendPosition || nowNs - agent.timeOfLastAppendSendNs >= agent.opts.LeaderHeartbeatIntervalNs {
				agent.lastAppendPosition = appendPosition
				agent.timeOfLastAppendSendNs = nowNs
				agent.statusPublisher.AppendPosition(leader.Publication, agent.leadershipTermID, appendPosition, agent.members.MemberID)
			}
		}
	}

	return work
}

func (agent *ConsensusModuleAgent) advanceCommit(newCommit int64, nowNs int64) {
	agent.pendingQueue.LeaderSweep(newCommit)

	handlers := uncommitted.CommitHandlers{
		OnSessionCloseCommitted: func(entry uncommitted.UncommittedEntry) {
			session := entry.Session

			agent.egressPublisher.SendEvent(session.Responder, session.ID, session.CorrelationID, agent.leadershipTermID, agent.members.MemberID, ingressrpc.EventClosed, string(session.CloseReason))
			if session.Responder != nil { session.Responder.Close() }
		},
	}

	agent.ledger.CommitTo(newCommit, handlers)

	agent.commitPosition = newCommit
	agent.notifiedCommitPosition = newCommit
	agent.counters.CommitPosition.Set(newCommit)

	agent.broadcastCommitPosition(nowNs)
}

func (agent *ConsensusModuleAgent) broadcastCommitPosition(nowNs int64) {
	agent.timeOfLastCommitSendNs = nowNs

	for _, member := range agent.members.Members {
		if member.ID == agent.members.MemberID { continue }
		agent.statusPublisher.CommitPosition(member.Publication, agent.leadershipTermID, agent.commitPosition, agent.members.MemberID)
	}

	for _, member := range agent.members.PassiveMembers {
		agent.statusPublisher.CommitPosition(agent.memberPublication(member), agent.leadershipTermID, agent.commitPosition, agent.members.MemberID)
	}
}

func (agent *ConsensusModuleAgent) effectMemberRemovals() int {
	work := 0

	for _, member := range agent.members.Members {
		if member.HasRequestedRemove && member.RemovalPosition != NullPosition && member.RemovalPosition <= agent.commitPosition {
			agent.members.RemoveMember(member.ID)
			work++
		}
	}

	return work
}

/*
	Process Control Toggle
		operator driven actions, leader only on the slow tick
*/

func (agent *ConsensusModuleAgent) processControlToggle(nowNs int64) int {
	action := agent.toggle.Get()

	switch action {
		case counters.Suspend:
			if agent.state == StateActive && agent.toggle.Accept(counters.Suspend) {
				agent.moduleStateTransition(StateSuspended)
				return 1
			}
		case counters.Resume:
			if agent.state == StateSuspended && agent.toggle.Accept(counters.Resume) {
				agent.moduleStateTransition(StateActive)
				return 1
			}
		case counters.Snapshot:
			if agent.state == StateActive && agent.toggle.Accept(counters.Snapshot) {
				return agent.appendSnapshotAction(nowNs, false)
			}
		case counters.Shutdown:
			if agent.state == StateActive && agent.toggle.Accept(counters.Shutdown) {
				return agent.appendSnapshotAction(nowNs, true)
			}
		case counters.Abort:
			if agent.toggle.Accept(counters.Abort) {
				agent.beginClusterTermination(nowNs, agent.logPosition)
				return 1
			}
	}

	return 0
}
