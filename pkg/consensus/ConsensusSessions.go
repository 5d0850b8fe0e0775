package consensus

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/ingressrpc"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/snapshot"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Session Lifecycle


/*
	Process Pending Sessions
		drive the authenticator handshake and the open append for sessions
		mid handshake, leader slow tick

		a session reaches the active table only after its SessionOpen entry
		has an append position
*/

func (agent *ConsensusModuleAgent) processPendingSessions(nowNs int64) int {
	work := 0
	nowMs := nowNs / 1_000_000

	pending := make([]*clustersession.ClusterSession, len(agent.registry.PendingSessions))
	copy(pending, agent.registry.PendingSessions)

	for _, session := range pending {
		switch session.State {
			case clustersession.Connected:
				agent.authenticator.OnConnectedSession(session, session.ID, nowMs)
				work++
			case clustersession.Challenged:
				if ! agent.challengeSent[session.ID] {
					agent.egressPublisher.SendChallenge(session.Responder, session.ID, session.CorrelationID, session.EncodedPrincipal)
					agent.challengeSent[session.ID] = true
					work++
				}

				agent.authenticator.OnChallengedSession(session, session.ID, nowMs)
			case clustersession.Authenticated:
				work += agent.completePendingSession(session, nowNs)
			case clustersession.Rejected:
				agent.registry.RemovePending(session)
				agent.registry.AddRejected(session)
				work++
		}

		if session.HasTimedOut(nowNs, agent.opts.SessionTimeoutNs) && session.State != clustersession.Authenticated {
			session.Reject("authentication timeout")
			agent.registry.RemovePending(session)
			agent.registry.AddRejected(session)
		}
	}

	return work
}

func (agent *ConsensusModuleAgent) completePendingSession(session *clustersession.ClusterSession, nowNs int64) int {
	if session.IsBackupQuery {
		agent.sendBackupReply(session)

		agent.registry.RemovePending(session)
		session.Close()
		if session.Responder != nil { session.Responder.Close() }

		return 1
	}

	position := agent.logPublisher.AppendSessionOpen(
		agent.leadershipTermID,
		nowNs,
		session.ID,
		session.CorrelationID,
		session.ResponseStreamID,
		session.ResponseChannel,
		session.EncodedPrincipal,
	)

	if position <= 0 { return 0 }

	openErr := agent.registry.OpenSession(session, position)
	if openErr != nil {
		agent.onCountedError("unable to open session:", openErr)
		return 0
	}

	agent.logPosition = position
	session.Activity(nowNs)
	delete(agent.challengeSent, session.ID)

	agent.egressPublisher.SendEvent(session.Responder, session.ID, session.CorrelationID, agent.leadershipTermID, agent.members.MemberID, ingressrpc.EventOK, "")

	return 1
}

/*
	rejected sessions get their final event then disconnect, same for
	redirects which carry the leader's ingress endpoints
*/

func (agent *ConsensusModuleAgent) processRejectedSessions() int {
	work := 0

	for _, session := range agent.registry.RejectedSessions {
		code := ingressrpc.EventError
		if session.RejectionDetail() == "authentication rejected" { code = ingressrpc.EventAuthenticationRejected }

		agent.egressPublisher.SendEvent(session.Responder, session.ID, session.CorrelationID, agent.leadershipTermID, agent.members.MemberID, code, session.RejectionDetail())

		session.Close()
		if session.Responder != nil { session.Responder.Close() }

		work++
	}

	agent.registry.RejectedSessions = nil

	return work
}

func (agent *ConsensusModuleAgent) processRedirectSessions() int {
	work := 0

	leader := agent.members.LeaderMember()
	detail := ""
	if leader != nil { detail = leader.ClientFacingEndpoint }

	for _, session := range agent.registry.RedirectSessions {
		agent.egressPublisher.SendEvent(session.Responder, session.ID, session.CorrelationID, agent.leadershipTermID, agent.members.LeaderID, ingressrpc.EventRedirect, detail)

		session.Close()
		if session.Responder != nil { session.Responder.Close() }

		work++
	}

	agent.registry.RedirectSessions = nil

	return work
}

/*
	Check Session Timeouts
		leader slow tick, an idle session gets a SessionClose appended with
		reason timeout, the close commits like any other entry
*/

func (agent *ConsensusModuleAgent) checkSessionTimeouts(nowNs int64) int {
	work := 0

	for _, session := range agent.registry.TimedOutSessions(nowNs) {
		if agent.closeSession(session, clustersession.Timeout, nowNs) {
			agent.counters.TimedOutClientCount.Increment()
			work++
		}
	}

	return work
}

/*
	Close Session
		append the close entry, on success the session leaves the active
		table and waits in the uncommitted ledger for the commit to pass its
		close position
*/

func (agent *ConsensusModuleAgent) closeSession(session *clustersession.ClusterSession, reason clustersession.CloseReason, nowNs int64) bool {
	position := agent.logPublisher.AppendSessionClose(agent.leadershipTermID, nowNs, session.ID, string(reason))
	if position <= 0 { return false }

	agent.logPosition = position

	session.ClosePending(reason, position)
	session.Close()

	agent.registry.RemoveSession(session.ID)
	agent.ledger.AddSessionClose(position, session)

	return true
}


//========================================== ingress sink


func (agent *ConsensusModuleAgent) OnSessionConnect(msg *ingressrpc.IngressMessage) transport.PollAction {
	nowNs := agent.opts.ClockNs()

	session := clustersession.NewClusterSession(msg.CorrelationID, msg.ResponseStreamID, msg.ResponseChannel)
	session.Responder = agent.medium.AddPublication(msg.ResponseChannel, msg.ResponseStreamID)
	session.Activity(nowNs)

	if agent.role != RoleLeader {
		agent.registry.AddRedirect(session)
		return transport.PollContinue
	}

	if snapshot.MajorVersion(msg.Version) != snapshot.MajorVersion(agent.opts.AppVersion) {
		agent.counters.InvalidRequestCount.Increment()
		session.Reject("invalid client version")
		agent.registry.AddRejected(session)

		return transport.PollContinue
	}

	if agent.registry.AtCapacity() {
		session.Reject("concurrent session limit exceeded")
		agent.registry.AddRejected(session)

		return transport.PollContinue
	}

	session.ID = agent.registry.AllocateSessionID()

	connectErr := session.Connect()
	if connectErr != nil {
		agent.onCountedError("unable to connect session:", connectErr)
		return transport.PollContinue
	}

	agent.authenticator.OnConnectRequest(session.ID, msg.EncodedCredentials, nowNs / 1_000_000)
	agent.registry.AddPending(session)

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnSessionClose(msg *ingressrpc.IngressMessage) transport.PollAction {
	if agent.role != RoleLeader { return transport.PollContinue }

	session := agent.registry.GetSession(msg.ClusterSessionID)
	if session == nil {
		agent.counters.InvalidRequestCount.Increment()
		return transport.PollContinue
	}

	if ! agent.closeSession(session, clustersession.ClientAction, agent.opts.ClockNs()) { return transport.PollAbort }

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnIngressMessage(msg *ingressrpc.IngressMessage) transport.PollAction {
	if agent.role != RoleLeader { return transport.PollContinue }

	session := agent.registry.GetSession(msg.ClusterSessionID)
	if session == nil || ! session.IsOpen() {
		agent.counters.InvalidRequestCount.Increment()
		return transport.PollContinue
	}

	nowNs := agent.opts.ClockNs()

	position := agent.logPublisher.AppendSessionMessage(agent.leadershipTermID, nowNs, session.ID, msg.Payload)
	if position <= 0 { return transport.PollAbort }

	agent.logPosition = position
	session.Activity(nowNs)

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnSessionKeepAlive(msg *ingressrpc.IngressMessage) transport.PollAction {
	session := agent.registry.GetSession(msg.ClusterSessionID)
	if session != nil { session.Activity(agent.opts.ClockNs()) }

	return transport.PollContinue
}

func (agent *ConsensusModuleAgent) OnChallengeResponse(msg *ingressrpc.IngressMessage) transport.PollAction {
	if agent.role != RoleLeader { return transport.PollContinue }

	session := agent.registry.FindPendingByCorrelation(msg.CorrelationID)
	if session == nil || session.State != clustersession.Challenged {
		agent.counters.InvalidRequestCount.Increment()
		return transport.PollContinue
	}

	agent.authenticator.OnChallengeResponse(session.ID, msg.EncodedCredentials, agent.opts.ClockNs() / 1_000_000)

	return transport.PollContinue
}

/*
	admin requests answer from agent state without touching the log
*/

func (agent *ConsensusModuleAgent) OnAdminRequest(msg *ingressrpc.IngressMessage) transport.PollAction {
	session := agent.registry.GetSession(msg.ClusterSessionID)

	switch msg.AdminRequestType {
		case ingressrpc.AdminClusterMembersQuery:
			if session == nil {
				agent.counters.InvalidRequestCount.Increment()
				return transport.PollContinue
			}

			payload, encodeErr := utils.EncodeStructToBytes[map[string]string](map[string]string{
				"activeMembers": membership.EncodeMembers(agent.members.Members),
				"passiveMembers": membership.EncodeMembers(agent.members.PassiveMembers),
			})

			if encodeErr != nil {
				agent.onCountedError("unable to encode members response:", encodeErr)
				return transport.PollContinue
			}

			agent.egressPublisher.SendAdminResponse(session.Responder, session.ID, msg.CorrelationID, payload)
		case ingressrpc.AdminBackupQuery:
			backup := clustersession.NewClusterSession(msg.CorrelationID, msg.ResponseStreamID, msg.ResponseChannel)
			backup.Responder = agent.medium.AddPublication(msg.ResponseChannel, msg.ResponseStreamID)
			backup.IsBackupQuery = true
			backup.Activity(agent.opts.ClockNs())

			if agent.role != RoleLeader {
				agent.registry.AddRedirect(backup)
				return transport.PollContinue
			}

			backup.ID = agent.registry.AllocateSessionID()

			connectErr := backup.Connect()
			if connectErr != nil { return transport.PollContinue }

			agent.authenticator.OnConnectRequest(backup.ID, msg.EncodedCredentials, agent.opts.ClockNs() / 1_000_000)
			agent.registry.AddPending(backup)
		default:
			agent.counters.InvalidRequestCount.Increment()
	}

	return transport.PollContinue
}

/*
	backup replies carry the recovery plan and membership so a backup node
	can seed its own recording log
*/

func (agent *ConsensusModuleAgent) sendBackupReply(session *clustersession.ClusterSession) {
	payload, encodeErr := utils.EncodeStructToBytes[map[string]interface{}](map[string]interface{}{
		"recoveryPlan": agent.recoveryPlan,
		"activeMembers": membership.EncodeMembers(agent.members.Members),
		"commitPosition": agent.commitPosition,
	})

	if encodeErr != nil {
		agent.onCountedError("unable to encode backup reply:", encodeErr)
		return
	}

	agent.egressPublisher.SendBackupReply(session.Responder, session.CorrelationID, payload)
}
