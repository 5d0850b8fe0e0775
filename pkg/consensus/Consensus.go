package consensus

import "fmt"
import "time"

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/counters"
import "github.com/sirgallo/cluster/pkg/dynamicjoin"
import "github.com/sirgallo/cluster/pkg/ingressrpc"
import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/logstream"
import "github.com/sirgallo/cluster/pkg/markfile"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/pendingqueue"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/servicerpc"
import "github.com/sirgallo/cluster/pkg/statusrpc"
import "github.com/sirgallo/cluster/pkg/timerwheel"
import "github.com/sirgallo/cluster/pkg/uncommitted"


//=========================================== Consensus Module Agent


var Log = clog.NewCustomLog(NAME)

/*
	initialize the agent and link the submodules together

	the agent owns every submodule, adapters call back through the sink
	surfaces the agent implements, election and dynamic join hold plain
	references to the agent and never own it
*/

func NewConsensusModuleAgent(opts ConsensusModuleOpts) (*ConsensusModuleAgent, error) {
	if opts.ClockNs == nil { opts.ClockNs = func() int64 { return time.Now().UnixNano() } }
	if opts.TimeUnit == "" { opts.TimeUnit = TimeUnitNs }
	if opts.Authenticator == nil { opts.Authenticator = &clustersession.AllowAllAuthenticator{} }

	parsedMembers, parseErr := membership.ParseMembers(opts.ClusterMembers)
	if parseErr != nil { return nil, parseErr }

	set := membership.NewMembershipSet(opts.MemberID, parsedMembers)

	agent := &ConsensusModuleAgent{
		opts: opts,
		medium: opts.Medium,
		archive: opts.Archive,
		recordingLog: opts.RecordingLog,
		members: set,
		counters: counters.NewConsensusCounters(),
		toggle: counters.NewControlToggle(),
		statusPublisher: statusrpc.NewStatusPublisher(),
		egressPublisher: ingressrpc.NewEgressPublisher(),
		authenticator: opts.Authenticator,
		state: StateInit,
		role: RoleFollower,
		logRecordingID: NullRecordingID,
		terminationPosition: NullPosition,
		expectedAckPosition: NullPosition,
		serviceAcks: make(map[int32]*serviceAck),
		challengeSent: make(map[int64]bool),
		terminationAcks: make(map[int32]bool),
		Log: Log,
	}

	agent.registry = clustersession.NewSessionRegistry(clustersession.SessionRegistryOpts{
		MaxConcurrentSessions: opts.MaxConcurrentSessions,
		SessionTimeoutNs: opts.SessionTimeoutNs,
	})

	agent.timerWheel = timerwheel.NewTimerWheel(timerwheel.TimerWheelOpts{
		StartTime: opts.ClockNs(),
		TickResolution: opts.WheelTickResolutionNs,
		TicksPerWheel: opts.TicksPerWheel,
	})

	agent.pendingQueue = pendingqueue.NewPendingMessageQueue(pendingqueue.PendingQueueOpts{
		Capacity: opts.PendingMessageCapacity,
	})

	agent.ledger = uncommitted.NewLedger()

	statusSub := opts.Medium.AddSubscription(statusChannel(opts.MemberID), StatusStreamID)
	agent.statusAdapter = statusrpc.NewStatusAdapter(statusSub, agent)

	serviceSub := opts.Medium.AddSubscription(consensusControlChannel(opts.MemberID), ServiceControlStreamID)
	agent.serviceAdapter = servicerpc.NewServiceAdapter(serviceSub, agent)

	servicePub := opts.Medium.AddPublication(serviceControlChannel(opts.MemberID), ServiceControlStreamID)
	agent.serviceProxy = servicerpc.NewServiceProxy(servicePub)

	for _, member := range set.Members {
		if member.ID == opts.MemberID { continue }
		member.Publication = opts.Medium.AddPublication(statusChannel(member.ID), StatusStreamID)
	}

	self := set.SelfMember()
	if self != nil {
		ingressSub := opts.Medium.AddSubscription(self.ClientFacingEndpoint, IngressStreamID)
		agent.ingressAdapter = ingressrpc.NewIngressAdapter(ingressSub, agent)
	}

	mark, markErr := markfile.NewMarkFile(opts.ClusterDir, opts.MemberID)
	if markErr != nil { return nil, markErr }

	agent.markFile = mark

	agent.counters.ModuleState.Set(int64(StateInit))
	agent.counters.ClusterRole.Set(int64(RoleFollower))
	agent.toggle.Deactivate()

	return agent, nil
}

/*
	On Start
		run recovery then hand over to either dynamic join (empty membership)
		or a startup election

		1.) build the recovery plan from the recording log and archive
		2.) load the latest valid module snapshot when one exists
		3.) replay the recorded log from the snapshot position to the
			appended position, recovered entries are treated as committed
		4.) notify services of the log join
*/

func (agent *ConsensusModuleAgent) OnStart() error {
	recoverErr := agent.recoverState()
	if recoverErr != nil { return recoverErr }

	nowNs := agent.opts.ClockNs()

	if agent.toggle.Get() == counters.Suspend {
		agent.moduleStateTransition(StateSuspended)
	} else { agent.moduleStateTransition(StateActive) }

	agent.serviceProxy.JoinLog(agent.logPosition, NullPosition, agent.members.MemberID, LogChannel, LogStreamID, true, int32(agent.role))

	if len(agent.members.Members) == 0 && len(agent.opts.MemberStatusEndpoints) > 0 {
		var peers []dynamicjoin.PeerEndpoint
		for _, endpoint := range agent.opts.MemberStatusEndpoints {
			peers = append(peers, dynamicjoin.PeerEndpoint{
				Host: endpoint,
				Publication: agent.medium.AddPublication(endpoint, StatusStreamID),
			})
		}

		agent.dynamicJoin = dynamicjoin.NewDynamicJoin(dynamicjoin.DynamicJoinOpts{
			Host: agent,
			Peers: peers,
			NowNs: nowNs,
			QueryIntervalNs: agent.opts.ElectionTimeoutNs,
		})

		return nil
	}

	agent.enterElection(nowNs, true)

	return nil
}

func (agent *ConsensusModuleAgent) recoverState() error {
	plan, planErr := agent.recordingLog.CreateRecoveryPlan(agent.archive, agent.opts.ServiceCount)
	if planErr != nil { return planErr }

	agent.recoveryPlan = plan

	if len(plan.Snapshots) > 0 {
		moduleEntry := plan.Snapshots[len(plan.Snapshots) - 1]

		loadErr := agent.loadSnapshot(moduleEntry.RecordingID)
		if loadErr != nil { return loadErr }
	}

	if plan.Log != nil {
		agent.logRecordingID = plan.Log.RecordingID
		agent.termBaseLogPosition = plan.Log.StartPosition

		if plan.Log.StopPosition > plan.Log.StartPosition {
			replayErr := agent.replayRecordedLog(plan.Log)
			if replayErr != nil { return replayErr }
		}
	}

	agent.leadershipTermID = plan.LastLeadershipTermID

	if plan.AppendedLogPosition > agent.logPosition { agent.logPosition = plan.AppendedLogPosition }

	agent.lastAppendPosition = agent.logPosition
	agent.commitPosition = agent.logPosition
	agent.notifiedCommitPosition = agent.logPosition
	agent.counters.CommitPosition.Set(agent.commitPosition)

	Log.Info("recovery complete, leadership term:", agent.leadershipTermID, "log position:", agent.logPosition)

	return nil
}

/*
	replay the recorded log through the log sink, an idle spin with interrupt
	style checks, a closed replay image before the stop position is a
	termination failure
*/

func (agent *ConsensusModuleAgent) replayRecordedLog(planLog *recordinglog.RecoveryPlanLog) error {
	session, replayErr := agent.archive.StartReplay(planLog.RecordingID, planLog.StartPosition, planLog.StopPosition)
	if replayErr != nil { return replayErr }

	defer agent.archive.StopReplay(session)

	adapter := logstream.NewLogAdapter(session.Subscription.Image)

	for adapter.Position() < planLog.StopPosition {
		polled := adapter.Poll(agent, planLog.StopPosition, LogFragmentLimit)

		if polled == 0 {
			if adapter.IsEndOfStream() { break }
			time.Sleep(time.Millisecond)
		}
	}

	agent.logPosition = adapter.Position()

	return nil
}

func (agent *ConsensusModuleAgent) CommitPosition() int64 {
	return agent.commitPosition
}

func (agent *ConsensusModuleAgent) LogPosition() int64 {
	return agent.logPosition
}

func (agent *ConsensusModuleAgent) State() ModuleState {
	return agent.state
}

func (agent *ConsensusModuleAgent) Role() Role {
	return agent.role
}

func (agent *ConsensusModuleAgent) Counters() *counters.ConsensusCounters {
	return agent.counters
}

func (agent *ConsensusModuleAgent) ControlToggle() *counters.ControlToggle {
	return agent.toggle
}

func (agent *ConsensusModuleAgent) Membership() *membership.MembershipSet {
	return agent.members
}

func (agent *ConsensusModuleAgent) SessionRegistry() *clustersession.SessionRegistry {
	return agent.registry
}

func (agent *ConsensusModuleAgent) PendingMessages() *pendingqueue.PendingMessageQueue {
	return agent.pendingQueue
}


//========================================== state machine helpers


/*
	every module state change lands on the observable counter, no state is
	ever written outside this helper
*/

func (agent *ConsensusModuleAgent) moduleStateTransition(next ModuleState) {
	if agent.state == StateClosed { return }

	agent.state = next
	agent.counters.ModuleState.Set(int64(next))
}

func (agent *ConsensusModuleAgent) roleTransition(next Role) {
	agent.role = next
	agent.counters.ClusterRole.Set(int64(next))
}


//========================================== error handling


/*
	recoverable errors count and log, fatal errors close the module and run
	the termination hook, errors never unwind across a DoWork boundary
*/

func (agent *ConsensusModuleAgent) onCountedError(context string, err error) {
	agent.counters.ErrorCount.Increment()

	if err != nil {
		Log.Error(context, err.Error())
	} else { Log.Error(context) }
}

func (agent *ConsensusModuleAgent) onFatalError(context string, err error) {
	agent.onCountedError(context, err)

	agent.moduleStateTransition(StateClosed)
	agent.closeResources()

	if agent.opts.TerminationHook != nil { agent.opts.TerminationHook() }
}

/*
	scoped close, every resource is closed even if a prior close failed
*/

func (agent *ConsensusModuleAgent) closeResources() {
	if agent.logPublisher != nil { agent.logPublisher.Disconnect() }
	if agent.logAdapter != nil { agent.logAdapter.Close() }
	if agent.ingressAdapter != nil { agent.ingressAdapter.Close() }

	for _, session := range agent.registry.SessionByID {
		if session.Responder != nil { session.Responder.Close() }
	}
}


//========================================== channel naming


func statusChannel(memberId int32) string {
	return fmt.Sprintf("member-status:%d", memberId)
}

func serviceControlChannel(memberId int32) string {
	return fmt.Sprintf("service-control:%d", memberId)
}

func consensusControlChannel(memberId int32) string {
	return fmt.Sprintf("consensus-control:%d", memberId)
}

func snapshotChannel(memberId int32, logPosition int64) string {
	return fmt.Sprintf("snapshot:%d:%d", memberId, logPosition)
}
