package consensustests

import "fmt"
import "path/filepath"
import "strings"
import "testing"

import "github.com/sirgallo/cluster/pkg/archive"
import "github.com/sirgallo/cluster/pkg/client"
import "github.com/sirgallo/cluster/pkg/consensus"
import "github.com/sirgallo/cluster/pkg/counters"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/statusrpc"
import "github.com/sirgallo/cluster/pkg/transport"


const appVersion = int32(1 << 16)

type testClock struct {
	nowNs int64
}

type testCluster struct {
	medium   *transport.TransportMedium
	clock    *testClock
	agents   []*consensus.ConsensusModuleAgent
	archives []*archive.Archive
	stopped  map[int]bool
	hooks    map[int]*int
}

func encodeTestMembers(total int) string {
	var encoded []string
	for idx := 0; idx < total; idx++ {
		encoded = append(encoded, fmt.Sprintf("%d,ingress:%d,member-status:%d,transfer:%d,log:%d", idx, idx, idx, idx, idx))
	}

	return strings.Join(encoded, "|")
}

func SetupMockCluster(t *testing.T, total int, heartbeatTimeoutNs int64, sessionTimeoutNs int64) *testCluster {
	cluster := &testCluster{
		medium: transport.NewTransportMedium(),
		clock: &testClock{ nowNs: 1_000_000_000 },
		stopped: make(map[int]bool),
		hooks: make(map[int]*int),
	}

	members := encodeTestMembers(total)

	for idx := 0; idx < total; idx++ {
		dir := t.TempDir()

		arc, archiveErr := archive.NewArchive(archive.ArchiveOpts{ DBPath: filepath.Join(dir, "archive.db") })
		if archiveErr != nil { t.Fatalf("unable to create archive: %s", archiveErr.Error()) }
		t.Cleanup(func() { arc.Close() })

		rlog, rlogErr := recordinglog.NewRecordingLog(recordinglog.RecordingLogOpts{
			DBPath: filepath.Join(dir, "recordinglog.db"),
			FileSyncLevel: 0,
		})
		if rlogErr != nil { t.Fatalf("unable to create recording log: %s", rlogErr.Error()) }
		t.Cleanup(func() { rlog.Close() })

		hookCount := 0
		cluster.hooks[idx] = &hookCount

		agent, agentErr := consensus.NewConsensusModuleAgent(consensus.ConsensusModuleOpts{
			MemberID: int32(idx),
			ClusterMembers: members,
			ClusterDir: dir,
			AppVersion: appVersion,
			ServiceCount: 0,
			Medium: cluster.medium,
			Archive: arc,
			RecordingLog: rlog,
			TerminationHook: func() { hookCount++ },
			ClockNs: func() int64 { return cluster.clock.nowNs },
			MaxConcurrentSessions: 16,
			PendingMessageCapacity: 64,
			SessionTimeoutNs: sessionTimeoutNs,
			LeaderHeartbeatIntervalNs: 50_000_000,
			LeaderHeartbeatTimeoutNs: heartbeatTimeoutNs,
			ElectionTimeoutNs: 1_000_000_000,
			CatchupTimeoutNs: 5_000_000_000,
			TerminationTimeoutNs: 5_000_000_000,
			WheelTickResolutionNs: 1_000_000,
			TicksPerWheel: 64,
		})
		if agentErr != nil { t.Fatalf("unable to create agent: %s", agentErr.Error()) }

		if startErr := agent.OnStart(); startErr != nil { t.Fatalf("unable to start agent: %s", startErr.Error()) }

		cluster.agents = append(cluster.agents, agent)
		cluster.archives = append(cluster.archives, arc)
	}

	return cluster
}

func (cluster *testCluster) tick(rounds int, advanceNs int64, between func()) {
	for round := 0; round < rounds; round++ {
		cluster.clock.nowNs = cluster.clock.nowNs + advanceNs

		for idx, agent := range cluster.agents {
			if cluster.stopped[idx] { continue }
			agent.DoWork()
		}

		if between != nil { between() }
	}
}

func (cluster *testCluster) leaderIndex() int {
	for idx, agent := range cluster.agents {
		if cluster.stopped[idx] { continue }
		if agent.Role() == consensus.RoleLeader { return idx }
	}

	return -1
}


//========================================== scenarios


func TestThreeNodeElection(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 10_000_000_000, 10_000_000_000)

	cluster.tick(40, 20_000_000, nil)

	leader := cluster.leaderIndex()

	expectedLeader := 0
	t.Logf("actual leader: %d, expected leader: %d\n", leader, expectedLeader)
	if leader != expectedLeader {
		t.Fatalf("actual leader not equal to expected: actual(%d), expected(%d)\n", leader, expectedLeader)
	}

	for idx, agent := range cluster.agents {
		if agent.State() != consensus.StateActive {
			t.Errorf("member %d not active after election: actual(%d)\n", idx, agent.State())
		}

		if idx != leader && agent.Role() != consensus.RoleFollower {
			t.Errorf("member %d not follower after election: actual(%d)\n", idx, agent.Role())
		}
	}
}

func TestClientSessionOpenAcrossCluster(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 10_000_000_000, 10_000_000_000)
	cluster.tick(40, 20_000_000, nil)

	if cluster.leaderIndex() != 0 { t.Fatalf("expected member 0 to lead\n") }

	cli := client.NewClusterClient(client.ClusterClientOpts{
		Medium: cluster.medium,
		IngressChannel: "ingress:0",
		Version: appVersion,
	})

	if connectErr := cli.Connect(nil); connectErr != nil {
		t.Fatalf("unable to connect client: %s", connectErr.Error())
	}

	cluster.tick(40, 20_000_000, func() { cli.PollEgress() })

	t.Logf("actual session id: %d, expected session id: > 0\n", cli.SessionID)
	if cli.SessionID <= 0 {
		t.Fatalf("client session never opened: actual(%d)\n", cli.SessionID)
	}

	for idx, agent := range cluster.agents {
		session := agent.SessionRegistry().GetSession(cli.SessionID)
		if session == nil || ! session.IsOpen() {
			t.Errorf("member %d missing open session %d\n", idx, cli.SessionID)
		}
	}

	leaderCommit := cluster.agents[0].CommitPosition()
	for idx, agent := range cluster.agents {
		if agent.CommitPosition() != leaderCommit {
			t.Errorf("member %d commit position diverged: actual(%d), expected(%d)\n", idx, agent.CommitPosition(), leaderCommit)
		}
	}

	openPosition := agentSessionOpenPosition(cluster.agents[0], cli.SessionID)
	if leaderCommit < openPosition {
		t.Errorf("commit position did not pass session open: actual(%d), open(%d)\n", leaderCommit, openPosition)
	}
}

func agentSessionOpenPosition(agent *consensus.ConsensusModuleAgent, sessionId int64) int64 {
	session := agent.SessionRegistry().GetSession(sessionId)
	if session == nil { return -1 }

	return session.OpenedLogPosition
}

func TestSessionTimeoutIncrementsCounter(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 20_000_000_000, 5_000_000_000)
	cluster.tick(40, 20_000_000, nil)

	cli := client.NewClusterClient(client.ClusterClientOpts{
		Medium: cluster.medium,
		IngressChannel: "ingress:0",
		Version: appVersion,
	})

	cli.Connect(nil)
	cluster.tick(40, 20_000_000, func() { cli.PollEgress() })

	if cli.SessionID <= 0 { t.Fatalf("client session never opened\n") }

	// stop keep alives and run past the session timeout
	cluster.tick(70, 100_000_000, nil)

	leader := cluster.agents[0]

	expectedTimedOut := int64(1)
	actualTimedOut := leader.Counters().TimedOutClientCount.Get()

	t.Logf("actual timed out: %d, expected timed out: %d\n", actualTimedOut, expectedTimedOut)
	if actualTimedOut != expectedTimedOut {
		t.Errorf("actual timed out not equal to expected: actual(%d), expected(%d)\n", actualTimedOut, expectedTimedOut)
	}

	for idx, agent := range cluster.agents {
		if agent.SessionRegistry().GetSession(cli.SessionID) != nil {
			t.Errorf("member %d still holds timed out session\n", idx)
		}
	}
}

func TestLeaderFailover(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 3_000_000_000, 30_000_000_000)
	cluster.tick(40, 20_000_000, nil)

	if cluster.leaderIndex() != 0 { t.Fatalf("expected member 0 to lead\n") }

	commitBeforeFailure := cluster.agents[1].CommitPosition()
	termBefore := cluster.agents[1].LeadershipTermID()

	// kill the leader and run past the heartbeat timeout
	cluster.stopped[0] = true
	cluster.tick(80, 100_000_000, nil)

	newLeader := cluster.leaderIndex()

	expectedLeader := 1
	t.Logf("actual new leader: %d, expected new leader: %d\n", newLeader, expectedLeader)
	if newLeader != expectedLeader {
		t.Fatalf("actual new leader not equal to expected: actual(%d), expected(%d)\n", newLeader, expectedLeader)
	}

	if cluster.agents[1].LeadershipTermID() <= termBefore {
		t.Errorf("leadership term did not advance: actual(%d), before(%d)\n", cluster.agents[1].LeadershipTermID(), termBefore)
	}

	if cluster.agents[1].CommitPosition() < commitBeforeFailure {
		t.Errorf("commit position regressed on failover: actual(%d), before(%d)\n", cluster.agents[1].CommitPosition(), commitBeforeFailure)
	}
}

/*
	leader rollback: a close appended beyond the commit position is undone
	when leadership is lost, the session is reinstated as if the close never
	happened
*/

func TestLeaderRollbackOnLeadershipLoss(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 60_000_000_000, 2_000_000_000)
	cluster.tick(40, 20_000_000, nil)

	if cluster.leaderIndex() != 0 { t.Fatalf("expected member 0 to lead\n") }

	cli := client.NewClusterClient(client.ClusterClientOpts{
		Medium: cluster.medium,
		IngressChannel: "ingress:0",
		Version: appVersion,
	})

	cli.Connect(nil)
	cluster.tick(40, 20_000_000, func() {
		cli.PollEgress()
		if cli.SessionID > 0 { cli.KeepAlive() }
	})

	if cli.SessionID <= 0 { t.Fatalf("client session never opened\n") }

	leader := cluster.agents[0]
	commitBefore := leader.CommitPosition()

	// cut the followers so nothing more commits, then let the session time
	// out, the close appends beyond the commit position
	cluster.stopped[1] = true
	cluster.stopped[2] = true

	cluster.tick(40, 100_000_000, nil)

	if leader.SessionRegistry().GetSession(cli.SessionID) != nil {
		t.Fatalf("session should be pending close removal from the table\n")
	}

	if leader.CommitPosition() != commitBefore {
		t.Fatalf("commit advanced without a quorum: actual(%d), before(%d)\n", leader.CommitPosition(), commitBefore)
	}

	// a newer term from another member deposes the leader
	publisher := statusrpc.NewStatusPublisher()
	toLeader := cluster.medium.AddPublication("member-status:0", 108)
	publisher.NewLeadershipTerm(toLeader, leader.LeadershipTermID(), leader.LeadershipTermID() + 5, commitBefore, commitBefore, 1, 0)

	cluster.tick(3, 20_000_000, nil)

	session := leader.SessionRegistry().GetSession(cli.SessionID)
	if session == nil {
		t.Fatalf("uncommitted close not rolled back, session missing\n")
	}

	if ! session.IsOpen() {
		t.Errorf("reinstated session not open: actual(%s)\n", session.State)
	}

	t.Logf("actual commit: %d, expected commit: %d\n", leader.CommitPosition(), commitBefore)
	if leader.CommitPosition() != commitBefore {
		t.Errorf("commit position moved during rollback: actual(%d), expected(%d)\n", leader.CommitPosition(), commitBefore)
	}

	if leader.PendingMessages().UncommittedCount() != 0 {
		t.Errorf("pending service slots not sentinel reset: actual(%d)\n", leader.PendingMessages().UncommittedCount())
	}
}

func TestShutdownTakesSnapshotAndTerminates(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 20_000_000_000, 20_000_000_000)
	cluster.tick(40, 20_000_000, nil)

	if cluster.leaderIndex() != 0 { t.Fatalf("expected member 0 to lead\n") }

	leader := cluster.agents[0]

	if ! leader.ControlToggle().Set(counters.Shutdown) {
		t.Fatalf("unable to flip control toggle to shutdown\n")
	}

	cluster.tick(60, 50_000_000, nil)

	for idx, agent := range cluster.agents {
		if agent.State() != consensus.StateClosed {
			t.Errorf("member %d not closed after shutdown: actual(%d)\n", idx, agent.State())
		}

		if agent.Counters().SnapshotCount.Get() < 1 {
			t.Errorf("member %d took no snapshot on shutdown: actual(%d)\n", idx, agent.Counters().SnapshotCount.Get())
		}

		if *cluster.hooks[idx] == 0 {
			t.Errorf("member %d termination hook never ran\n", idx)
		}
	}
}

/*
	dynamic join: a fourth node with empty membership queries peers,
	retrieves the recorded log, and is promoted through a log replicated
	join, every member converges on four active members
*/

func TestDynamicJoinFourthMember(t *testing.T) {
	cluster := SetupMockCluster(t, 3, 30_000_000_000, 30_000_000_000)
	cluster.tick(40, 20_000_000, nil)

	if cluster.leaderIndex() != 0 { t.Fatalf("expected member 0 to lead\n") }

	dir := t.TempDir()

	joinArc, archiveErr := archive.NewArchive(archive.ArchiveOpts{ DBPath: filepath.Join(dir, "archive.db") })
	if archiveErr != nil { t.Fatalf("unable to create archive: %s", archiveErr.Error()) }
	t.Cleanup(func() { joinArc.Close() })

	joinRlog, rlogErr := recordinglog.NewRecordingLog(recordinglog.RecordingLogOpts{
		DBPath: filepath.Join(dir, "recordinglog.db"),
		FileSyncLevel: 0,
	})
	if rlogErr != nil { t.Fatalf("unable to create recording log: %s", rlogErr.Error()) }
	t.Cleanup(func() { joinRlog.Close() })

	retriever := func(agent *consensus.ConsensusModuleAgent, entry recordinglog.Entry) (int64, error) {
		return copyRecording(cluster.archives[0], joinArc, cluster.medium, entry.RecordingID)
	}

	hookCount := 0

	joiner, agentErr := consensus.NewConsensusModuleAgent(consensus.ConsensusModuleOpts{
		MemberID: 3,
		ClusterMembers: "",
		ClusterDir: dir,
		MemberStatusEndpoints: []string{ "member-status:0", "member-status:1", "member-status:2" },
		MemberEndpoints: "3,ingress:3,member-status:3,transfer:3,log:3",
		SnapshotRetriever: retriever,
		AppVersion: appVersion,
		ServiceCount: 0,
		Medium: cluster.medium,
		Archive: joinArc,
		RecordingLog: joinRlog,
		TerminationHook: func() { hookCount++ },
		ClockNs: func() int64 { return cluster.clock.nowNs },
		MaxConcurrentSessions: 16,
		PendingMessageCapacity: 64,
		SessionTimeoutNs: 30_000_000_000,
		LeaderHeartbeatIntervalNs: 50_000_000,
		LeaderHeartbeatTimeoutNs: 30_000_000_000,
		ElectionTimeoutNs: 1_000_000_000,
		CatchupTimeoutNs: 5_000_000_000,
		TerminationTimeoutNs: 5_000_000_000,
		WheelTickResolutionNs: 1_000_000,
		TicksPerWheel: 64,
	})
	if agentErr != nil { t.Fatalf("unable to create joining agent: %s", agentErr.Error()) }

	if startErr := joiner.OnStart(); startErr != nil { t.Fatalf("unable to start joining agent: %s", startErr.Error()) }

	cluster.agents = append(cluster.agents, joiner)
	cluster.hooks[3] = &hookCount

	cluster.tick(120, 20_000_000, nil)

	for idx, agent := range cluster.agents {
		actual := len(agent.Membership().Members)
		expected := 4

		t.Logf("member %d actual active: %d, expected active: %d\n", idx, actual, expected)
		if actual != expected {
			t.Errorf("member %d active set wrong: actual(%d), expected(%d)\n", idx, actual, expected)
		}
	}

	if joiner.Membership().FindMember(3) == nil {
		t.Errorf("joiner not promoted into the active set\n")
	}
}

func copyRecording(src *archive.Archive, dst *archive.Archive, medium *transport.TransportMedium, recordingId int64) (int64, error) {
	session, replayErr := src.StartReplay(recordingId, 0, archive.NullPosition)
	if replayErr != nil { return archive.NullRecordingID, replayErr }

	defer src.StopReplay(session)

	pub := medium.AddPublication(fmt.Sprintf("retrieve:%d", recordingId), 900)

	newRecordingId, recordErr := dst.StartRecording(pub)
	if recordErr != nil { return archive.NullRecordingID, recordErr }

	for {
		polled := session.Subscription.Poll(func(bytes []byte, position int64) transport.PollAction {
			pub.Offer(bytes)
			return transport.PollContinue
		}, 64)

		if polled == 0 { break }
	}

	stopErr := dst.StopRecording(newRecordingId)
	if stopErr != nil { return archive.NullRecordingID, stopErr }

	return newRecordingId, nil
}
