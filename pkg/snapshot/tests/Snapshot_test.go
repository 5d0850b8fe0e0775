package snapshottests

import "testing"

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/pendingqueue"
import "github.com/sirgallo/cluster/pkg/snapshot"
import "github.com/sirgallo/cluster/pkg/timerwheel"
import "github.com/sirgallo/cluster/pkg/transport"


const timeUnit = "ns"
const appVersion = int32(1 << 16)

func SetupMockState() (*membership.MembershipSet, *clustersession.ClusterSession, *timerwheel.TimerWheel, *pendingqueue.PendingMessageQueue) {
	members := []*membership.ClusterMember{
		{ ID: 0, ClientFacingEndpoint: "ingress:0", MemberFacingEndpoint: "member-status:0", TransferEndpoint: "transfer:0", LogEndpoint: "log:0" },
		{ ID: 1, ClientFacingEndpoint: "ingress:1", MemberFacingEndpoint: "member-status:1", TransferEndpoint: "transfer:1", LogEndpoint: "log:1" },
	}

	set := membership.NewMembershipSet(0, members)

	session := clustersession.NewClusterSession(42, 1, "egress:client")
	session.ID = 7
	session.Connect()
	session.Authenticate(nil)
	session.Opened(120)
	session.TimeOfLastActivityNs = 5000

	wheel := timerwheel.NewTimerWheel(timerwheel.TimerWheelOpts{ StartTime: 0, TickResolution: 10, TicksPerWheel: 16 })
	wheel.Schedule(11, 900)
	wheel.Schedule(12, 1500)

	queue := pendingqueue.NewPendingMessageQueue(pendingqueue.PendingQueueOpts{ Capacity: 32 })
	queue.Enqueue([]byte("svc-a"))
	queue.Enqueue([]byte("svc-b"))

	return set, session, wheel, queue
}

/*
	snapshot round trip: take at a position, load into fresh state, the
	covered fields come back identical
*/

func TestSnapshotRoundTrip(t *testing.T) {
	set, session, wheel, queue := SetupMockState()

	medium := transport.NewTransportMedium()
	pub := medium.AddPublication("snapshot:0", 1)
	sub := medium.AddSubscription("snapshot:0", 1)

	taker := snapshot.NewSnapshotTaker(pub)

	logPosition := int64(240)

	if beginErr := taker.MarkBegin(logPosition, 3, timeUnit, appVersion); beginErr != nil {
		t.Fatalf("unable to mark begin: %s", beginErr.Error())
	}

	taker.SnapshotConsensusModuleState(8, queue.NextServiceSessionID, queue.LogServiceSessionID, queue.Capacity())
	taker.SnapshotMembership(set)
	taker.SnapshotSession(session)
	taker.SnapshotTimers(wheel)
	taker.SnapshotPendingMessages(queue)

	if endErr := taker.MarkEnd(logPosition); endErr != nil {
		t.Fatalf("unable to mark end: %s", endErr.Error())
	}

	pub.CloseStream()

	loader := snapshot.NewSnapshotLoader(sub.Image)

	loaded, loadErr := loader.Load(timeUnit, appVersion)
	if loadErr != nil { t.Fatalf("unable to load snapshot: %s", loadErr.Error()) }

	t.Logf("actual log position: %d, expected log position: %d\n", loaded.LogPosition, logPosition)
	if loaded.LogPosition != logPosition {
		t.Errorf("actual log position not equal to expected: actual(%d), expected(%d)\n", loaded.LogPosition, logPosition)
	}

	if loaded.LeadershipTermID != 3 {
		t.Errorf("leadership term id lost: actual(%d), expected(3)\n", loaded.LeadershipTermID)
	}

	if loaded.NextSessionID != 8 {
		t.Errorf("next session id lost: actual(%d), expected(8)\n", loaded.NextSessionID)
	}

	if loaded.NextServiceSessionID != queue.NextServiceSessionID || loaded.LogServiceSessionID != queue.LogServiceSessionID {
		t.Errorf("service session ids lost: actual(%d, %d)\n", loaded.NextServiceSessionID, loaded.LogServiceSessionID)
	}

	if loaded.Members != membership.EncodeMembers(set.Members) {
		t.Errorf("membership encoding lost: actual(%s)\n", loaded.Members)
	}

	expectedSessions := 1
	t.Logf("actual sessions: %d, expected sessions: %d\n", len(loaded.Sessions), expectedSessions)
	if len(loaded.Sessions) != expectedSessions {
		t.Fatalf("actual sessions not equal to expected: actual(%d), expected(%d)\n", len(loaded.Sessions), expectedSessions)
	}

	restored := loaded.Sessions[0]
	if restored.ID != 7 || restored.CorrelationID != 42 || restored.OpenedLogPosition != 120 || restored.TimeOfLastActivityNs != 5000 {
		t.Errorf("session fields lost: actual(%v)\n", restored)
	}

	expectedTimers := 2
	t.Logf("actual timers: %d, expected timers: %d\n", len(loaded.Timers), expectedTimers)
	if len(loaded.Timers) != expectedTimers {
		t.Fatalf("actual timers not equal to expected: actual(%d), expected(%d)\n", len(loaded.Timers), expectedTimers)
	}

	if loaded.Timers[0].CorrelationID != 11 || loaded.Timers[0].Deadline != 900 {
		t.Errorf("timer fields lost: actual(%v)\n", loaded.Timers[0])
	}

	expectedPending := 2
	t.Logf("actual pending: %d, expected pending: %d\n", len(loaded.PendingMessages), expectedPending)
	if len(loaded.PendingMessages) != expectedPending {
		t.Fatalf("actual pending not equal to expected: actual(%d), expected(%d)\n", len(loaded.PendingMessages), expectedPending)
	}

	if string(loaded.PendingMessages[0].Payload) != "svc-a" {
		t.Errorf("pending payload lost: actual(%s)\n", string(loaded.PendingMessages[0].Payload))
	}
}

func TestLoadRejectsIncompatibleTimeUnit(t *testing.T) {
	medium := transport.NewTransportMedium()
	pub := medium.AddPublication("snapshot:0", 1)
	sub := medium.AddSubscription("snapshot:0", 1)

	taker := snapshot.NewSnapshotTaker(pub)
	taker.MarkBegin(100, 1, "ms", appVersion)
	taker.MarkEnd(100)

	pub.CloseStream()

	loader := snapshot.NewSnapshotLoader(sub.Image)

	_, loadErr := loader.Load(timeUnit, appVersion)

	t.Logf("actual error: %v, expected error: not nil\n", loadErr)
	if loadErr == nil {
		t.Errorf("expected incompatible time unit error, got nil\n")
	}
}

func TestLoadRejectsIncompatibleAppVersionMajor(t *testing.T) {
	medium := transport.NewTransportMedium()
	pub := medium.AddPublication("snapshot:0", 1)
	sub := medium.AddSubscription("snapshot:0", 1)

	taker := snapshot.NewSnapshotTaker(pub)
	taker.MarkBegin(100, 1, timeUnit, int32(2 << 16))
	taker.MarkEnd(100)

	pub.CloseStream()

	loader := snapshot.NewSnapshotLoader(sub.Image)

	_, loadErr := loader.Load(timeUnit, appVersion)

	t.Logf("actual error: %v, expected error: not nil\n", loadErr)
	if loadErr == nil {
		t.Errorf("expected incompatible app version error, got nil\n")
	}
}

func TestLoadRejectsTornSnapshot(t *testing.T) {
	medium := transport.NewTransportMedium()
	pub := medium.AddPublication("snapshot:0", 1)
	sub := medium.AddSubscription("snapshot:0", 1)

	taker := snapshot.NewSnapshotTaker(pub)
	taker.MarkBegin(100, 1, timeUnit, appVersion)

	pub.CloseStream()

	loader := snapshot.NewSnapshotLoader(sub.Image)

	_, loadErr := loader.Load(timeUnit, appVersion)

	t.Logf("actual error: %v, expected error: not nil\n", loadErr)
	if loadErr == nil {
		t.Errorf("expected incomplete snapshot error, got nil\n")
	}
}
