package uncommittedtests

import "testing"

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/uncommitted"


func SetupMockSession(id int64) *clustersession.ClusterSession {
	session := clustersession.NewClusterSession(id, 1, "egress:test")
	session.ID = id
	session.Connect()
	session.Authenticate(nil)
	session.Opened(10)

	return session
}

func TestCommitReleasesInOrder(t *testing.T) {
	ledger := uncommitted.NewLedger()

	ledger.AddTimer(100, 1, 500)
	ledger.AddServiceMessage(200)
	ledger.AddTimer(300, 2, 600)

	var released []int64
	handlers := uncommitted.CommitHandlers{
		OnTimerCommitted: func(entry uncommitted.UncommittedEntry) { released = append(released, entry.AppendPosition) },
		OnServiceMessageCommitted: func(entry uncommitted.UncommittedEntry) { released = append(released, entry.AppendPosition) },
	}

	count := ledger.CommitTo(200, handlers)

	expectedCount := 2
	t.Logf("actual released: %d, expected released: %d\n", count, expectedCount)
	if count != expectedCount {
		t.Errorf("actual released not equal to expected: actual(%d), expected(%d)\n", count, expectedCount)
	}

	if len(released) != 2 || released[0] != 100 || released[1] != 200 {
		t.Errorf("entries not released in append order: actual(%v)\n", released)
	}

	expectedSize := 1
	t.Logf("actual size: %d, expected size: %d\n", ledger.Size(), expectedSize)
	if ledger.Size() != expectedSize {
		t.Errorf("actual size not equal to expected: actual(%d), expected(%d)\n", ledger.Size(), expectedSize)
	}
}

/*
	leader rollback: entries beyond the safe commit restore, a timer
	reschedules and an uncommitted close reinstates the session as open
*/

func TestRestoreBeyondCommit(t *testing.T) {
	ledger := uncommitted.NewLedger()

	session := SetupMockSession(5)
	session.ClosePending(clustersession.ClientAction, 300)
	session.Close()

	ledger.AddTimer(100, 1, 500)
	ledger.AddTimer(200, 2, 600)
	ledger.AddSessionClose(300, session)

	var rescheduled []int64
	var reinstated []*clustersession.ClusterSession

	handlers := uncommitted.RestoreHandlers{
		OnTimerRestored: func(entry uncommitted.UncommittedEntry) { rescheduled = append(rescheduled, entry.CorrelationID) },
		OnSessionCloseRestored: func(entry uncommitted.UncommittedEntry) {
			entry.Session.Reinstate()
			reinstated = append(reinstated, entry.Session)
		},
	}

	restored := ledger.Restore(100, handlers)

	expectedRestored := 2
	t.Logf("actual restored: %d, expected restored: %d\n", restored, expectedRestored)
	if restored != expectedRestored {
		t.Errorf("actual restored not equal to expected: actual(%d), expected(%d)\n", restored, expectedRestored)
	}

	if len(rescheduled) != 1 || rescheduled[0] != 2 {
		t.Errorf("wrong timers rescheduled: actual(%v)\n", rescheduled)
	}

	expectedState := clustersession.Open
	t.Logf("actual session state: %s, expected session state: %s\n", session.State, expectedState)
	if session.State != expectedState {
		t.Errorf("actual session state not equal to expected: actual(%s), expected(%s)\n", session.State, expectedState)
	}

	expectedSize := 1
	t.Logf("actual size: %d, expected size: %d\n", ledger.Size(), expectedSize)
	if ledger.Size() != expectedSize {
		t.Errorf("actual size not equal to expected: actual(%d), expected(%d)\n", ledger.Size(), expectedSize)
	}

	for _, entry := range ledger.Entries() {
		if entry.AppendPosition > 100 {
			t.Errorf("entry beyond restore position still present: actual(%d)\n", entry.AppendPosition)
		}
	}
}

func TestUncommittedClosedSessionsView(t *testing.T) {
	ledger := uncommitted.NewLedger()

	session := SetupMockSession(9)

	ledger.AddTimer(100, 1, 500)
	ledger.AddSessionClose(200, session)

	closed := ledger.UncommittedClosedSessions()

	expectedTotal := 1
	t.Logf("actual total: %d, expected total: %d\n", len(closed), expectedTotal)
	if len(closed) != expectedTotal {
		t.Errorf("actual total not equal to expected: actual(%d), expected(%d)\n", len(closed), expectedTotal)
	}

	if closed[0].ID != 9 {
		t.Errorf("wrong session in closed view: actual(%d), expected(9)\n", closed[0].ID)
	}
}
