package recordinglogtests

import "path/filepath"
import "testing"

import "github.com/sirgallo/cluster/pkg/archive"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/transport"


func SetupMockRecordingLog(t *testing.T) *recordinglog.RecordingLog {
	rlog, rlogErr := recordinglog.NewRecordingLog(recordinglog.RecordingLogOpts{
		DBPath: filepath.Join(t.TempDir(), "recordinglog.db"),
		FileSyncLevel: 1,
	})
	if rlogErr != nil { t.Fatalf("unable to create recording log: %s", rlogErr.Error()) }

	t.Cleanup(func() { rlog.Close() })

	return rlog
}

func SetupMockArchiveWithLog(t *testing.T) (*archive.Archive, int64, int64) {
	arc, archiveErr := archive.NewArchive(archive.ArchiveOpts{
		DBPath: filepath.Join(t.TempDir(), "archive.db"),
	})
	if archiveErr != nil { t.Fatalf("unable to create archive: %s", archiveErr.Error()) }

	t.Cleanup(func() { arc.Close() })

	medium := transport.NewTransportMedium()
	pub := medium.AddPublication("log", 1)

	recordingId, _ := arc.StartRecording(pub)

	pub.Offer([]byte("entry-a"))
	stopPosition := pub.Offer([]byte("entry-b"))

	return arc, recordingId, stopPosition
}

func TestAppendTermAndFind(t *testing.T) {
	rlog := SetupMockRecordingLog(t)

	entry, appendErr := rlog.AppendTerm(3, 1, 0, 1000)
	if appendErr != nil { t.Fatalf("unable to append term: %s", appendErr.Error()) }

	if entry.EntryIndex != 0 {
		t.Errorf("first entry index not zero: actual(%d)\n", entry.EntryIndex)
	}

	found, findErr := rlog.FindTermEntry(1)
	if findErr != nil { t.Fatalf("unable to find term entry: %s", findErr.Error()) }

	if found == nil || found.RecordingID != 3 || found.LeadershipTermID != 1 {
		t.Errorf("term entry does not round trip: actual(%v)\n", found)
	}
}

func TestCommitLogPosition(t *testing.T) {
	rlog := SetupMockRecordingLog(t)

	rlog.AppendTerm(3, 1, 0, 1000)

	commitErr := rlog.CommitLogPosition(1, 777)
	if commitErr != nil { t.Fatalf("unable to commit log position: %s", commitErr.Error()) }

	found, _ := rlog.FindTermEntry(1)

	expected := int64(777)
	t.Logf("actual log position: %d, expected log position: %d\n", found.LogPosition, expected)
	if found.LogPosition != expected {
		t.Errorf("actual log position not equal to expected: actual(%d), expected(%d)\n", found.LogPosition, expected)
	}
}

/*
	the recovery plan picks the latest valid snapshot set, one entry per
	service plus the module sentinel, and the log recording to replay from
	the snapshot position to the archive's stop position
*/

func TestRecoveryPlanFromSnapshotAndLog(t *testing.T) {
	rlog := SetupMockRecordingLog(t)
	arc, recordingId, stopPosition := SetupMockArchiveWithLog(t)

	rlog.AppendTerm(recordingId, 1, 0, 1000)
	rlog.AppendSnapshot(10, 1, 0, 33, 2000, 0)
	rlog.AppendSnapshot(11, 1, 0, 33, 2000, recordinglog.ServiceIDSentinel)

	plan, planErr := rlog.CreateRecoveryPlan(arc, 1)
	if planErr != nil { t.Fatalf("unable to create recovery plan: %s", planErr.Error()) }

	expectedSnapshots := 2
	t.Logf("actual snapshots: %d, expected snapshots: %d\n", len(plan.Snapshots), expectedSnapshots)
	if len(plan.Snapshots) != expectedSnapshots {
		t.Errorf("actual snapshots not equal to expected: actual(%d), expected(%d)\n", len(plan.Snapshots), expectedSnapshots)
	}

	moduleEntry := plan.Snapshots[len(plan.Snapshots) - 1]
	if moduleEntry.ServiceID != recordinglog.ServiceIDSentinel {
		t.Errorf("module snapshot not last in plan: actual service id(%d)\n", moduleEntry.ServiceID)
	}

	if plan.Log == nil {
		t.Fatalf("expected log in recovery plan, got nil\n")
	}

	t.Logf("actual stop position: %d, expected stop position: %d\n", plan.Log.StopPosition, stopPosition)
	if plan.Log.StopPosition != stopPosition {
		t.Errorf("actual stop position not equal to expected: actual(%d), expected(%d)\n", plan.Log.StopPosition, stopPosition)
	}

	if plan.Log.StartPosition != 33 {
		t.Errorf("replay should start at the snapshot position: actual(%d), expected(33)\n", plan.Log.StartPosition)
	}

	if plan.AppendedLogPosition != stopPosition {
		t.Errorf("appended log position wrong: actual(%d), expected(%d)\n", plan.AppendedLogPosition, stopPosition)
	}
}

/*
	an invalidated snapshot set falls out of recovery, the plan selects the
	previous valid set
*/

func TestInvalidateLatestSnapshot(t *testing.T) {
	rlog := SetupMockRecordingLog(t)
	arc, recordingId, _ := SetupMockArchiveWithLog(t)

	rlog.AppendTerm(recordingId, 1, 0, 1000)
	rlog.AppendSnapshot(10, 1, 0, 33, 2000, recordinglog.ServiceIDSentinel)
	rlog.AppendSnapshot(11, 1, 0, 66, 3000, recordinglog.ServiceIDSentinel)

	invalidateErr := rlog.InvalidateLatestSnapshot()
	if invalidateErr != nil { t.Fatalf("unable to invalidate snapshot: %s", invalidateErr.Error()) }

	plan, planErr := rlog.CreateRecoveryPlan(arc, 0)
	if planErr != nil { t.Fatalf("unable to create recovery plan: %s", planErr.Error()) }

	expectedSnapshots := 1
	if len(plan.Snapshots) != expectedSnapshots {
		t.Fatalf("actual snapshots not equal to expected: actual(%d), expected(%d)\n", len(plan.Snapshots), expectedSnapshots)
	}

	expectedPosition := int64(33)
	t.Logf("actual snapshot position: %d, expected snapshot position: %d\n", plan.Snapshots[0].LogPosition, expectedPosition)
	if plan.Snapshots[0].LogPosition != expectedPosition {
		t.Errorf("plan did not fall back to previous snapshot: actual(%d), expected(%d)\n", plan.Snapshots[0].LogPosition, expectedPosition)
	}
}
