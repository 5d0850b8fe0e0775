package archivetests

import "path/filepath"
import "testing"

import "github.com/sirgallo/cluster/pkg/archive"
import "github.com/sirgallo/cluster/pkg/transport"


func SetupMockArchive(t *testing.T) *archive.Archive {
	arc, archiveErr := archive.NewArchive(archive.ArchiveOpts{
		DBPath: filepath.Join(t.TempDir(), "archive.db"),
	})
	if archiveErr != nil { t.Fatalf("unable to create archive: %s", archiveErr.Error()) }

	t.Cleanup(func() { arc.Close() })

	return arc
}

func TestRecordAndReplay(t *testing.T) {
	arc := SetupMockArchive(t)
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("log", 1)

	recordingId, recordErr := arc.StartRecording(pub)
	if recordErr != nil { t.Fatalf("unable to start recording: %s", recordErr.Error()) }

	posA := pub.Offer([]byte("entry-a"))
	posB := pub.Offer([]byte("entry-b"))

	recordedPosition, posErr := arc.RecordingPosition(recordingId)
	if posErr != nil { t.Fatalf("unable to read recording position: %s", posErr.Error()) }

	t.Logf("actual recorded position: %d, expected recorded position: %d\n", recordedPosition, posB)
	if recordedPosition != posB {
		t.Errorf("actual recorded position not equal to expected: actual(%d), expected(%d)\n", recordedPosition, posB)
	}

	session, replayErr := arc.StartReplay(recordingId, 0, archive.NullPosition)
	if replayErr != nil { t.Fatalf("unable to start replay: %s", replayErr.Error()) }

	var replayed []string
	var positions []int64

	session.Subscription.Poll(func(bytes []byte, position int64) transport.PollAction {
		replayed = append(replayed, string(bytes))
		positions = append(positions, position)
		return transport.PollContinue
	}, 10)

	expectedTotal := 2
	t.Logf("actual replayed: %d, expected replayed: %d\n", len(replayed), expectedTotal)
	if len(replayed) != expectedTotal {
		t.Errorf("actual replayed not equal to expected: actual(%d), expected(%d)\n", len(replayed), expectedTotal)
	}

	if replayed[0] != "entry-a" || replayed[1] != "entry-b" {
		t.Errorf("replayed frames out of order: actual(%v)\n", replayed)
	}

	if positions[0] != posA || positions[1] != posB {
		t.Errorf("replay lost original positions: actual(%v), expected(%d, %d)\n", positions, posA, posB)
	}
}

func TestReplayFromPosition(t *testing.T) {
	arc := SetupMockArchive(t)
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("log", 1)

	recordingId, _ := arc.StartRecording(pub)

	posA := pub.Offer([]byte("entry-a"))
	pub.Offer([]byte("entry-b"))

	session, replayErr := arc.StartReplay(recordingId, posA, archive.NullPosition)
	if replayErr != nil { t.Fatalf("unable to start replay: %s", replayErr.Error()) }

	var replayed []string
	session.Subscription.Poll(func(bytes []byte, position int64) transport.PollAction {
		replayed = append(replayed, string(bytes))
		return transport.PollContinue
	}, 10)

	expectedTotal := 1
	t.Logf("actual replayed: %d, expected replayed: %d\n", len(replayed), expectedTotal)
	if len(replayed) != expectedTotal || replayed[0] != "entry-b" {
		t.Errorf("replay from position wrong: actual(%v)\n", replayed)
	}
}

func TestStopAndTruncateRecording(t *testing.T) {
	arc := SetupMockArchive(t)
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("log", 1)

	recordingId, _ := arc.StartRecording(pub)

	posA := pub.Offer([]byte("entry-a"))
	posB := pub.Offer([]byte("entry-b"))

	stopErr := arc.StopRecording(recordingId)
	if stopErr != nil { t.Fatalf("unable to stop recording: %s", stopErr.Error()) }

	stopPosition, _ := arc.StopPosition(recordingId)

	t.Logf("actual stop position: %d, expected stop position: %d\n", stopPosition, posB)
	if stopPosition != posB {
		t.Errorf("actual stop position not equal to expected: actual(%d), expected(%d)\n", stopPosition, posB)
	}

	truncateErr := arc.TruncateRecording(recordingId, posA)
	if truncateErr != nil { t.Fatalf("unable to truncate recording: %s", truncateErr.Error()) }

	truncatedPosition, _ := arc.RecordingPosition(recordingId)

	t.Logf("actual truncated position: %d, expected truncated position: %d\n", truncatedPosition, posA)
	if truncatedPosition != posA {
		t.Errorf("actual truncated position not equal to expected: actual(%d), expected(%d)\n", truncatedPosition, posA)
	}

	// frames offered after stop are no longer recorded
	pub.Offer([]byte("entry-c"))

	finalPosition, _ := arc.RecordingPosition(recordingId)
	if finalPosition != posA {
		t.Errorf("stopped recording still accepting frames: actual(%d), expected(%d)\n", finalPosition, posA)
	}
}

func TestRecordingIDsMonotonic(t *testing.T) {
	arc := SetupMockArchive(t)
	medium := transport.NewTransportMedium()

	first, _ := arc.StartRecording(medium.AddPublication("log", 1))
	second, _ := arc.StartRecording(medium.AddPublication("snapshot", 2))

	t.Logf("actual ids: %d then %d, expected: increasing\n", first, second)
	if second != first + 1 {
		t.Errorf("recording ids not monotonic: actual(%d, %d)\n", first, second)
	}
}
