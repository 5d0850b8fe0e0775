package archive

import "sync"

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/cluster/pkg/transport"


type RecordingDescriptor struct {
	RecordingID   int64
	Channel       string
	StreamID      int32
	StartPosition int64
	StopPosition  int64 // NullPosition while the recording is active
}

type Recorder struct {
	archive     *Archive
	publication *transport.Publication

	RecordingID int64
	Stopped     bool
}

type ReplaySession struct {
	SessionID     int64
	CorrelationID string
	Subscription  *transport.Subscription
}

type ArchiveOpts struct {
	DBPath string
}

type Archive struct {
	Mutex  sync.Mutex
	DBFile string
	DB     *bolt.DB

	recorders     map[int64]*Recorder
	nextReplayID  int64
	disconnected  bool
}

const NAME = "Archive"

const RecordingsBucket = "recordings"
const FramesBucket = "frames"
const MetaBucket = "archivemeta"
const NextRecordingKey = "nextrecordingid"

const NullPosition = int64(-1)
const NullRecordingID = int64(-1)
