package recordinglog

import "sync"

import bolt "go.etcd.io/bbolt"


type EntryType int32

const (
	EntryTypeTerm EntryType = iota
	EntryTypeSnapshot
)

/*
	fixed shape entry record, one per leadership term or snapshot taken,
	ordered by entry index
*/

type Entry struct {
	EntryIndex          int64
	EntryType           EntryType
	RecordingID         int64
	LeadershipTermID    int64
	TermBaseLogPosition int64
	LogPosition         int64
	Timestamp           int64
	ServiceID           int32
	IsValid             bool
}

type RecordingLogOpts struct {
	DBPath        string
	FileSyncLevel int
}

type RecordingLog struct {
	Mutex         sync.Mutex
	DBFile        string
	DB            *bolt.DB
	FileSyncLevel int
}

/*
	Recovery Plan
		derived view over the recording log used to bootstrap an agent, the
		latest valid snapshot per service plus the module's own, and the log
		recording to replay forward from the snapshot position
*/

type RecoveryPlanLog struct {
	RecordingID      int64
	InitialTermID    int64
	StartPosition    int64
	StopPosition     int64
	ReplaySessionID  int64
}

type RecoveryPlan struct {
	LastLeadershipTermID int64
	AppendedLogPosition  int64
	Snapshots            []Entry // module entry last, service entries in service id order
	Log                  *RecoveryPlanLog
}

const NAME = "RecordingLog"

const EntriesBucket = "recordinglogentries"
const MetaBucket = "recordinglogmeta"
const NextEntryKey = "nextentryindex"

// the module's own snapshot entry, distinct from hosted service ids >= 0
const ServiceIDSentinel = int32(-1)

const NullPosition = int64(-1)
const NullTermID = int64(-1)
