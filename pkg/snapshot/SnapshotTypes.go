package snapshot

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/timerwheel"
import "github.com/sirgallo/cluster/pkg/transport"


type RecordKind int32

const (
	RecordBegin RecordKind = iota
	RecordModuleState
	RecordMembership
	RecordSession
	RecordTimer
	RecordPendingMessage
	RecordEnd
)

/*
	one framed record on the snapshot stream, kind selects the populated
	fields, Begin and End bracket the stream so a torn snapshot is detectable
*/

type SnapshotRecord struct {
	Kind RecordKind

	TypeID           int32  `json:",omitempty"`
	LogPosition      int64  `json:",omitempty"`
	LeadershipTermID int64  `json:",omitempty"`
	TimeUnit         string `json:",omitempty"`
	AppVersion       int32  `json:",omitempty"`

	NextSessionID          int64 `json:",omitempty"`
	NextServiceSessionID   int64 `json:",omitempty"`
	LogServiceSessionID    int64 `json:",omitempty"`
	PendingMessageCapacity int   `json:",omitempty"`

	MemberID       int32  `json:",omitempty"`
	HighMemberID   int32  `json:",omitempty"`
	Members        string `json:",omitempty"`
	PassiveMembers string `json:",omitempty"`

	Session *SessionSnapshot `json:",omitempty"`

	CorrelationID int64 `json:",omitempty"`
	Deadline      int64 `json:",omitempty"`

	ServiceSessionID int64  `json:",omitempty"`
	Payload          []byte `json:",omitempty"`
}

type SessionSnapshot struct {
	ID                   int64
	CorrelationID        int64
	ResponseStreamID     int32
	ResponseChannel      string
	State                clustersession.SessionState
	CloseReason          clustersession.CloseReason
	OpenedLogPosition    int64
	ClosedLogPosition    int64
	TimeOfLastActivityNs int64
}

type PendingMessageSnapshot struct {
	ServiceSessionID int64
	Payload          []byte
}

/*
	Module Snapshot
		the decoded agent state a loader hands back, symmetric with what the
		taker wrote
*/

type ModuleSnapshot struct {
	LogPosition      int64
	LeadershipTermID int64
	TimeUnit         string
	AppVersion       int32

	NextSessionID          int64
	NextServiceSessionID   int64
	LogServiceSessionID    int64
	PendingMessageCapacity int

	MemberID       int32
	HighMemberID   int32
	Members        string
	PassiveMembers string

	Sessions        []SessionSnapshot
	Timers          []timerwheel.TimerEntry
	PendingMessages []PendingMessageSnapshot
}

type SnapshotTaker struct {
	Publication *transport.Publication
	IdleSleepMs int
}

type SnapshotLoader struct {
	Image *transport.Image
}

const NAME = "Snapshot"

const SnapshotTypeID = int32(1)
