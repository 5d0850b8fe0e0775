package logstream

import "github.com/sirgallo/cluster/pkg/transport"


type EntryKind int32

const (
	EntrySessionOpen EntryKind = iota
	EntrySessionClose
	EntrySessionMessage
	EntryTimer
	EntryClusterAction
	EntryNewLeadershipTerm
	EntryMembershipChange
	EntryServiceSessionMessage
)

type ClusterAction string

const (
	ActionSnapshot ClusterAction = "snapshot"
	ActionSuspend  ClusterAction = "suspend"
	ActionResume   ClusterAction = "resume"
)

type ChangeType string

const (
	ChangeJoin ChangeType = "join"
	ChangeQuit ChangeType = "quit"
)

/*
	Log Entry
		one framed record on the replicated log stream, the kind selects which
		optional fields are populated
*/

type LogEntry struct {
	Kind             EntryKind
	LeadershipTermID int64
	Timestamp        int64

	SessionID        int64  `json:",omitempty"`
	CorrelationID    int64  `json:",omitempty"`
	ResponseStreamID int32  `json:",omitempty"`
	ResponseChannel  string `json:",omitempty"`
	EncodedPrincipal []byte `json:",omitempty"`

	CloseReason string `json:",omitempty"`

	Payload []byte `json:",omitempty"`

	Action ClusterAction `json:",omitempty"`

	LeaderMemberID      int32  `json:",omitempty"`
	TermBaseLogPosition int64  `json:",omitempty"`
	AppVersion          int32  `json:",omitempty"`
	TimeUnit            string `json:",omitempty"`

	MemberID       int32      `json:",omitempty"`
	Change         ChangeType `json:",omitempty"`
	ClusterMembers string     `json:",omitempty"`
}

type LogPublisher struct {
	Publication *transport.Publication
}

type LogAdapter struct {
	Image *transport.Image
}

/*
	the agent implements this sink, the adapter dispatches each decoded entry
	and the returned action steers or aborts the poll
*/

type LogSink interface {
	OnReplaySessionOpen(entry *LogEntry, position int64) transport.PollAction
	OnReplaySessionClose(entry *LogEntry, position int64) transport.PollAction
	OnReplaySessionMessage(entry *LogEntry, position int64) transport.PollAction
	OnReplayTimerEvent(entry *LogEntry, position int64) transport.PollAction
	OnReplayClusterAction(entry *LogEntry, position int64) transport.PollAction
	OnReplayNewLeadershipTermEvent(entry *LogEntry, position int64) transport.PollAction
	OnReplayMembershipChange(entry *LogEntry, position int64) transport.PollAction
	OnReplayServiceSessionMessage(entry *LogEntry, position int64) transport.PollAction
}

const NAME = "LogStream"
