package statusrpc

import "github.com/sirgallo/cluster/pkg/recordinglog"


type MessageKind string

const (
	KindCanvassPosition           MessageKind = "canvass_position"
	KindRequestVote               MessageKind = "request_vote"
	KindVote                      MessageKind = "vote"
	KindNewLeadershipTerm         MessageKind = "new_leadership_term"
	KindAppendPosition            MessageKind = "append_position"
	KindCommitPosition            MessageKind = "commit_position"
	KindCatchupPosition           MessageKind = "catchup_position"
	KindStopCatchup               MessageKind = "stop_catchup"
	KindAddPassiveMember          MessageKind = "add_passive_member"
	KindClusterMemberChange       MessageKind = "cluster_member_change"
	KindJoinCluster               MessageKind = "join_cluster"
	KindSnapshotRecordingQuery    MessageKind = "snapshot_recording_query"
	KindSnapshotRecordingResponse MessageKind = "snapshot_recording_response"
	KindTerminationPosition       MessageKind = "termination_position"
	KindTerminationAck            MessageKind = "termination_ack"
	KindBackupQuery               MessageKind = "backup_query"
	KindBackupResponse            MessageKind = "backup_response"
)

/*
	member status envelope, symmetric between members, kind selects the
	populated fields
*/

type StatusMessage struct {
	Kind MessageKind

	LeadershipTermID    int64 `json:",omitempty"`
	LogLeadershipTermID int64 `json:",omitempty"`
	CandidateTermID     int64 `json:",omitempty"`

	LogPosition         int64 `json:",omitempty"`
	MaxLogPosition      int64 `json:",omitempty"`
	TermBaseLogPosition int64 `json:",omitempty"`

	MemberID          int32 `json:",omitempty"`
	LeaderMemberID    int32 `json:",omitempty"`
	FollowerMemberID  int32 `json:",omitempty"`
	CandidateMemberID int32 `json:",omitempty"`

	Vote bool `json:",omitempty"`

	LeaderRecordingID int64 `json:",omitempty"`
	TimestampNs       int64 `json:",omitempty"`

	CorrelationID   int64  `json:",omitempty"`
	MemberEndpoints string `json:",omitempty"`
	ClusterMembers  string `json:",omitempty"`
	ResponseChannel string `json:",omitempty"`

	SnapshotEntries []recordinglog.Entry `json:",omitempty"`
}

/*
	the consensus agent implements this sink, one operation per message, no
	inheritance chains, adapters forward into it
*/

type MemberStatusSink interface {
	OnCanvassPosition(msg *StatusMessage)
	OnRequestVote(msg *StatusMessage)
	OnVote(msg *StatusMessage)
	OnNewLeadershipTerm(msg *StatusMessage)
	OnAppendPosition(msg *StatusMessage)
	OnCommitPosition(msg *StatusMessage)
	OnCatchupPosition(msg *StatusMessage)
	OnStopCatchup(msg *StatusMessage)
	OnAddPassiveMember(msg *StatusMessage)
	OnClusterMemberChange(msg *StatusMessage)
	OnJoinCluster(msg *StatusMessage)
	OnSnapshotRecordingQuery(msg *StatusMessage)
	OnSnapshotRecordingResponse(msg *StatusMessage)
	OnTerminationPosition(msg *StatusMessage)
	OnTerminationAck(msg *StatusMessage)
	OnBackupQuery(msg *StatusMessage)
	OnBackupResponse(msg *StatusMessage)
}

const NAME = "MemberStatus"

const OfferAttempts = 3
