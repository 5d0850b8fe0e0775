package servicerpc


type ServiceKind string

const (
	// service --> consensus module
	KindServiceAck          ServiceKind = "service_ack"
	KindServiceMessage      ServiceKind = "service_message"
	KindScheduleTimer       ServiceKind = "schedule_timer"
	KindCancelTimer         ServiceKind = "cancel_timer"
	KindCloseSession        ServiceKind = "close_session"
	KindClusterMembersQuery ServiceKind = "cluster_members_query"

	// consensus module --> service
	KindJoinLog                 ServiceKind = "join_log"
	KindServiceTermination      ServiceKind = "termination_position"
	KindClusterMembersResponse  ServiceKind = "cluster_members_response"
)

type ServiceControlMessage struct {
	Kind ServiceKind

	LogPosition int64 `json:",omitempty"`
	AckID       int64 `json:",omitempty"`
	RelevantID  int64 `json:",omitempty"`
	ServiceID   int32 `json:",omitempty"`

	Payload []byte `json:",omitempty"`

	CorrelationID int64 `json:",omitempty"`
	Deadline      int64 `json:",omitempty"`

	ClusterSessionID int64 `json:",omitempty"`

	MaxLogPosition int64  `json:",omitempty"`
	MemberID       int32  `json:",omitempty"`
	LogChannel     string `json:",omitempty"`
	LogStreamID    int32  `json:",omitempty"`
	IsStartup      bool   `json:",omitempty"`
	Role           int32  `json:",omitempty"`

	LeaderMemberID int32  `json:",omitempty"`
	ActiveMembers  string `json:",omitempty"`
	PassiveMembers string `json:",omitempty"`
}

/*
	the consensus agent implements this sink for traffic arriving from hosted
	services on the control stream
*/

type ServiceControlSink interface {
	OnServiceAck(msg *ServiceControlMessage)
	OnServiceMessage(msg *ServiceControlMessage)
	OnScheduleTimer(msg *ServiceControlMessage)
	OnCancelTimer(msg *ServiceControlMessage)
	OnServiceCloseSession(msg *ServiceControlMessage)
	OnClusterMembersQuery(msg *ServiceControlMessage)
}

const NAME = "ServiceControl"

const OfferAttempts = 3
